package domain

const NodeParagraph = "paragraph"

// Node is an element of the rich text tree. Leaves carry Text, elements carry Type and Children.
type Node struct {
	Type       string         `json:"type,omitempty" bson:"type,omitempty"`
	Text       *string        `json:"text,omitempty" bson:"text,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" bson:"attributes,omitempty"`
	Children   []Node         `json:"children,omitempty" bson:"children,omitempty"`
}

type Content []Node

func TextNode(s string) Node {
	return Node{Text: &s}
}

// DefaultContent is a single empty paragraph.
func DefaultContent() Content {
	return Content{
		{Type: NodeParagraph, Children: []Node{TextNode("")}},
	}
}

func (n Node) IsLeaf() bool {
	return n.Text != nil
}

func (c Content) Validate() error {
	if len(c) == 0 {
		return ValidationError{Field: DocumentFieldContent, Reason: "must have at least one node"}
	}
	for _, n := range c {
		if err := n.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (n Node) validate() error {
	if n.IsLeaf() {
		if len(n.Children) > 0 {
			return ValidationError{Field: DocumentFieldContent, Reason: "text node with children"}
		}
		return nil
	}
	if n.Type == "" {
		return ValidationError{Field: DocumentFieldContent, Reason: "element without type"}
	}
	for _, child := range n.Children {
		if err := child.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the tree, attribute maps included.
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	out := make(Content, len(c))
	for i, n := range c {
		out[i] = n.clone()
	}
	return out
}

func (n Node) clone() Node {
	if n.Text != nil {
		text := *n.Text
		n.Text = &text
	}
	if n.Attributes != nil {
		n.Attributes = cloneValue(n.Attributes).(map[string]any)
	}
	if n.Children != nil {
		children := make([]Node, len(n.Children))
		for i, child := range n.Children {
			children[i] = child.clone()
		}
		n.Children = children
	}
	return n
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, x := range v {
			m[k] = cloneValue(x)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, x := range v {
			s[i] = cloneValue(x)
		}
		return s
	default:
		return v
	}
}
