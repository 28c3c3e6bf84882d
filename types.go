package quire

import "time"

const (
	ChannelDatabase string = "database"
)

const (
	SubjectUser     string = "user"
	SubjectDocument string = "document"
)

type EventType string

const (
	EventAdd    EventType = "add"
	EventChange EventType = "change"
	EventRemove EventType = "remove"
)

func (t EventType) Valid() bool {
	switch t {
	case EventAdd, EventChange, EventRemove:
		return true
	default:
		return false
	}
}

type Subject struct {
	Type string `json:"type"`
	ID   string `json:"_id"`
}

// Event is a change notification for the realtime feed. It is never persisted.
type Event struct {
	Name    string         `json:"name"`
	Type    EventType      `json:"type"`
	Subject Subject        `json:"subject"`
	Data    map[string]any `json:"data"`
}

// Valid reports whether the event carries a name, a known type and a fully populated subject.
func (e Event) Valid() bool {
	return e.Name != "" && e.Type.Valid() && e.Subject.Type != "" && e.Subject.ID != ""
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type RegisterStatus string

const (
	RegisterSuccess RegisterStatus = "success"
	RegisterNeutral RegisterStatus = "neutral"
	RegisterFail    RegisterStatus = "fail"
)

func (s RegisterStatus) Valid() bool {
	switch s {
	case RegisterSuccess, RegisterNeutral, RegisterFail:
		return true
	default:
		return false
	}
}

type RegisterResponse struct {
	Status  RegisterStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// Node is a rich text node as it travels over the API.
type Node struct {
	Type       string         `json:"type,omitempty"`
	Text       *string        `json:"text,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Children   []Node         `json:"children,omitempty"`
}

type User struct {
	ID            string    `json:"_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Token         string    `json:"token,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	JoinDate      time.Time `json:"joinDate"`
}

type Document struct {
	ID                string    `json:"_id"`
	Title             string    `json:"title"`
	CharCount         int       `json:"char_count"`
	CharCountNoSpaces int       `json:"char_count_no_spaces"`
	WordCount         int       `json:"word_count"`
	Content           []Node    `json:"content"`
	PermRead          []string  `json:"perm_read"`
	PermEdit          []string  `json:"perm_edit"`
	Owner             string    `json:"owner"`
	ReadLink          *string   `json:"read_link,omitempty"`
	EditLink          *string   `json:"edit_link,omitempty"`
	CreationDate      time.Time `json:"creation_date"`
	EditDate          time.Time `json:"edit_date"`
}

type CreateDocumentRequest struct {
	Owner string `json:"owner"`
	Title string `json:"title,omitempty"`
}

// PermissionRequest names the user ids to grant or revoke. Ids that are malformed, or that
// do not belong to an existing user when granting, are ignored by the server.
type PermissionRequest struct {
	Read []string `json:"read,omitempty"`
	Edit []string `json:"edit,omitempty"`
}
