package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/quire"
)

const (
	defaultTimeout = 3 * time.Second
	userAgent      = "quire-client/1.0"
)

// Client talks to a quire server. Read responses are cached briefly per resource.
type Client struct {
	client  *http.Client
	cache   *cache.Cache
	baseURL *url.URL
}

func New(baseURL string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %v", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}

	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:  &httpClient,
		cache:   cache.New(1*time.Minute, 5*time.Minute),
		baseURL: base,
	}
	httpClient.Transport = c
	return c, nil
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %v", ref, err)
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// HttpRequest sends body as JSON (when not nil) and decodes a 2xx reply into response.
func (c *Client) HttpRequest(ctx context.Context, method, path string, body, response any) error {
	target, err := c.resolve(path)
	if err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	slog.DebugContext(ctx, "request", slog.String("method", method), slog.String("url", target), slog.String("module", "client"))
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return &StatusError{Code: resp.StatusCode, Message: e.Error}
		}
		return &StatusError{Code: resp.StatusCode}
	}

	if response == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

// StatusError is returned for non 2xx replies.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Message)
}

func (c *Client) GetUser(ctx context.Context, id string) (quire.User, error) {
	cacheKey := "user:" + id
	x, found := c.cache.Get(cacheKey)
	if found {
		return x.(quire.User), nil
	}

	var user quire.User
	err := c.HttpRequest(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(id), nil, &user)
	if err != nil {
		return quire.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	c.cache.Set(cacheKey, user, cache.DefaultExpiration)
	return user, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (quire.Document, error) {
	cacheKey := "document:" + id
	x, found := c.cache.Get(cacheKey)
	if found {
		return x.(quire.Document), nil
	}

	var doc quire.Document
	err := c.HttpRequest(ctx, http.MethodGet, "/api/v1/documents/"+url.PathEscape(id), nil, &doc)
	if err != nil {
		return quire.Document{}, fmt.Errorf("failed to get document: %w", err)
	}

	c.cache.Set(cacheKey, doc, cache.DefaultExpiration)
	return doc, nil
}

// Invalidate drops any cached copy of the user or document with id.
func (c *Client) Invalidate(id string) {
	c.cache.Delete("user:" + id)
	c.cache.Delete("document:" + id)
}

func (c *Client) CreateDocument(ctx context.Context, owner, title string) (quire.Document, error) {
	var doc quire.Document
	err := c.HttpRequest(ctx, http.MethodPost, "/api/v1/documents", quire.CreateDocumentRequest{
		Owner: owner,
		Title: title,
	}, &doc)
	if err != nil {
		return quire.Document{}, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

func (c *Client) AddPermissions(ctx context.Context, id string, req quire.PermissionRequest) (quire.Document, error) {
	return c.changePermissions(ctx, id, "add", req)
}

func (c *Client) RemovePermissions(ctx context.Context, id string, req quire.PermissionRequest) (quire.Document, error) {
	return c.changePermissions(ctx, id, "remove", req)
}

func (c *Client) changePermissions(ctx context.Context, id, op string, req quire.PermissionRequest) (quire.Document, error) {
	var doc quire.Document
	path := "/api/v1/documents/" + url.PathEscape(id) + "/permissions/" + op
	err := c.HttpRequest(ctx, http.MethodPost, path, req, &doc)
	c.Invalidate(id)
	if err != nil {
		return quire.Document{}, fmt.Errorf("failed to %s permissions: %w", op, err)
	}
	return doc, nil
}

// GetUserPermissions returns the labels (read, edit, owner) user holds on the document.
func (c *Client) GetUserPermissions(ctx context.Context, id, user string) ([]string, error) {
	var perms []string
	path := "/api/v1/documents/" + url.PathEscape(id) + "/permissions/" + url.PathEscape(user)
	err := c.HttpRequest(ctx, http.MethodGet, path, nil, &perms)
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions: %w", err)
	}
	return perms, nil
}

func normalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return http.MethodPost
	}
	return method
}
