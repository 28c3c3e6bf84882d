package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/totegamma/quire"
)

const RegisterPath = "/api/v1/register"

// RegistrationForm mirrors the sign up form: where it posts to and what the user typed.
type RegistrationForm struct {
	Action   string
	Method   string
	Username string
	Password string
	Email    string
}

func (f RegistrationForm) Request() quire.RegisterRequest {
	return quire.RegisterRequest{
		Username: f.Username,
		Password: f.Password,
		Email:    f.Email,
	}
}

func (f RegistrationForm) Validate() error {
	if f.Action == "" {
		return fmt.Errorf("form action is required")
	}
	switch normalizeMethod(f.Method) {
	case http.MethodPost, http.MethodPut:
	default:
		return fmt.Errorf("unsupported form method %q", f.Method)
	}
	return f.Request().Validate()
}

// Submit sends the form and returns the server's verdict. Any reply carrying a registration
// status is a result, whatever its HTTP code; anything else is an error.
func (c *Client) Submit(ctx context.Context, form RegistrationForm) (quire.RegisterResponse, error) {
	if err := form.Validate(); err != nil {
		return quire.RegisterResponse{}, err
	}

	target, err := c.resolve(form.Action)
	if err != nil {
		return quire.RegisterResponse{}, err
	}

	payload, err := json.Marshal(form.Request())
	if err != nil {
		return quire.RegisterResponse{}, fmt.Errorf("failed to encode form: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, normalizeMethod(form.Method), target, bytes.NewReader(payload))
	if err != nil {
		return quire.RegisterResponse{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return quire.RegisterResponse{}, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	var result quire.RegisterResponse
	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil || !result.Status.Valid() {
		return quire.RegisterResponse{}, &StatusError{Code: resp.StatusCode, Message: "malformed registration response"}
	}
	return result, nil
}

// Register submits a registration to the server's default endpoint.
func (c *Client) Register(ctx context.Context, req quire.RegisterRequest) (quire.RegisterResponse, error) {
	return c.Submit(ctx, RegistrationForm{
		Action:   RegisterPath,
		Method:   http.MethodPost,
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
}
