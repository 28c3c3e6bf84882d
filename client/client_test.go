package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/quire"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	assert.Error(t, err)
}

func TestRegistrationFormValidate(t *testing.T) {
	form := RegistrationForm{
		Action:   RegisterPath,
		Username: "alice",
		Password: "secret",
		Email:    "alice@example.com",
	}
	assert.NoError(t, form.Validate())

	noAction := form
	noAction.Action = ""
	assert.Error(t, noAction.Validate())

	badMethod := form
	badMethod.Method = "GET"
	assert.Error(t, badMethod.Validate())

	badEmail := form
	badEmail.Email = "alice"
	assert.Error(t, badEmail.Validate())
}

func TestSubmit(t *testing.T) {
	var got quire.RegisterRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, RegisterPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(quire.RegisterResponse{Status: quire.RegisterSuccess})
	})

	resp, err := c.Register(context.Background(), quire.RegisterRequest{
		Username: "alice",
		Password: "secret",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, quire.RegisterSuccess, resp.Status)
	assert.Equal(t, quire.RegisterRequest{Username: "alice", Password: "secret", Email: "alice@example.com"}, got)
}

func TestSubmitFailStatusIsAResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(quire.RegisterResponse{Status: quire.RegisterFail, Message: "username is already taken"})
	})

	resp, err := c.Submit(context.Background(), RegistrationForm{
		Action:   "/signup",
		Method:   "put",
		Username: "alice",
		Password: "secret",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, quire.RegisterFail, resp.Status)
	assert.Equal(t, "username is already taken", resp.Message)
}

func TestSubmitMalformedReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.Register(context.Background(), quire.RegisterRequest{
		Username: "alice",
		Password: "secret",
		Email:    "alice@example.com",
	})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestSubmitInvalidFormSendsNothing(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := c.Register(context.Background(), quire.RegisterRequest{Username: "alice"})
	assert.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestGetDocumentIsCached(t *testing.T) {
	id := "6650c0ffee0000000000abcd"
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/v1/documents/"+id, r.URL.Path)
		_ = json.NewEncoder(w).Encode(quire.Document{ID: id, Title: "Notes"})
	})

	doc, err := c.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Notes", doc.Title)
	assert.Equal(t, id, doc.ID)

	_, err = c.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	c.Invalidate(id)
	_, err = c.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHttpRequestError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"user not found"}`))
	})

	_, err := c.GetUser(context.Background(), "6650c0ffee0000000000abcd")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "user not found", statusErr.Message)
}

func TestAddPermissionsInvalidatesCache(t *testing.T) {
	id := "6650c0ffee0000000000abcd"
	var gets int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			atomic.AddInt32(&gets, 1)
			_ = json.NewEncoder(w).Encode(quire.Document{ID: id})
		case http.MethodPost:
			assert.Equal(t, "/api/v1/documents/"+id+"/permissions/add", r.URL.Path)
			var req quire.PermissionRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"6650c0ffee0000000000beef"}, req.Read)
			_ = json.NewEncoder(w).Encode(quire.Document{ID: id, PermRead: req.Read})
		}
	})

	_, err := c.GetDocument(context.Background(), id)
	require.NoError(t, err)

	doc, err := c.AddPermissions(context.Background(), id, quire.PermissionRequest{Read: []string{"6650c0ffee0000000000beef"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"6650c0ffee0000000000beef"}, doc.PermRead)

	_, err = c.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&gets))
}
