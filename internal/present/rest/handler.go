package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/quire"
	"github.com/totegamma/quire/internal/domain"
	"github.com/totegamma/quire/internal/present/rest/presenter"
	"github.com/totegamma/quire/internal/service"
	"github.com/totegamma/quire/internal/usecase"
)

type Handler struct {
	users       *usecase.UserUsecase
	documents   *usecase.DocumentUsecase
	bus         *service.Bus
	eventBuffer int
}

func NewHandler(
	users *usecase.UserUsecase,
	documents *usecase.DocumentUsecase,
	bus *service.Bus,
	eventBuffer int,
) *Handler {
	return &Handler{
		users:       users,
		documents:   documents,
		bus:         bus,
		eventBuffer: eventBuffer,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/register", h.handleRegister)
	e.POST("/api/v1/login", h.handleLogin)

	e.GET("/api/v1/users/:id", h.handleGetUser)
	e.PATCH("/api/v1/users/:id", h.handleSetUser)
	e.DELETE("/api/v1/users/:id", h.handleDeleteUser)
	e.POST("/api/v1/users/:id/verify", h.handleVerifyUser)
	e.GET("/api/v1/users/:id/documents", h.handleUserDocuments)

	e.GET("/api/v1/documents", h.handleListDocuments)
	e.POST("/api/v1/documents", h.handleCreateDocument)
	e.GET("/api/v1/documents/:id", h.handleGetDocument)
	e.PATCH("/api/v1/documents/:id", h.handleSetDocument)
	e.PUT("/api/v1/documents/:id/content", h.handleSetContent)
	e.DELETE("/api/v1/documents/:id", h.handleDeleteDocument)
	e.POST("/api/v1/documents/:id/permissions/add", h.handleAddPermissions)
	e.POST("/api/v1/documents/:id/permissions/remove", h.handleRemovePermissions)
	e.GET("/api/v1/documents/:id/permissions/:user", h.handleUserPermissions)
	e.POST("/api/v1/documents/:id/links/:perm", h.handleCreateLink)
	e.DELETE("/api/v1/documents/:id/links/:perm", h.handleRevokeLink)
	e.GET("/api/v1/links/:token", h.handleResolveLink)

	e.GET("/realtime", h.handleRealtime)
}

func idParam(c echo.Context, name string) (domain.ID, error) {
	id, err := domain.ParseID(c.Param(name))
	if err != nil {
		return domain.ID{}, domain.ValidationError{Field: name, Reason: "malformed id"}
	}
	return id, nil
}

// fieldsParam reads the optional comma separated projection in ?fields=.
func fieldsParam(c echo.Context) []string {
	return listParam(c, "fields")
}

func listParam(c echo.Context, name string) []string {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// wellFormedID accepts any parsable id. Revocation uses it so that ids of deleted users can
// still be removed from a document.
func wellFormedID(_ context.Context, hex string) (bool, error) {
	return domain.IsValidID(hex), nil
}

func permissionDelta(ctx context.Context, req quire.PermissionRequest, exists usecase.IDPredicate) (domain.PermissionDelta, error) {
	read, err := usecase.ValidateIDs(ctx, req.Read, exists)
	if err != nil {
		return domain.PermissionDelta{}, err
	}
	edit, err := usecase.ValidateIDs(ctx, req.Edit, exists)
	if err != nil {
		return domain.PermissionDelta{}, err
	}
	return domain.PermissionDelta{Read: read, Edit: edit}, nil
}

// handleRegister answers with a status the registration form understands: neutral for input
// the user can correct, fail when the account could not be created.
func (h *Handler) handleRegister(c echo.Context) error {
	ctx := c.Request().Context()

	var req quire.RegisterRequest
	err := c.Bind(&req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, quire.RegisterResponse{
			Status:  quire.RegisterNeutral,
			Message: "malformed request",
		})
	}

	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, quire.RegisterResponse{
			Status:  quire.RegisterNeutral,
			Message: err.Error(),
		})
	}

	_, err = h.users.CreateUser(ctx, usecase.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, false)
	if errors.Is(err, domain.ErrConflict) {
		return c.JSON(http.StatusConflict, quire.RegisterResponse{
			Status:  quire.RegisterFail,
			Message: "username is already taken",
		})
	}
	if err != nil {
		slog.ErrorContext(
			ctx, "registration failed",
			slog.String("error", err.Error()),
			slog.String("module", "rest"),
		)
		return c.JSON(http.StatusInternalServerError, quire.RegisterResponse{
			Status:  quire.RegisterFail,
			Message: "registration failed",
		})
	}

	return c.JSON(http.StatusOK, quire.RegisterResponse{Status: quire.RegisterSuccess})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	user, err := h.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, user)
}

func (h *Handler) handleGetUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	user, err := h.users.FindUser(ctx, domain.UserByID(id), fieldsParam(c)...)
	if err != nil {
		return presenter.Error(c, err)
	}
	if user == nil {
		return presenter.NotFound(c, "user not found")
	}
	return presenter.OK(c, user)
}

func (h *Handler) handleSetUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var patch domain.UserPatch
	err = c.Bind(&patch)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	user, err := h.users.SetUser(ctx, id, patch, true)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, user)
}

func (h *Handler) handleDeleteUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.users.DeleteUser(ctx, id); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.NoContent(c)
}

func (h *Handler) handleVerifyUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.users.SetEmailVerified(ctx, id); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.NoContent(c)
}

func (h *Handler) handleUserDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	docs, err := h.documents.DocumentsAvailable(ctx, id, fieldsParam(c)...)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, docs)
}

// handleListDocuments returns the documents named in ?ids=. Unknown or malformed ids are skipped.
func (h *Handler) handleListDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	ids, err := usecase.ValidateIDs(ctx, listParam(c, "ids"), h.documents.IsValidDocumentID)
	if err != nil {
		return presenter.Error(c, err)
	}
	if len(ids) == 0 {
		return presenter.OK(c, []domain.Document{})
	}

	docs, err := h.documents.FindDocuments(ctx, domain.DocumentFilter{IDs: ids}, fieldsParam(c)...)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, docs)
}

func (h *Handler) handleCreateDocument(c echo.Context) error {
	ctx := c.Request().Context()

	var req quire.CreateDocumentRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Owner == "" {
		return presenter.BadRequestMessage(c, "owner is required")
	}
	owner, err := domain.ParseID(req.Owner)
	if err != nil || owner.IsZero() {
		return presenter.BadRequestMessage(c, "owner is malformed")
	}

	doc, err := h.documents.CreateDocument(ctx, owner, req.Title, true)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, doc)
}

func (h *Handler) handleGetDocument(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	doc, err := h.documents.FindDocument(ctx, domain.DocumentByID(id), fieldsParam(c)...)
	if err != nil {
		return presenter.Error(c, err)
	}
	if doc == nil {
		return presenter.NotFound(c, "document not found")
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleSetDocument(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var patch domain.DocumentPatch
	err = c.Bind(&patch)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	doc, err := h.documents.SetDocument(ctx, id, patch, true)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleSetContent(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var content domain.Content
	err = c.Bind(&content)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	doc, err := h.documents.SetContent(ctx, id, content, true)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleDeleteDocument(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.documents.DeleteDocument(ctx, id); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.NoContent(c)
}

// handleAddPermissions grants access to the listed ids that belong to existing users.
func (h *Handler) handleAddPermissions(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var req quire.PermissionRequest
	err = c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	delta, err := permissionDelta(ctx, req, h.users.IsValidUserID)
	if err != nil {
		return presenter.Error(c, err)
	}

	doc, err := h.documents.AddPermissions(ctx, id, delta, true)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleRemovePermissions(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var req quire.PermissionRequest
	err = c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	delta, err := permissionDelta(ctx, req, wellFormedID)
	if err != nil {
		return presenter.Error(c, err)
	}

	doc, err := h.documents.RemovePermissions(ctx, id, delta, true)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleUserPermissions(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	user, err := idParam(c, "user")
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	perms, err := h.documents.GetUserPermissions(ctx, user, id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, perms)
}

func (h *Handler) handleCreateLink(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	perm, err := domain.ParsePermission(c.Param("perm"))
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	token, err := h.documents.CreateShareLink(ctx, id, perm)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, echo.Map{"token": token, "permission": perm})
}

func (h *Handler) handleRevokeLink(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := idParam(c, "id")
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	perm, err := domain.ParsePermission(c.Param("perm"))
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.documents.RevokeShareLink(ctx, id, perm); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.NoContent(c)
}

func (h *Handler) handleResolveLink(c echo.Context) error {
	ctx := c.Request().Context()

	doc, perm, err := h.documents.FindDocumentByLink(ctx, c.Param("token"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"document": doc, "permission": perm})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type     string   `json:"type"`
	Subjects []string `json:"subjects"`
}

// handleRealtime streams bus events to the socket. A "listen" request narrows the stream to
// the given subject types; an empty list means every event.
func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	sub := h.bus.Subscribe(h.eventBuffer)
	defer sub.Close()

	input := make(chan []string)
	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Subjects:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, "Socket subscribe",
					slog.Any("subjects", req.Subjects),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	var subjects []string
	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case subjects = <-input:
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !matchSubject(subjects, event) {
				continue
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}

func matchSubject(subjects []string, event quire.Event) bool {
	if len(subjects) == 0 {
		return true
	}
	for _, s := range subjects {
		if s == event.Subject.Type {
			return true
		}
	}
	return false
}
