package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/quire"
	"github.com/totegamma/quire/internal/domain"
)

type DocumentUsecase struct {
	repo   DocumentRepository
	users  UserRepository
	events EventPublisher
	now    func() time.Time
}

func NewDocumentUsecase(repo DocumentRepository, users UserRepository, events EventPublisher) *DocumentUsecase {
	return &DocumentUsecase{
		repo:   repo,
		users:  users,
		events: events,
		now:    time.Now,
	}
}

// FindDocument returns the first document matching filter, or nil when there is none.
func (uc *DocumentUsecase) FindDocument(ctx context.Context, filter domain.DocumentFilter, projection ...string) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.FindDocument")
	defer span.End()

	if err := domain.ValidateProjection(projection, domain.DocumentFields); err != nil {
		return nil, err
	}

	doc, err := uc.repo.FindOne(ctx, filter, projection)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &doc, nil
}

func (uc *DocumentUsecase) FindDocuments(ctx context.Context, filter domain.DocumentFilter, projection ...string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.FindDocuments")
	defer span.End()

	if err := domain.ValidateProjection(projection, domain.DocumentFields); err != nil {
		return nil, err
	}

	docs, err := uc.repo.Find(ctx, filter, projection)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return docs, nil
}

func (uc *DocumentUsecase) CountDocuments(ctx context.Context, filter domain.DocumentFilter) (int64, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.CountDocuments")
	defer span.End()

	count, err := uc.repo.Count(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return count, nil
}

func (uc *DocumentUsecase) DocumentExists(ctx context.Context, filter domain.DocumentFilter) (bool, error) {
	count, err := uc.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateDocument creates an empty document owned by owner. An empty title becomes "Untitled".
func (uc *DocumentUsecase) CreateDocument(ctx context.Context, owner domain.ID, title string, returnCreated bool) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.CreateDocument")
	defer span.End()

	count, err := uc.users.Count(ctx, domain.UserByID(owner))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrOwnerNotFound
	}

	doc := domain.NewDocument(owner, title, uc.now().UTC())
	err = uc.repo.Insert(ctx, doc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("DocumentId", doc.ID.String()))

	uc.events.Publish(ctx, quire.ChannelDatabase, quire.EventAdd, documentSubject(doc.ID), map[string]any{
		domain.DocumentFieldOwner: owner.String(),
		domain.DocumentFieldTitle: doc.Title,
	})

	if !returnCreated {
		return nil, nil
	}
	return &doc, nil
}

// DeleteDocument removes the document if present. The remove event is published either way.
func (uc *DocumentUsecase) DeleteDocument(ctx context.Context, id domain.ID) error {
	ctx, span := tracer.Start(ctx, "Document.Usecase.DeleteDocument")
	defer span.End()

	_, err := uc.repo.Delete(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}

	uc.events.Publish(ctx, quire.ChannelDatabase, quire.EventRemove, documentSubject(id), nil)
	return nil
}

// SetDocument merges patch into the document and refreshes its edit date.
func (uc *DocumentUsecase) SetDocument(ctx context.Context, id domain.ID, patch domain.DocumentPatch, returnUpdated bool) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.SetDocument")
	defer span.End()

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	if err := uc.mustExist(ctx, id); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	updated, err := uc.repo.Update(ctx, id, domain.DocumentUpdate{Set: patch, EditDate: &now})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	uc.events.Publish(ctx, quire.ChannelDatabase, quire.EventChange, documentSubject(id), patch.Fields())

	if !returnUpdated {
		return nil, nil
	}
	return &updated, nil
}

func (uc *DocumentUsecase) SetContent(ctx context.Context, id domain.ID, content domain.Content, returnUpdated bool) (*domain.Document, error) {
	return uc.SetDocument(ctx, id, domain.DocumentPatch{Content: &content}, returnUpdated)
}

// AddPermissions grants read and edit access. A request whose ids are all already present
// is a no-op: nothing is written and no event is published.
func (uc *DocumentUsecase) AddPermissions(ctx context.Context, id domain.ID, delta domain.PermissionDelta, returnUpdated bool) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.AddPermissions")
	defer span.End()

	if err := uc.mustExist(ctx, id); err != nil {
		return nil, err
	}
	if delta.IsEmpty() {
		return uc.refreshed(ctx, id, returnUpdated)
	}

	redundant, err := uc.DocumentExists(ctx, domain.DocumentFilter{
		ID:         &id,
		ReadHasAll: delta.Read,
		EditHasAll: delta.Edit,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("Redundant", redundant))

	if redundant {
		return uc.refreshed(ctx, id, returnUpdated)
	}

	now := uc.now().UTC()
	updated, err := uc.repo.Update(ctx, id, domain.DocumentUpdate{
		AddRead:  delta.Read,
		AddEdit:  delta.Edit,
		EditDate: &now,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	uc.events.Publish(ctx, quire.ChannelDatabase, quire.EventChange, documentSubject(id), delta.Fields())

	if !returnUpdated {
		return nil, nil
	}
	return &updated, nil
}

// RemovePermissions revokes read and edit access. A request naming none of the present
// ids is a no-op: nothing is written and no event is published.
func (uc *DocumentUsecase) RemovePermissions(ctx context.Context, id domain.ID, delta domain.PermissionDelta, returnUpdated bool) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.RemovePermissions")
	defer span.End()

	if err := uc.mustExist(ctx, id); err != nil {
		return nil, err
	}
	if delta.IsEmpty() {
		return uc.refreshed(ctx, id, returnUpdated)
	}

	redundant, err := uc.DocumentExists(ctx, domain.DocumentFilter{
		ID:          &id,
		ReadHasNone: delta.Read,
		EditHasNone: delta.Edit,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("Redundant", redundant))

	if redundant {
		return uc.refreshed(ctx, id, returnUpdated)
	}

	now := uc.now().UTC()
	updated, err := uc.repo.Update(ctx, id, domain.DocumentUpdate{
		PullRead: delta.Read,
		PullEdit: delta.Edit,
		EditDate: &now,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	uc.events.Publish(ctx, quire.ChannelDatabase, quire.EventChange, documentSubject(id), delta.Fields())

	if !returnUpdated {
		return nil, nil
	}
	return &updated, nil
}

// GetUserPermissions returns the effective permission labels of user on the document,
// in the order read, edit, owner.
func (uc *DocumentUsecase) GetUserPermissions(ctx context.Context, user domain.ID, id domain.ID) (domain.Permissions, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.GetUserPermissions")
	defer span.End()

	doc, err := uc.repo.FindOne(ctx, domain.DocumentByID(id), []string{
		domain.DocumentFieldPermRead,
		domain.DocumentFieldPermEdit,
		domain.DocumentFieldOwner,
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFoundError{Resource: "document"}
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return doc.PermissionsOf(user), nil
}

// DocumentsAvailable returns every document user owns, can read or can edit.
func (uc *DocumentUsecase) DocumentsAvailable(ctx context.Context, user domain.ID, projection ...string) ([]domain.Document, error) {
	return uc.FindDocuments(ctx, domain.DocumentFilter{AvailableTo: &user}, projection...)
}

// IsValidDocumentID reports whether hex is a well formed id of an existing document.
func (uc *DocumentUsecase) IsValidDocumentID(ctx context.Context, hex string) (bool, error) {
	id, err := domain.ParseID(hex)
	if err != nil {
		return false, nil
	}
	return uc.DocumentExists(ctx, domain.DocumentByID(id))
}

// CreateShareLink issues a fresh link token granting perm, replacing any previous one.
func (uc *DocumentUsecase) CreateShareLink(ctx context.Context, id domain.ID, perm domain.Permission) (string, error) {
	token := uuid.NewString()
	patch, err := linkPatch(perm, token)
	if err != nil {
		return "", err
	}
	if _, err := uc.SetDocument(ctx, id, patch, false); err != nil {
		return "", err
	}
	return token, nil
}

func (uc *DocumentUsecase) RevokeShareLink(ctx context.Context, id domain.ID, perm domain.Permission) error {
	patch, err := linkPatch(perm, "")
	if err != nil {
		return err
	}
	_, err = uc.SetDocument(ctx, id, patch, false)
	return err
}

// FindDocumentByLink resolves a share token to its document and the permission it grants.
func (uc *DocumentUsecase) FindDocumentByLink(ctx context.Context, token string) (*domain.Document, domain.Permission, error) {
	if token == "" {
		return nil, "", domain.NotFoundError{Resource: "link"}
	}

	doc, err := uc.FindDocument(ctx, domain.DocumentFilter{EditLink: &token})
	if err != nil {
		return nil, "", err
	}
	if doc != nil {
		return doc, domain.PermissionEdit, nil
	}

	doc, err = uc.FindDocument(ctx, domain.DocumentFilter{ReadLink: &token})
	if err != nil {
		return nil, "", err
	}
	if doc != nil {
		return doc, domain.PermissionRead, nil
	}
	return nil, "", domain.NotFoundError{Resource: "link"}
}

func linkPatch(perm domain.Permission, token string) (domain.DocumentPatch, error) {
	switch perm {
	case domain.PermissionRead:
		return domain.DocumentPatch{ReadLink: &token}, nil
	case domain.PermissionEdit:
		return domain.DocumentPatch{EditLink: &token}, nil
	default:
		return domain.DocumentPatch{}, domain.ValidationError{Field: "permission", Reason: "links grant read or edit only"}
	}
}

func (uc *DocumentUsecase) mustExist(ctx context.Context, id domain.ID) error {
	exists, err := uc.DocumentExists(ctx, domain.DocumentByID(id))
	if err != nil {
		return err
	}
	if !exists {
		return domain.NotFoundError{Resource: "document"}
	}
	return nil
}

func (uc *DocumentUsecase) refreshed(ctx context.Context, id domain.ID, returnUpdated bool) (*domain.Document, error) {
	if !returnUpdated {
		return nil, nil
	}
	doc, err := uc.repo.FindOne(ctx, domain.DocumentByID(id), nil)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func documentSubject(id domain.ID) quire.Subject {
	return quire.Subject{Type: quire.SubjectDocument, ID: id.String()}
}
