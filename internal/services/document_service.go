package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/access"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/repository"
)

// MaxUploadSize is the largest accepted document body.
const MaxUploadSize int64 = 10 << 20

// BlobStore keeps document bodies under opaque references.
type BlobStore interface {
	Put(ctx context.Context, name string, data io.Reader) (ref string, size int64, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

type UploadInput struct {
	Title       string
	Description string
	Author      string
	Category    string
	Tags        string
	Filename    string
	// Size is the declared length of Body; the written length is
	// checked again.
	Size int64
	Body io.Reader
}

type DocumentService struct {
	store   repository.Store
	blobs   BlobStore
	events  events.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewDocumentService(store repository.Store, blobs BlobStore, pub events.Publisher, m *metrics.Metrics) *DocumentService {
	return &DocumentService{store: store, blobs: blobs, events: pub, metrics: m, now: time.Now}
}

// ValidateUpload enforces the upload boundary: a title, a supported
// extension and the size limit.
func ValidateUpload(in *UploadInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.NewValidationError("title is required")
	}
	if strings.TrimSpace(in.Filename) == "" {
		return apperr.NewValidationError("file is required")
	}
	if models.FileTypeFromName(in.Filename) == models.FileTypeOther {
		return apperr.NewValidationError(
			fmt.Sprintf("unsupported file extension %q", filepath.Ext(in.Filename)),
			models.SupportedFileTypes...,
		)
	}
	if in.Size > MaxUploadSize {
		return apperr.NewValidationError("file exceeds the 10 MiB limit")
	}
	return nil
}

func rejectionReason(in *UploadInput) string {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return "title"
	case strings.TrimSpace(in.Filename) == "":
		return "missing_file"
	case models.FileTypeFromName(in.Filename) == models.FileTypeOther:
		return "extension"
	}
	return "size"
}

// Upload validates the input before touching the blob store or the
// database, then creates the document.
func (s *DocumentService) Upload(ctx context.Context, actorID uuid.UUID, in *UploadInput) (*models.Document, error) {
	if err := ValidateUpload(in); err != nil {
		s.metrics.UploadRejected(rejectionReason(in))
		return nil, err
	}
	owner, err := loadActor(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	doc, err := s.Create(ctx, owner, in)
	if err != nil {
		return nil, err
	}
	s.metrics.Upload(doc.FileType)
	announce(ctx, s.events, events.Event{
		Type:       events.DocumentUploaded,
		DocumentID: doc.ID,
		ActorID:    owner.ID,
		Status:     string(doc.Status),
		OccurredAt: doc.CreatedAt,
	})
	slog.Info("document uploaded",
		"action", "document.upload",
		"document_id", doc.ID.String(),
		"user_id", owner.ID.String(),
		"file_type", doc.FileType,
		"size", doc.Size,
	)
	return doc, nil
}

// Create stores the blob and the metadata row. File type comes from the
// lower-cased extension (unknown ones become "other") and size from the
// bytes written; neither changes afterwards. A blob whose row could not be
// inserted is removed again.
func (s *DocumentService) Create(ctx context.Context, owner *models.User, in *UploadInput) (*models.Document, error) {
	ref, size, err := s.blobs.Put(ctx, in.Filename, io.LimitReader(in.Body, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}
	if size > MaxUploadSize {
		s.discardBlob(ctx, ref)
		s.metrics.UploadRejected("size")
		return nil, apperr.NewValidationError("file exceeds the 10 MiB limit")
	}

	now := s.now()
	doc := &models.Document{
		ID:               uuid.New(),
		OwnerID:          owner.ID,
		Title:            strings.TrimSpace(in.Title),
		Description:      strings.TrimSpace(in.Description),
		BlobRef:          ref,
		OriginalFilename: filepath.Base(in.Filename),
		FileType:         models.FileTypeFromName(in.Filename),
		Size:             size,
		Author:           strings.TrimSpace(in.Author),
		Category:         strings.TrimSpace(in.Category),
		Tags:             strings.TrimSpace(in.Tags),
		Status:           models.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		s.discardBlob(ctx, ref)
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) discardBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		slog.Error("remove orphaned blob failed", "action", "document.upload", "blob", ref, "error", err)
	}
}

// Get returns the document when the actor may view it.
func (s *DocumentService) Get(ctx context.Context, actorID, id uuid.UUID) (*models.Document, error) {
	actor, err := loadActor(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(actor, doc) {
		return nil, apperr.New(apperr.ErrForbidden, "you do not have access to this document")
	}
	return doc, nil
}

// Download opens the blob after the same check as Get. The caller closes
// the reader.
func (s *DocumentService) Download(ctx context.Context, actorID, id uuid.UUID) (*models.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.blobs.Open(ctx, doc.BlobRef)
	if err != nil {
		return nil, nil, err
	}
	return doc, body, nil
}

// ListMine returns the actor's own documents newest first.
func (s *DocumentService) ListMine(ctx context.Context, actorID uuid.UUID) ([]models.Document, error) {
	actor, err := loadActor(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	filter := repository.SearchFilter{SortField: repository.SortCreatedAt, SortDesc: true}
	docs, _, err := s.store.SearchDocuments(ctx, actor.ID, filter, -1, 0)
	return docs, err
}

// Delete removes the document's assignments, reviews and row, then its
// blob, all inside one transaction. When the blob cannot be removed the
// transaction rolls back and both stay intact.
func (s *DocumentService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	var removed *models.Document
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		actor, err := loadActor(ctx, tx, actorID)
		if err != nil {
			return err
		}
		doc, err := tx.LockDocument(ctx, id)
		if err != nil {
			return err
		}
		if !access.CanDelete(actor, doc) {
			return apperr.New(apperr.ErrForbidden, "only the owner or a moderator can delete this document")
		}
		if err := tx.DeleteDocument(ctx, doc.ID); err != nil {
			return err
		}
		if err := s.blobs.Delete(ctx, doc.BlobRef); err != nil {
			return fmt.Errorf("delete blob: %w", err)
		}
		removed = doc
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.ErrStoreConflict) {
			s.metrics.StoreConflict("document.delete")
		}
		return err
	}

	announce(ctx, s.events, events.Event{
		Type:       events.DocumentDeleted,
		DocumentID: removed.ID,
		ActorID:    actorID,
		OccurredAt: s.now(),
	})
	slog.Info("document deleted", "action", "document.delete", "document_id", removed.ID.String(), "user_id", actorID.String())
	return nil
}
