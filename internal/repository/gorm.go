package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

// GormStore implements Store on top of gorm/postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
	if err != nil && isConflict(err) && !apperr.Is(err, apperr.ErrStoreConflict) {
		return apperr.Wrap(apperr.ErrStoreConflict, "transaction", err)
	}
	return err
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return mapError("create user", s.conn(ctx).Create(user).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, mapError("get user", err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("lower(email) = lower(?)", email).First(&user).Error; err != nil {
		return nil, mapError("get user by email", err)
	}
	return &user, nil
}

func (s *GormStore) UserExists(ctx context.Context, username, email string) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&models.User{}).
		Where("username = ? OR lower(email) = lower(?)", username, email).
		Count(&n).Error
	return n > 0, mapError("user exists", err)
}

func (s *GormStore) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	q := s.conn(ctx).Order("created_at DESC")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, mapError("list users", err)
	}
	return users, nil
}

func (s *GormStore) UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, mapError("users by ids", err)
	}
	return users, nil
}

func (s *GormStore) UpdateUser(ctx context.Context, user *models.User) error {
	result := s.conn(ctx).Model(user).
		Select("username", "email", "password", "role", "is_staff", "is_superuser", "is_active", "updated_at").
		Updates(user)
	if result.Error != nil {
		return mapError("update user", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "update user", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *GormStore) CountUsersByRole(ctx context.Context) (map[models.Role]int64, error) {
	var rows []struct {
		Role  models.Role
		Count int64
	}
	err := s.conn(ctx).Model(&models.User{}).
		Select("role, count(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, mapError("count users by role", err)
	}
	out := make(map[models.Role]int64, len(rows))
	for _, r := range rows {
		out[r.Role] = r.Count
	}
	return out, nil
}

func (s *GormStore) DetachUser(ctx context.Context, id uuid.UUID) error {
	db := s.conn(ctx)
	if err := db.Model(&models.Review{}).Where("reviewer_id = ?", id).
		Update("reviewer_id", nil).Error; err != nil {
		return mapError("detach reviewer", err)
	}
	if err := db.Model(&models.ReviewAssignment{}).Where("assigned_to_id = ?", id).
		Updates(map[string]interface{}{"assigned_to_id": nil, "is_active": false}).Error; err != nil {
		return mapError("detach assignee", err)
	}
	if err := db.Model(&models.ReviewAssignment{}).Where("assigned_by_id = ?", id).
		Update("assigned_by_id", nil).Error; err != nil {
		return mapError("detach assigner", err)
	}
	if err := db.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
		return mapError("delete refresh tokens", err)
	}
	return nil
}

func (s *GormStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result := s.conn(ctx).Delete(&models.User{}, "id = ?", id)
	if result.Error != nil {
		return mapError("delete user", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "delete user", gorm.ErrRecordNotFound)
	}
	return nil
}

// Refresh tokens

func (s *GormStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return mapError("create refresh token", s.conn(ctx).Create(token).Error)
}

func (s *GormStore) GetRefreshToken(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := s.conn(ctx).Where("token_hash = ? AND revoked = false", hash).First(&token).Error; err != nil {
		return nil, mapError("get refresh token", err)
	}
	return &token, nil
}

func (s *GormStore) LockRefreshToken(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_hash = ? AND revoked = false", hash).
		First(&token).Error
	if err != nil {
		return nil, mapError("lock refresh token", err)
	}
	return &token, nil
}

func (s *GormStore) RevokeRefreshToken(ctx context.Context, hash string) error {
	err := s.conn(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", hash).
		Update("revoked", true).Error
	return mapError("revoke refresh token", err)
}

// Documents

func (s *GormStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	return mapError("create document", s.conn(ctx).Omit(clause.Associations).Create(doc).Error)
}

func (s *GormStore) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	if err := s.conn(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, mapError("get document", err)
	}
	return &doc, nil
}

func (s *GormStore) LockDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, mapError("lock document", err)
	}
	return &doc, nil
}

func (s *GormStore) DocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []models.Document
	if err := s.conn(ctx).Where("id IN ?", ids).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, mapError("documents by ids", err)
	}
	return docs, nil
}

func (s *GormStore) UpdateDocument(ctx context.Context, doc *models.Document) error {
	result := s.conn(ctx).Model(doc).
		Select("status", "description", "tags", "updated_at").
		Updates(doc)
	if result.Error != nil {
		return mapError("update document", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "update document", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *GormStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	db := s.conn(ctx)
	if err := db.Where("document_id = ?", id).Delete(&models.ReviewAssignment{}).Error; err != nil {
		return mapError("delete assignments", err)
	}
	if err := db.Where("document_id = ?", id).Delete(&models.Review{}).Error; err != nil {
		return mapError("delete reviews", err)
	}
	result := db.Delete(&models.Document{}, "id = ?", id)
	if result.Error != nil {
		return mapError("delete document", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "delete document", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *GormStore) CountDocumentsByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Document{}).Where("owner_id = ?", ownerID).Count(&n).Error
	return n, mapError("count documents", err)
}

func (s *GormStore) SearchDocuments(ctx context.Context, ownerID uuid.UUID, f SearchFilter, limit, offset int) ([]models.Document, int64, error) {
	q := s.conn(ctx).Model(&models.Document{}).Where("owner_id = ?", ownerID)

	if text := strings.TrimSpace(f.Query); text != "" {
		like := "%" + escapeLike(text) + "%"
		q = q.Where("title ILIKE ? OR description ILIKE ? OR author ILIKE ? OR tags ILIKE ?", like, like, like, like)
	}
	from, until := f.Bounds()
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if until != nil {
		q = q.Where("created_at < ?", *until)
	}
	if f.FileType != "" {
		q = q.Where("file_type = ?", f.FileType)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		q = q.Where("category ILIKE ?", "%"+escapeLike(c)+"%")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, mapError("count search results", err)
	}

	column := f.SortField
	if column == "" {
		column = SortCreatedAt
	}
	var docs []models.Document
	err := q.Session(&gorm.Session{}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: f.SortDesc}).
		Limit(limit).
		Offset(offset).
		Find(&docs).Error
	if err != nil {
		return nil, 0, mapError("search documents", err)
	}
	return docs, total, nil
}

func (s *GormStore) DocumentFacets(ctx context.Context, ownerID uuid.UUID) ([]string, []string, error) {
	var fileTypes, categories []string
	err := s.conn(ctx).Model(&models.Document{}).
		Where("owner_id = ?", ownerID).
		Distinct().
		Order("file_type").
		Pluck("file_type", &fileTypes).Error
	if err != nil {
		return nil, nil, mapError("file type facets", err)
	}
	err = s.conn(ctx).Model(&models.Document{}).
		Where("owner_id = ? AND category <> ''", ownerID).
		Distinct().
		Order("category").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, nil, mapError("category facets", err)
	}
	return fileTypes, categories, nil
}

func (s *GormStore) UnreviewedDocuments(ctx context.Context, statuses []models.DocumentStatus, limit int) ([]models.Document, error) {
	var docs []models.Document
	err := s.conn(ctx).
		Where("status IN ?", statuses).
		Where("NOT EXISTS (SELECT 1 FROM reviews WHERE reviews.document_id = documents.id)").
		Order("created_at DESC").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, mapError("unreviewed documents", err)
	}
	return docs, nil
}

func (s *GormStore) CountDocumentsByStatus(ctx context.Context) (map[models.DocumentStatus]int64, error) {
	var rows []struct {
		Status models.DocumentStatus
		Count  int64
	}
	err := s.conn(ctx).Model(&models.Document{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, mapError("count documents by status", err)
	}
	out := make(map[models.DocumentStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// Reviews

func (s *GormStore) CreateReview(ctx context.Context, review *models.Review) error {
	return mapError("create review", s.conn(ctx).Omit(clause.Associations).Create(review).Error)
}

func (s *GormStore) ListReviews(ctx context.Context, documentID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := s.conn(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, mapError("list reviews", err)
	}
	return reviews, nil
}

// LatestReview breaks created_at ties on id so the pick is stable.
func (s *GormStore) LatestReview(ctx context.Context, documentID uuid.UUID) (*models.Review, error) {
	var reviews []models.Review
	err := s.conn(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&reviews).Error
	if err != nil {
		return nil, mapError("latest review", err)
	}
	if len(reviews) == 0 {
		return nil, nil
	}
	return &reviews[0], nil
}

func (s *GormStore) RecentReviewsBy(ctx context.Context, reviewerID uuid.UUID, limit int) ([]models.Review, error) {
	var reviews []models.Review
	err := s.conn(ctx).
		Where("reviewer_id = ?", reviewerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return nil, mapError("recent reviews", err)
	}
	return reviews, nil
}

func (s *GormStore) CountReviewsSince(ctx context.Context, status models.ReviewStatus, since time.Time) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Review{}).
		Where("status = ? AND created_at >= ?", status, since).
		Count(&n).Error
	return n, mapError("count reviews", err)
}

// Assignments

func (s *GormStore) CreateAssignment(ctx context.Context, assignment *models.ReviewAssignment) error {
	return mapError("create assignment", s.conn(ctx).Omit(clause.Associations).Create(assignment).Error)
}

func (s *GormStore) DeactivateAssignments(ctx context.Context, documentID uuid.UUID) (int64, error) {
	result := s.conn(ctx).Model(&models.ReviewAssignment{}).
		Where("document_id = ? AND is_active = ?", documentID, true).
		Update("is_active", false)
	return result.RowsAffected, mapError("deactivate assignments", result.Error)
}

func (s *GormStore) ActiveAssignment(ctx context.Context, documentID uuid.UUID) (*models.ReviewAssignment, error) {
	var rows []models.ReviewAssignment
	err := s.conn(ctx).
		Where("document_id = ? AND is_active = ?", documentID, true).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, mapError("active assignment", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *GormStore) ListAssignments(ctx context.Context, documentID uuid.UUID) ([]models.ReviewAssignment, error) {
	var rows []models.ReviewAssignment
	err := s.conn(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError("list assignments", err)
	}
	return rows, nil
}

func (s *GormStore) ActiveAssignmentsFor(ctx context.Context, reviewerID uuid.UUID, statuses []models.DocumentStatus) ([]models.ReviewAssignment, error) {
	var rows []models.ReviewAssignment
	err := s.conn(ctx).
		Joins("JOIN documents ON documents.id = review_assignments.document_id").
		Where("review_assignments.assigned_to_id = ? AND review_assignments.is_active = ?", reviewerID, true).
		Where("documents.status IN ?", statuses).
		Order("review_assignments.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError("assignments for reviewer", err)
	}
	return rows, nil
}

// Postgres error codes that mean the write lost a race with another one.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

func isConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return true
		}
	}
	return false
}

func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.ErrNotFound, op, err)
	case isConflict(err):
		return apperr.Wrap(apperr.ErrStoreConflict, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
