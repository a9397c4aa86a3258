package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

func newStoreWithMock(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(db), mock
}

func TestGetDocumentReturnsNotFound(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT \* FROM "documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetDocument(context.Background(), uuid.New())
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.ErrNotFound), err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockDocumentSelectsForUpdate(t *testing.T) {
	store, mock := newStoreWithMock(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status"}).
			AddRow(id.String(), "Q3 report", "pending"))

	doc, err := store.LockDocument(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, doc.ID)
	require.Equal(t, models.StatusPending, doc.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockRefreshTokenSkipsRevoked(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT \* FROM "refresh_tokens" WHERE token_hash = \$1 AND revoked = false .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.LockRefreshToken(context.Background(), "abc123")
	require.True(t, apperr.Is(err, apperr.ErrNotFound), err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentRemovesDependentRowsFirst(t *testing.T) {
	store, mock := newStoreWithMock(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM "review_assignments" WHERE document_id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "reviews" WHERE document_id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "documents" WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteDocument(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDocumentWithoutRowsIsNotFound(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`UPDATE "documents" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateDocument(context.Background(), &models.Document{ID: uuid.New(), Status: models.StatusApproved})
	require.True(t, apperr.Is(err, apperr.ErrNotFound), err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSerializationFailureIsStoreConflict(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`INSERT INTO "reviews"`).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})

	err := store.CreateReview(context.Background(), &models.Review{
		DocumentID: uuid.New(),
		Status:     models.ReviewApproved,
	})
	require.True(t, apperr.Is(err, apperr.ErrStoreConflict), err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueViolationIsStoreConflict(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`INSERT INTO "review_assignments"`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_review_assignments_active"})

	err := store.CreateAssignment(context.Background(), &models.ReviewAssignment{
		DocumentID: uuid.New(),
		IsActive:   true,
	})
	require.True(t, apperr.Is(err, apperr.ErrStoreConflict), err)
}

func TestDeactivateAssignmentsReportsRows(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`UPDATE "review_assignments" SET "is_active"`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.DeactivateAssignments(context.Background(), uuid.New())
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnError(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.Transaction(context.Background(), func(tx Store) error {
		_, err := tx.LockDocument(context.Background(), uuid.New())
		return err
	})
	require.True(t, apperr.Is(err, apperr.ErrNotFound), err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchDocumentsScopesToOwner(t *testing.T) {
	store, mock := newStoreWithMock(t)
	owner := uuid.New()
	from := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	like := `%50\% off%`

	mock.ExpectQuery(`SELECT count\(\*\) FROM "documents" WHERE owner_id = \$1 ` +
		`AND \(title ILIKE \$2 OR description ILIKE \$3 OR author ILIKE \$4 OR tags ILIKE \$5\) ` +
		`AND created_at >= \$6`).
		WithArgs(owner, like, like, like, like, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "documents" WHERE owner_id = \$1 ` +
		`AND \(title ILIKE \$2 OR description ILIKE \$3 OR author ILIKE \$4 OR tags ILIKE \$5\) ` +
		`AND created_at >= \$6 ORDER BY "title" DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "title"}).
			AddRow(uuid.NewString(), owner.String(), "50% off plan"))

	docs, total, err := store.SearchDocuments(context.Background(), owner, SearchFilter{
		Query:     " 50% off ",
		DateFrom:  &from,
		SortField: SortTitle,
		SortDesc:  true,
	}, 20, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, docs, 1)
	require.Equal(t, owner, docs[0].OwnerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReviewBreaksTimestampTies(t *testing.T) {
	store, mock := newStoreWithMock(t)
	docID := uuid.New()
	reviewID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "reviews" WHERE document_id = \$1 ORDER BY created_at DESC,\s*id DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "status"}).
			AddRow(reviewID.String(), docID.String(), "rejected"))

	review, err := store.LatestReview(context.Background(), docID)
	require.NoError(t, err)
	require.Equal(t, reviewID, review.ID)
	require.Equal(t, models.ReviewRejected, review.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReviewWithoutRows(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT \* FROM "reviews"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	review, err := store.LatestReview(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, review)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\% off\_sale`, escapeLike("50% off_sale"))
	require.Equal(t, `a\\b`, escapeLike(`a\b`))
}
