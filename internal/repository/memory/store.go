// Package memory is an in-process repository.Store used by tests and local
// runs without Postgres. Transactions are serialized and roll back by
// restoring a snapshot, so handlers and services observe the same
// atomicity they get from the database.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/repository"
)

var errForeignKey = errors.New("violates foreign key constraint")

type dataset struct {
	users       map[uuid.UUID]models.User
	tokens      map[string]models.RefreshToken
	documents   map[uuid.UUID]models.Document
	reviews     []models.Review
	assignments []models.ReviewAssignment
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		users:       make(map[uuid.UUID]models.User, len(d.users)),
		tokens:      make(map[string]models.RefreshToken, len(d.tokens)),
		documents:   make(map[uuid.UUID]models.Document, len(d.documents)),
		reviews:     append([]models.Review(nil), d.reviews...),
		assignments: append([]models.ReviewAssignment(nil), d.assignments...),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	for k, v := range d.documents {
		c.documents[k] = v
	}
	return c
}

type state struct {
	mu   sync.Mutex
	data *dataset
}

// Store implements repository.Store in memory.
type Store struct {
	st   *state
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: &state{data: &dataset{
		users:     map[uuid.UUID]models.User{},
		tokens:    map[string]models.RefreshToken{},
		documents: map[uuid.UUID]models.Document{},
	}}}
}

// lock serializes access for callers outside a transaction. Inside a
// transaction the lock is already held.
func (m *Store) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.st.mu.Lock()
	return m.st.mu.Unlock
}

func (m *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.st.mu.Lock()
	defer m.st.mu.Unlock()

	snapshot := m.st.data.clone()
	if err := fn(&Store{st: m.st, inTx: true}); err != nil {
		m.st.data = snapshot
		return err
	}
	return nil
}

func (m *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
}

func conflict(op, what string) error {
	return apperr.Wrap(apperr.ErrStoreConflict, op, fmt.Errorf("duplicate %s", what))
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

// Users

func (m *Store) CreateUser(ctx context.Context, user *models.User) error {
	defer m.lock()()
	d := m.st.data
	for _, u := range d.users {
		if u.Username == user.Username {
			return conflict("create user", "username")
		}
		if strings.EqualFold(u.Email, user.Email) {
			return conflict("create user", "email")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	stamp(&user.CreatedAt)
	stamp(&user.UpdatedAt)
	d.users[user.ID] = *user
	return nil
}

func (m *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer m.lock()()
	u, ok := m.st.data.users[id]
	if !ok {
		return nil, notFound("get user")
	}
	return &u, nil
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer m.lock()()
	for _, u := range m.st.data.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, notFound("get user by email")
}

func (m *Store) UserExists(ctx context.Context, username, email string) (bool, error) {
	defer m.lock()()
	for _, u := range m.st.data.users {
		if u.Username == username || strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Store) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	defer m.lock()()
	var out []models.User
	for _, u := range m.st.data.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	defer m.lock()()
	var out []models.User
	for _, id := range ids {
		if u, ok := m.st.data.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Store) UpdateUser(ctx context.Context, user *models.User) error {
	defer m.lock()()
	d := m.st.data
	if _, ok := d.users[user.ID]; !ok {
		return notFound("update user")
	}
	for id, u := range d.users {
		if id == user.ID {
			continue
		}
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return conflict("update user", "username or email")
		}
	}
	user.UpdatedAt = time.Now()
	d.users[user.ID] = *user
	return nil
}

func (m *Store) CountUsersByRole(ctx context.Context) (map[models.Role]int64, error) {
	defer m.lock()()
	out := map[models.Role]int64{}
	for _, u := range m.st.data.users {
		out[u.Role]++
	}
	return out, nil
}

func (m *Store) DetachUser(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	d := m.st.data
	for i := range d.reviews {
		if r := d.reviews[i].ReviewerID; r != nil && *r == id {
			d.reviews[i].ReviewerID = nil
		}
	}
	for i := range d.assignments {
		a := &d.assignments[i]
		if a.AssignedToID != nil && *a.AssignedToID == id {
			a.AssignedToID = nil
			a.IsActive = false
		}
		if a.AssignedByID != nil && *a.AssignedByID == id {
			a.AssignedByID = nil
		}
	}
	for hash, t := range d.tokens {
		if t.UserID == id {
			delete(d.tokens, hash)
		}
	}
	return nil
}

func (m *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	d := m.st.data
	if _, ok := d.users[id]; !ok {
		return notFound("delete user")
	}
	for _, doc := range d.documents {
		if doc.OwnerID == id {
			return fmt.Errorf("delete user: %w", errForeignKey)
		}
	}
	for hash, t := range d.tokens {
		if t.UserID == id {
			delete(d.tokens, hash)
		}
	}
	delete(d.users, id)
	return nil
}

// Refresh tokens

func (m *Store) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	defer m.lock()()
	d := m.st.data
	if _, ok := d.users[token.UserID]; !ok {
		return fmt.Errorf("create refresh token: %w", errForeignKey)
	}
	if _, ok := d.tokens[token.TokenHash]; ok {
		return conflict("create refresh token", "token hash")
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	stamp(&token.CreatedAt)
	d.tokens[token.TokenHash] = *token
	return nil
}

func (m *Store) GetRefreshToken(ctx context.Context, hash string) (*models.RefreshToken, error) {
	defer m.lock()()
	t, ok := m.st.data.tokens[hash]
	if !ok || t.Revoked {
		return nil, notFound("get refresh token")
	}
	return &t, nil
}

func (m *Store) LockRefreshToken(ctx context.Context, hash string) (*models.RefreshToken, error) {
	return m.GetRefreshToken(ctx, hash)
}

func (m *Store) RevokeRefreshToken(ctx context.Context, hash string) error {
	defer m.lock()()
	if t, ok := m.st.data.tokens[hash]; ok {
		t.Revoked = true
		m.st.data.tokens[hash] = t
	}
	return nil
}

// Documents

func (m *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	defer m.lock()()
	d := m.st.data
	if _, ok := d.users[doc.OwnerID]; !ok {
		return fmt.Errorf("create document: %w", errForeignKey)
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	stamp(&doc.CreatedAt)
	stamp(&doc.UpdatedAt)
	d.documents[doc.ID] = *doc
	return nil
}

func (m *Store) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	defer m.lock()()
	doc, ok := m.st.data.documents[id]
	if !ok {
		return nil, notFound("get document")
	}
	return &doc, nil
}

func (m *Store) LockDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return m.GetDocument(ctx, id)
}

func (m *Store) DocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error) {
	defer m.lock()()
	var out []models.Document
	for _, id := range ids {
		if doc, ok := m.st.data.documents[id]; ok {
			out = append(out, doc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) UpdateDocument(ctx context.Context, doc *models.Document) error {
	defer m.lock()()
	d := m.st.data
	current, ok := d.documents[doc.ID]
	if !ok {
		return notFound("update document")
	}
	doc.UpdatedAt = time.Now()
	current.Status = doc.Status
	current.Description = doc.Description
	current.Tags = doc.Tags
	current.UpdatedAt = doc.UpdatedAt
	d.documents[doc.ID] = current
	return nil
}

func (m *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	d := m.st.data
	if _, ok := d.documents[id]; !ok {
		return notFound("delete document")
	}
	reviews := d.reviews[:0:0]
	for _, r := range d.reviews {
		if r.DocumentID != id {
			reviews = append(reviews, r)
		}
	}
	assignments := d.assignments[:0:0]
	for _, a := range d.assignments {
		if a.DocumentID != id {
			assignments = append(assignments, a)
		}
	}
	d.reviews, d.assignments = reviews, assignments
	delete(d.documents, id)
	return nil
}

func (m *Store) CountDocumentsByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	defer m.lock()()
	var n int64
	for _, doc := range m.st.data.documents {
		if doc.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *Store) SearchDocuments(ctx context.Context, ownerID uuid.UUID, f repository.SearchFilter, limit, offset int) ([]models.Document, int64, error) {
	defer m.lock()()
	var matched []models.Document
	for _, doc := range m.st.data.documents {
		if doc.OwnerID == ownerID && f.Matches(&doc) {
			matched = append(matched, doc)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if f.Less(&matched[i], &matched[j]) {
			return true
		}
		if f.Less(&matched[j], &matched[i]) {
			return false
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.Document{}, total, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (m *Store) DocumentFacets(ctx context.Context, ownerID uuid.UUID) ([]string, []string, error) {
	defer m.lock()()
	types := map[string]struct{}{}
	categories := map[string]struct{}{}
	for _, doc := range m.st.data.documents {
		if doc.OwnerID != ownerID {
			continue
		}
		types[doc.FileType] = struct{}{}
		if doc.Category != "" {
			categories[doc.Category] = struct{}{}
		}
	}
	return sortedKeys(types), sortedKeys(categories), nil
}

func (m *Store) UnreviewedDocuments(ctx context.Context, statuses []models.DocumentStatus, limit int) ([]models.Document, error) {
	defer m.lock()()
	d := m.st.data
	reviewed := map[uuid.UUID]bool{}
	for _, r := range d.reviews {
		reviewed[r.DocumentID] = true
	}
	var out []models.Document
	for _, doc := range d.documents {
		if !reviewed[doc.ID] && hasStatus(statuses, doc.Status) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) CountDocumentsByStatus(ctx context.Context) (map[models.DocumentStatus]int64, error) {
	defer m.lock()()
	out := map[models.DocumentStatus]int64{}
	for _, doc := range m.st.data.documents {
		out[doc.Status]++
	}
	return out, nil
}

// Reviews

func (m *Store) CreateReview(ctx context.Context, review *models.Review) error {
	defer m.lock()()
	d := m.st.data
	if _, ok := d.documents[review.DocumentID]; !ok {
		return fmt.Errorf("create review: %w", errForeignKey)
	}
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	stamp(&review.CreatedAt)
	d.reviews = append(d.reviews, *review)
	return nil
}

// newestFirst walks rows from the most recently inserted so equal
// timestamps keep insertion order reversed.
func newestFirst(rows []models.Review, keep func(models.Review) bool) []models.Review {
	var out []models.Review
	for i := len(rows) - 1; i >= 0; i-- {
		if keep(rows[i]) {
			out = append(out, rows[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Store) ListReviews(ctx context.Context, documentID uuid.UUID) ([]models.Review, error) {
	defer m.lock()()
	return newestFirst(m.st.data.reviews, func(r models.Review) bool {
		return r.DocumentID == documentID
	}), nil
}

func (m *Store) LatestReview(ctx context.Context, documentID uuid.UUID) (*models.Review, error) {
	reviews, err := m.ListReviews(ctx, documentID)
	if err != nil || len(reviews) == 0 {
		return nil, err
	}
	return &reviews[0], nil
}

func (m *Store) RecentReviewsBy(ctx context.Context, reviewerID uuid.UUID, limit int) ([]models.Review, error) {
	defer m.lock()()
	out := newestFirst(m.st.data.reviews, func(r models.Review) bool {
		return r.ReviewerID != nil && *r.ReviewerID == reviewerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) CountReviewsSince(ctx context.Context, status models.ReviewStatus, since time.Time) (int64, error) {
	defer m.lock()()
	var n int64
	for _, r := range m.st.data.reviews {
		if r.Status == status && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Assignments

func (m *Store) CreateAssignment(ctx context.Context, assignment *models.ReviewAssignment) error {
	defer m.lock()()
	d := m.st.data
	if _, ok := d.documents[assignment.DocumentID]; !ok {
		return fmt.Errorf("create assignment: %w", errForeignKey)
	}
	if assignment.IsActive {
		for _, a := range d.assignments {
			if a.DocumentID == assignment.DocumentID && a.IsActive {
				return conflict("create assignment", "active assignment")
			}
		}
	}
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	stamp(&assignment.CreatedAt)
	stamp(&assignment.UpdatedAt)
	d.assignments = append(d.assignments, *assignment)
	return nil
}

func (m *Store) DeactivateAssignments(ctx context.Context, documentID uuid.UUID) (int64, error) {
	defer m.lock()()
	var n int64
	for i := range m.st.data.assignments {
		a := &m.st.data.assignments[i]
		if a.DocumentID == documentID && a.IsActive {
			a.IsActive = false
			a.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *Store) ActiveAssignment(ctx context.Context, documentID uuid.UUID) (*models.ReviewAssignment, error) {
	defer m.lock()()
	for _, a := range m.st.data.assignments {
		if a.DocumentID == documentID && a.IsActive {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Store) assignments(keep func(models.ReviewAssignment) bool) []models.ReviewAssignment {
	rows := m.st.data.assignments
	var out []models.ReviewAssignment
	for i := len(rows) - 1; i >= 0; i-- {
		if keep(rows[i]) {
			out = append(out, rows[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Store) ListAssignments(ctx context.Context, documentID uuid.UUID) ([]models.ReviewAssignment, error) {
	defer m.lock()()
	return m.assignments(func(a models.ReviewAssignment) bool {
		return a.DocumentID == documentID
	}), nil
}

func (m *Store) ActiveAssignmentsFor(ctx context.Context, reviewerID uuid.UUID, statuses []models.DocumentStatus) ([]models.ReviewAssignment, error) {
	defer m.lock()()
	docs := m.st.data.documents
	return m.assignments(func(a models.ReviewAssignment) bool {
		if !a.IsActive || a.AssignedToID == nil || *a.AssignedToID != reviewerID {
			return false
		}
		doc, ok := docs[a.DocumentID]
		return ok && hasStatus(statuses, doc.Status)
	}), nil
}

func hasStatus(statuses []models.DocumentStatus, s models.DocumentStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
