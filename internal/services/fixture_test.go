package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/repository/memory"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/storage/localfs"
)

// clock advances one second per reading so ordering by time is stable.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	blobs   *localfs.Storage
	blobDir string
	events  *events.Recorder
	metrics *metrics.Metrics
	clock   *clock
	cfg     *config.Config

	auth      *AuthService
	users     *UserService
	documents *DocumentService
	reviews   *ReviewService
	search    *SearchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	blobs, err := localfs.New(dir)
	require.NoError(t, err)

	f := &fixture{
		ctx:     context.Background(),
		store:   memory.New(),
		blobs:   blobs,
		blobDir: dir,
		events:  &events.Recorder{},
		metrics: metrics.New(),
		clock:   &clock{t: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)},
		cfg: &config.Config{
			JWTSecret:        "test-secret",
			JWTAccessExpiry:  15 * time.Minute,
			JWTRefreshExpiry: time.Hour,
			AdminEmails:      "root@example.com",
		},
	}
	f.auth = NewAuthService(f.store, f.cfg)
	f.auth.now = f.clock.Now
	f.users = NewUserService(f.store)
	f.documents = NewDocumentService(f.store, blobs, f.events, f.metrics)
	f.documents.now = f.clock.Now
	f.reviews = NewReviewService(f.store, f.events, f.metrics)
	f.reviews.now = f.clock.Now
	f.search = NewSearchService(f.store)
	return f
}

type userOpt func(*models.User)

func staff(u *models.User)     { u.IsStaff = true }
func superuser(u *models.User) { u.IsSuperuser = true }
func inactive(u *models.User)  { u.IsActive = false }

func withRole(r models.Role) userOpt {
	return func(u *models.User) { u.Role = r }
}

func (f *fixture) user(t *testing.T, name string, opts ...userOpt) *models.User {
	t.Helper()
	u := &models.User{
		ID:       uuid.New(),
		Username: name,
		Email:    name + "@example.com",
		Role:     models.RoleUser,
		IsActive: true,
		Password: mustHash(t, "password123"),
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, f.store.CreateUser(f.ctx, u))
	return u
}

var hashCache sync.Map

func mustHash(t *testing.T, password string) string {
	t.Helper()
	if h, ok := hashCache.Load(password); ok {
		return h.(string)
	}
	u, err := newAccount("x", "x@example.com", password)
	require.NoError(t, err)
	hashCache.Store(password, u.Password)
	return u.Password
}

func (f *fixture) upload(t *testing.T, owner *models.User, title, filename, body string) *models.Document {
	t.Helper()
	doc, err := f.documents.Upload(f.ctx, owner.ID, &UploadInput{
		Title:    title,
		Filename: filename,
		Size:     int64(len(body)),
		Body:     strings.NewReader(body),
	})
	require.NoError(t, err)
	return doc
}
