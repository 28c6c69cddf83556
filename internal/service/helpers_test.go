package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/realtime"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.AuthorizedRelease{},
		&models.AccessRecord{},
		&models.Notification{},
		&models.LostFoundItem{},
	))
	return db
}

func newTestValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func newTestHub() *realtime.Hub {
	return realtime.NewHub(realtime.Options{}, zerolog.Nop())
}

func newTestLocalizer(t *testing.T) *Localizer {
	t.Helper()
	localizer, err := NewLocalizer("pt-BR", "America/Sao_Paulo")
	require.NoError(t, err)
	return localizer
}

func testSession(role Role) Session {
	return Session{OperatorName: "Marta", Unit: "unit_bs", Role: role, UserID: "op-1"}
}

type fakeBlobStore struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	deleted   []string
	deleteErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{uploads: make(map[string][]byte)}
}

func (f *fakeBlobStore) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[name] = data
	return "https://res.cloudinary.com/demo/image/upload/v1/gema/" + name, nil
}

func (f *fakeBlobStore) DeleteByURL(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return f.deleteErr
}

func (f *fakeBlobStore) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

var errStoreDown = errors.New("store unavailable")
