package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/middleware"
	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/service"
)

type envelope[T any] struct {
	Success bool              `json:"success"`
	Data    T                 `json:"data"`
	Meta    map[string]int    `json:"meta"`
	Details map[string]string `json:"details"`
	Message string            `json:"message"`
}

func withOperator(role service.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, "op-1")
		c.Locals(middleware.LocalOperator, "Marta")
		c.Locals(middleware.LocalUnit, "unit_bs")
		c.Locals(middleware.LocalUserRole, string(role))
		return c.Next()
	}
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}

type mockReleaseService struct {
	mu          sync.Mutex
	pending     []models.AuthorizedRelease
	listErr     error
	completeErr error
	completed   []string
	lastSession service.Session
	lastUnit    string
}

func (m *mockReleaseService) ListPending(_ context.Context, unit string) ([]models.AuthorizedRelease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUnit = unit
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]models.AuthorizedRelease(nil), m.pending...), nil
}

// Watch delivers one snapshot and ends the stream.
func (m *mockReleaseService) Watch(ctx context.Context, unit string) <-chan []models.AuthorizedRelease {
	out := make(chan []models.AuthorizedRelease, 1)
	if snapshot, err := m.ListPending(ctx, unit); err == nil {
		out <- snapshot
	}
	close(out)
	return out
}

func (m *mockReleaseService) Complete(_ context.Context, session service.Session, releaseID string) (dto.ReleaseCompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSession = session
	m.completed = append(m.completed, releaseID)

	releasedAt := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	response := dto.ReleaseCompletionResponse{
		Release: dto.ReleaseResponse{
			ID:             releaseID,
			StudentID:      "stu-1",
			Unit:           session.Unit,
			Status:         string(models.ReleaseStatusReleased),
			ReleasedAt:     &releasedAt,
			GatekeeperName: session.OperatorName,
		},
		AccessRecordPatched: true,
		NotificationID:      "note-1",
		CompletedAt:         releasedAt,
	}
	if m.completeErr != nil && !errors.Is(m.completeErr, service.ErrCompletionPartial) {
		return dto.ReleaseCompletionResponse{}, m.completeErr
	}
	return response, m.completeErr
}

func (m *mockReleaseService) completions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.completed...)
}

type mockIdentityResolver struct {
	students map[string]models.Student
	err      error
}

func (m *mockIdentityResolver) Resolve(_ context.Context, token, unit string) (models.Student, error) {
	if m.err != nil {
		return models.Student{}, m.err
	}
	student, ok := m.students[token]
	if !ok || student.Unit != unit {
		return models.Student{}, service.ErrStudentNotFound
	}
	return student, nil
}

func pendingFixture() []models.AuthorizedRelease {
	return []models.AuthorizedRelease{{
		ID:           "rel-1",
		StudentID:    "stu-1",
		Unit:         "unit_bs",
		Status:       models.ReleaseStatusPending,
		AuthorizedBy: "Coordenação",
		Timestamp:    time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC),
	}}
}

func studentsFixture() map[string]models.Student {
	return map[string]models.Student{
		"stu-1": {ID: "stu-1", Unit: "unit_bs", Code: "1001", Name: "Ana Souza", PhotoURL: "https://img.example/ana.jpg"},
		"1001":  {ID: "stu-1", Unit: "unit_bs", Code: "1001", Name: "Ana Souza", PhotoURL: "https://img.example/ana.jpg"},
		"stu-9": {ID: "stu-9", Unit: "unit_other", Code: "9009", Name: "Outro Aluno"},
	}
}
