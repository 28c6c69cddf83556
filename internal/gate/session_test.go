package gate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/scanner"
	"github.com/noah-isme/gema-gate-api/internal/service"
)

type fakeConn struct {
	inbound  chan []byte
	outbound chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan []byte, 16),
		outbound: make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case raw := <-c.inbound:
		return websocket.TextMessage, raw, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	case c.outbound <- data:
		return nil
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	c.inbound <- raw
}

// next returns the next outbound message of one of the given types, skipping pending snapshots.
func (c *fakeConn) next(t *testing.T) map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.outbound:
			var message map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &message))
			if message["type"] == TypePending {
				continue
			}
			return message
		case <-deadline:
			t.Fatal("timed out waiting for gate message")
			return nil
		}
	}
}

func (c *fakeConn) expectDecoder(t *testing.T, action string) {
	t.Helper()
	message := c.next(t)
	require.Equal(t, TypeDecoder, message["type"])
	require.Equal(t, action, message["action"])
}

// expectQuiet fails if anything but a pending snapshot is written within d.
func (c *fakeConn) expectQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case raw := <-c.outbound:
			var message map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &message))
			require.Equal(t, TypePending, message["type"], "unexpected gate message %v", message)
		case <-deadline:
			return
		}
	}
}

type fakeResolver struct {
	students map[string]models.Student
	err      error
}

func (f *fakeResolver) Resolve(_ context.Context, token, unit string) (models.Student, error) {
	if f.err != nil {
		return models.Student{}, f.err
	}
	student, ok := f.students[token]
	if !ok || student.Unit != unit {
		return models.Student{}, service.ErrStudentNotFound
	}
	return student, nil
}

type fakeReleases struct {
	mu          sync.Mutex
	pending     []models.AuthorizedRelease
	completeErr error
	completed   []string
	operators   []string
}

func (f *fakeReleases) ListPending(_ context.Context, _ string) ([]models.AuthorizedRelease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AuthorizedRelease(nil), f.pending...), nil
}

func (f *fakeReleases) Watch(ctx context.Context, unit string) <-chan []models.AuthorizedRelease {
	out := make(chan []models.AuthorizedRelease, 1)
	snapshot, _ := f.ListPending(ctx, unit)
	out <- snapshot
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}

func (f *fakeReleases) Complete(_ context.Context, session service.Session, releaseID string) (dto.ReleaseCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, releaseID)
	f.operators = append(f.operators, session.OperatorName)
	return dto.ReleaseCompletionResponse{Release: dto.ReleaseResponse{ID: releaseID}}, f.completeErr
}

func (f *fakeReleases) completions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.completed...)
}

type sessionFixture struct {
	conn     *fakeConn
	releases *fakeReleases
	resolver *fakeResolver
	done     chan struct{}
	cancel   context.CancelFunc
}

func startSession(t *testing.T, configure func(*sessionFixture)) *sessionFixture {
	t.Helper()

	localizer, err := service.NewLocalizer("pt-BR", "America/Sao_Paulo")
	require.NoError(t, err)

	fixture := &sessionFixture{
		conn: newFakeConn(),
		releases: &fakeReleases{pending: []models.AuthorizedRelease{
			{ID: "rel-1", StudentID: "stu-1", Unit: "unit_bs", Status: models.ReleaseStatusPending, AuthorizedBy: "Coordenação"},
		}},
		resolver: &fakeResolver{students: map[string]models.Student{
			"stu-1":  {ID: "stu-1", Unit: "unit_bs", Code: "1001", Name: "Ana Souza", PhotoURL: "https://img.example/ana.jpg"},
			"1002":   {ID: "stu-2", Unit: "unit_bs", Code: "1002", Name: "Bruno Lima"},
			"stu-99": {ID: "stu-99", Unit: "unit_other", Code: "9999", Name: "Outro"},
		}},
		done: make(chan struct{}),
	}
	if configure != nil {
		configure(fixture)
	}

	operator, err := service.NewSession("Marta", "unit_bs", string(service.RoleGatekeeper), "op-1")
	require.NoError(t, err)

	session, err := NewSession(fixture.conn, operator, Dependencies{
		Identity:  fixture.resolver,
		Releases:  fixture.releases,
		Localizer: localizer,
		Scanner:   scanner.Config{Cooldown: 50 * time.Millisecond, MountDelay: time.Millisecond},
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	fixture.cancel = cancel
	go func() {
		defer close(fixture.done)
		session.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = fixture.conn.Close()
		<-fixture.done
	})

	fixture.conn.expectDecoder(t, ActionStart)
	return fixture
}

func (f *sessionFixture) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
	}
}

func TestSessionConfirmedScanCompletesRelease(t *testing.T) {
	f := startSession(t, nil)

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})
	f.conn.expectDecoder(t, ActionPause)

	prompt := f.conn.next(t)
	require.Equal(t, TypePrompt, prompt["type"])
	require.Equal(t, "rel-1", prompt["release_id"])
	require.Equal(t, "https://img.example/ana.jpg", prompt["photo_url"])
	require.Contains(t, prompt["message"], "Ana Souza")
	require.Contains(t, prompt["message"], "Coordenação")

	confirmed := true
	f.conn.push(t, Inbound{Type: TypeDecision, PromptID: prompt["prompt_id"].(string), Confirmed: &confirmed})

	result := f.conn.next(t)
	require.Equal(t, TypeResult, result["type"])
	require.Equal(t, OutcomeReleased, result["outcome"])
	require.Equal(t, "rel-1", result["release_id"])
	require.Nil(t, result["warning"])
	require.Equal(t, []string{"rel-1"}, f.releases.completions())
	require.Equal(t, []string{"Marta"}, f.releases.operators)

	f.conn.expectDecoder(t, ActionResume)
}

func TestSessionCancelledPromptLeavesReleasePending(t *testing.T) {
	f := startSession(t, nil)

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})
	f.conn.expectDecoder(t, ActionPause)
	prompt := f.conn.next(t)
	require.Equal(t, TypePrompt, prompt["type"])

	declined := false
	f.conn.push(t, Inbound{Type: TypeDecision, PromptID: prompt["prompt_id"].(string), Confirmed: &declined})

	result := f.conn.next(t)
	require.Equal(t, OutcomeCancelled, result["outcome"])
	require.Empty(t, f.releases.completions())
}

func TestSessionReportsUnknownAndUnmatchedStudents(t *testing.T) {
	f := startSession(t, nil)

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-99"})
	f.conn.expectDecoder(t, ActionPause)
	result := f.conn.next(t)
	require.Equal(t, OutcomeNotFound, result["outcome"])
	require.Nil(t, result["student"])
	f.conn.expectDecoder(t, ActionResume)

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "1002"})
	f.conn.expectDecoder(t, ActionPause)
	result = f.conn.next(t)
	require.Equal(t, OutcomeNoMatch, result["outcome"])
	require.Contains(t, result["message"], "Bruno Lima")
	f.conn.expectDecoder(t, ActionResume)

	require.Empty(t, f.releases.completions())
}

func TestSessionFlagsPartialCompletion(t *testing.T) {
	f := startSession(t, func(f *sessionFixture) {
		f.releases.completeErr = errors.Join(service.ErrCompletionPartial, errors.New("notification: store down"))
	})

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})
	f.conn.expectDecoder(t, ActionPause)
	prompt := f.conn.next(t)

	confirmed := true
	f.conn.push(t, Inbound{Type: TypeDecision, PromptID: prompt["prompt_id"].(string), Confirmed: &confirmed})

	result := f.conn.next(t)
	require.Equal(t, OutcomeReleased, result["outcome"])
	require.Equal(t, true, result["warning"])
}

func TestSessionReportsReleaseTakenByAnotherGate(t *testing.T) {
	f := startSession(t, func(f *sessionFixture) {
		f.releases.completeErr = service.ErrReleaseNotPending
	})

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})
	f.conn.expectDecoder(t, ActionPause)
	prompt := f.conn.next(t)

	confirmed := true
	f.conn.push(t, Inbound{Type: TypeDecision, PromptID: prompt["prompt_id"].(string), Confirmed: &confirmed})

	result := f.conn.next(t)
	require.Equal(t, OutcomeNoMatch, result["outcome"])
	require.Equal(t, "rel-1", result["release_id"])
}

func TestSessionDropsDecodesWhileLocked(t *testing.T) {
	f := startSession(t, nil)

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})
	f.conn.expectDecoder(t, ActionPause)
	prompt := f.conn.next(t)
	require.Equal(t, TypePrompt, prompt["type"])

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})

	confirmed := true
	f.conn.push(t, Inbound{Type: TypeDecision, PromptID: prompt["prompt_id"].(string), Confirmed: &confirmed})

	result := f.conn.next(t)
	require.Equal(t, OutcomeReleased, result["outcome"])
	f.conn.expectDecoder(t, ActionResume)
	require.Equal(t, []string{"rel-1"}, f.releases.completions())
}

func TestSessionIgnoresInvalidMessages(t *testing.T) {
	f := startSession(t, nil)

	f.conn.inbound <- []byte("not json")
	f.conn.push(t, map[string]interface{}{"type": "decode"})
	f.conn.push(t, map[string]interface{}{"type": "reboot"})
	confirmed := true
	f.conn.push(t, Inbound{Type: TypeDecision, PromptID: "stale", Confirmed: &confirmed})

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})
	f.conn.expectDecoder(t, ActionPause)
	prompt := f.conn.next(t)
	require.Equal(t, TypePrompt, prompt["type"])
}

func TestSessionDisconnectDuringPromptAbandonsScan(t *testing.T) {
	f := startSession(t, nil)

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})
	f.conn.expectDecoder(t, ActionPause)
	prompt := f.conn.next(t)
	require.Equal(t, TypePrompt, prompt["type"])

	require.NoError(t, f.conn.Close())
	f.waitDone(t)
	require.Empty(t, f.releases.completions())
}

func TestSessionDecoderStartFailureDisablesScanning(t *testing.T) {
	f := startSession(t, nil)

	f.conn.push(t, Inbound{Type: TypeDecoderError, Error: "NotAllowedError: camera permission denied"})
	f.conn.expectDecoder(t, ActionStop)

	result := f.conn.next(t)
	require.Equal(t, TypeResult, result["type"])
	require.Equal(t, OutcomeDisabled, result["outcome"])
	require.NotEmpty(t, result["message"])

	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})
	f.conn.push(t, Inbound{Type: TypeDecoderError, Error: "NotAllowedError: camera permission denied", Phase: PhaseStart})
	f.conn.expectQuiet(t, 150*time.Millisecond)
	require.Empty(t, f.releases.completions())
}

func TestSessionRuntimeDecoderErrorKeepsScanning(t *testing.T) {
	f := startSession(t, nil)

	f.conn.push(t, Inbound{Type: TypeDecoderError, Error: "frame dropped", Phase: PhaseRuntime})
	f.conn.push(t, Inbound{Type: TypeDecode, Token: "stu-1"})
	f.conn.expectDecoder(t, ActionPause)

	prompt := f.conn.next(t)
	require.Equal(t, TypePrompt, prompt["type"])
}

func TestSessionStopsWhenContextCancelled(t *testing.T) {
	f := startSession(t, nil)
	f.cancel()
	f.waitDone(t)
}

func TestNewSessionRequiresOperator(t *testing.T) {
	_, err := NewSession(newFakeConn(), service.Session{Unit: "unit_bs"}, Dependencies{})
	require.ErrorIs(t, err, service.ErrSessionRequired)
}
