// Package gate binds a gate device websocket to the scan loop, the release matcher and the
// completion coordinator. One connection is one scanner view.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/models"
	"github.com/noah-isme/gema-gate-api/internal/observability"
	"github.com/noah-isme/gema-gate-api/internal/scanner"
	"github.com/noah-isme/gema-gate-api/internal/service"
)

const (
	sendBufferSize      = 32
	decodeBufferSize    = 4
	defaultPingInterval = 30 * time.Second
)

// Conn is the device end of the websocket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dependencies are shared by every session of the process.
type Dependencies struct {
	Identity     service.IdentityResolver
	Releases     service.ReleaseService
	Localizer    *service.Localizer
	Schema       *jsonschema.Schema
	Scanner      scanner.Config
	PingInterval time.Duration
	Logger       zerolog.Logger
}

// Session serves one connected gate device.
type Session struct {
	conn     Conn
	operator service.Session
	deps     Dependencies
	logger   zerolog.Logger

	decoder *remoteDecoder
	prompts *promptBroker
	loop    *scanner.Loop

	send    chan []byte
	decodes chan string
	closed  chan struct{}
	once    sync.Once

	mu       sync.RWMutex
	pending  []models.AuthorizedRelease
	snapshot bool
}

// NewSession prepares a session for an authenticated operator.
func NewSession(conn Conn, operator service.Session, deps Dependencies) (*Session, error) {
	if err := operator.Validate(); err != nil {
		return nil, err
	}
	if deps.Identity == nil || deps.Releases == nil || deps.Localizer == nil {
		return nil, errors.New("gate session dependencies missing")
	}
	if deps.Schema == nil {
		schema, err := InboundSchema()
		if err != nil {
			return nil, err
		}
		deps.Schema = schema
	}
	if deps.PingInterval <= 0 {
		deps.PingInterval = defaultPingInterval
	}

	s := &Session{
		conn:     conn,
		operator: operator,
		deps:     deps,
		logger: deps.Logger.With().
			Str("component", "gate_session").
			Str("unit", operator.Unit).
			Str("operator", operator.OperatorName).
			Logger(),
		send:    make(chan []byte, sendBufferSize),
		decodes: make(chan string, decodeBufferSize),
		closed:  make(chan struct{}),
	}
	s.decoder = newRemoteDecoder(s.emit)
	s.prompts = newPromptBroker(s.emit, s.closed)
	s.loop = scanner.NewLoop(s.decoder, s.process, deps.Scanner, deps.Logger)
	return s, nil
}

// Run serves the connection until the device disconnects or ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	observability.GateSessions().Inc()
	defer observability.GateSessions().Dec()

	go s.writer()
	go s.decodeWorker()
	go s.watchPending(ctx)

	entered := make(chan struct{})
	go func() {
		defer close(entered)
		if err := s.loop.Enter(ctx); err != nil && errors.Is(err, scanner.ErrScannerDisabled) {
			s.reportDisabled(err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.close()
		case <-s.closed:
		}
	}()

	s.logger.Info().Msg("gate connected")
	s.reader()

	cancel()
	<-entered
	s.loop.Leave()
	s.close()
	s.logger.Info().Msg("gate disconnected")
}

func (s *Session) reader() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug().Err(err).Msg("gate read loop ended")
			return
		}

		message, err := decodeInbound(s.deps.Schema, raw)
		if err != nil {
			s.logger.Warn().Err(err).Msg("discarding gate message")
			continue
		}

		switch message.Type {
		case TypeDecode:
			select {
			case s.decodes <- message.Token:
			default:
				s.logger.Debug().Msg("decode queue full, dropping token")
			}
		case TypeDecision:
			if err := s.prompts.resolve(message.PromptID, *message.Confirmed); err != nil {
				s.logger.Debug().Str("prompt_id", message.PromptID).Msg("decision for unknown prompt")
			}
		case TypeDecoderError:
			if s.decoder.fail(message.Error, message.Phase) && s.loop.Disable() {
				s.reportDisabled(fmt.Errorf("%w: %s", scanner.ErrScannerDisabled, message.Error))
			}
		}
	}
}

func (s *Session) writer() {
	ticker := time.NewTicker(s.deps.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug().Err(err).Msg("gate write loop terminated")
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				s.logger.Debug().Err(err).Msg("gate ping failed")
				s.close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Session) decodeWorker() {
	for {
		select {
		case token := <-s.decodes:
			s.decoder.deliver(token)
		case <-s.closed:
			return
		}
	}
}

func (s *Session) watchPending(ctx context.Context) {
	for releases := range s.deps.Releases.Watch(ctx, s.operator.Unit) {
		s.mu.Lock()
		s.pending = releases
		s.snapshot = true
		s.mu.Unlock()

		_ = s.emit(PendingSnapshot{Type: TypePending, Releases: dto.NewReleaseResponseSlice(releases)})
	}
}

// pendingReleases returns the live snapshot, loading it directly until the watcher has delivered one.
func (s *Session) pendingReleases(ctx context.Context) ([]models.AuthorizedRelease, error) {
	s.mu.RLock()
	pending, ok := s.pending, s.snapshot
	s.mu.RUnlock()
	if ok {
		return pending, nil
	}
	return s.deps.Releases.ListPending(ctx, s.operator.Unit)
}

// process handles one accepted token: resolve, match, confirm, complete.
func (s *Session) process(ctx context.Context, token string) {
	logger := s.logger.With().Str("token", token).Logger()
	l10n := s.deps.Localizer

	student, err := s.deps.Identity.Resolve(ctx, token, s.operator.Unit)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			s.report(Result{Outcome: OutcomeNotFound, Message: l10n.ResultNotFound()})
			return
		}
		logger.Error().Err(err).Msg("failed to resolve student")
		s.report(Result{Outcome: OutcomeError, Message: l10n.ResultError()})
		return
	}
	studentView := dto.NewStudentResponse(student)

	pending, err := s.pendingReleases(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load pending releases")
		s.report(Result{Outcome: OutcomeError, Message: l10n.ResultError(), Student: &studentView})
		return
	}

	release, ok := service.MatchRelease(student, token, pending)
	if !ok {
		s.report(Result{Outcome: OutcomeNoMatch, Message: l10n.ResultNoMatch(student.Name), Student: &studentView})
		return
	}

	confirmLabel, cancelLabel := l10n.PromptLabels()
	confirmed, err := s.prompts.Present(ctx, Prompt{
		PromptID:     uuid.NewString(),
		ReleaseID:    release.ID,
		Title:        l10n.PromptTitle(),
		Message:      l10n.PromptMessage(student.Name, release.AuthorizedBy),
		PhotoURL:     student.PhotoURL,
		ConfirmLabel: confirmLabel,
		CancelLabel:  cancelLabel,
		Student:      studentView,
	})
	if err != nil {
		logger.Debug().Err(err).Msg("confirmation abandoned")
		observability.GateScans().WithLabelValues(OutcomeCancelled).Inc()
		return
	}
	if !confirmed {
		s.report(Result{Outcome: OutcomeCancelled, Message: l10n.ResultCancelled(), ReleaseID: release.ID, Student: &studentView})
		return
	}

	_, err = s.deps.Releases.Complete(ctx, s.operator, release.ID)
	switch {
	case err == nil:
		s.report(Result{Outcome: OutcomeReleased, Message: l10n.ResultReleased(student.Name), ReleaseID: release.ID, Student: &studentView})
	case errors.Is(err, service.ErrCompletionPartial):
		logger.Warn().Err(err).Str("release_id", release.ID).Msg("release completed partially")
		s.report(Result{Outcome: OutcomeReleased, Message: l10n.ResultPartial(student.Name), ReleaseID: release.ID, Student: &studentView, Warning: true})
	case errors.Is(err, service.ErrReleaseNotPending), errors.Is(err, service.ErrReleaseNotFound):
		s.report(Result{Outcome: OutcomeNoMatch, Message: l10n.ResultAlreadyReleased(), ReleaseID: release.ID, Student: &studentView})
	default:
		logger.Error().Err(err).Str("release_id", release.ID).Msg("failed to complete release")
		s.report(Result{Outcome: OutcomeError, Message: l10n.ResultError(), ReleaseID: release.ID, Student: &studentView})
	}
}

// reportDisabled tells the device scanning is off. Decodes are ignored until it reconnects.
func (s *Session) reportDisabled(err error) {
	s.logger.Warn().Err(err).Msg("gate scanner disabled")
	s.report(Result{Outcome: OutcomeDisabled, Message: s.deps.Localizer.ResultDisabled()})
}

func (s *Session) report(result Result) {
	result.Type = TypeResult
	observability.GateScans().WithLabelValues(result.Outcome).Inc()
	if err := s.emit(result); err != nil {
		s.logger.Debug().Err(err).Str("outcome", result.Outcome).Msg("result not delivered")
	}
}

// emit queues a message for the writer. It fails once the session is closed.
func (s *Session) emit(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- payload:
		return nil
	case <-s.closed:
		return ErrSessionClosed
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}
