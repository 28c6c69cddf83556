// Package scanner drives a camera decoder through scan, hold and cooldown cycles for one gate view.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when Config leaves a field at zero.
const (
	DefaultCooldown   = 1500 * time.Millisecond
	DefaultMountDelay = 300 * time.Millisecond
)

// ErrScannerDisabled marks a decoder that could not be started. Scanning stays off until the view is re-entered.
var ErrScannerDisabled = errors.New("scanner disabled")

// State is the lock state of the loop.
type State int

const (
	// StateIdle accepts the next decode.
	StateIdle State = iota
	// StateLocked drops decodes while a scan is processed or cooling down.
	StateLocked
)

func (s State) String() string {
	if s == StateLocked {
		return "locked"
	}
	return "idle"
}

// Decoder is the camera-side code reader. Pause, Resume and Stop must not call back into the loop.
type Decoder interface {
	Start(ctx context.Context, onDecode func(token string), onError func(err error)) error
	Pause() error
	Resume() error
	Stop() error
}

// Processor handles one accepted token. It runs to completion before the cooldown starts.
type Processor func(ctx context.Context, token string)

// Config tunes the loop timings.
type Config struct {
	Cooldown   time.Duration
	MountDelay time.Duration
}

// Loop serialises decodes for one view: at most one token is processed at a time.
type Loop struct {
	decoder Decoder
	process Processor
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	state      State
	until      time.Time
	active     bool
	disabled   bool
	generation uint64
	timer      *time.Timer
	viewCtx    context.Context
	cancel     context.CancelFunc
}

// NewLoop constructs a loop bound to one decoder.
func NewLoop(decoder Decoder, process Processor, cfg Config, logger zerolog.Logger) *Loop {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.MountDelay <= 0 {
		cfg.MountDelay = DefaultMountDelay
	}

	return &Loop{
		decoder: decoder,
		process: process,
		cfg:     cfg,
		logger:  logger.With().Str("component", "scan_loop").Logger(),
		now:     time.Now,
	}
}

// Enter activates the view: after the mount delay the decoder is started and decodes flow into HandleDecode.
// A start failure disables scanning and returns an error wrapping ErrScannerDisabled; there is no retry.
func (l *Loop) Enter(ctx context.Context) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.generation++
	gen := l.generation
	viewCtx, cancel := context.WithCancel(ctx)
	l.viewCtx = viewCtx
	l.cancel = cancel
	l.active = true
	l.disabled = false
	l.state = StateIdle
	l.until = time.Time{}
	l.mu.Unlock()

	if l.cfg.MountDelay > 0 {
		wait := time.NewTimer(l.cfg.MountDelay)
		select {
		case <-viewCtx.Done():
			wait.Stop()
			return viewCtx.Err()
		case <-wait.C:
		}
	}

	if !l.current(gen) {
		return context.Canceled
	}

	err := l.decoder.Start(viewCtx, func(token string) {
		l.HandleDecode(token)
	}, func(err error) {
		l.logger.Warn().Err(err).Msg("decoder reported error")
	})
	if err != nil {
		l.mu.Lock()
		if l.generation == gen {
			l.disabled = true
		}
		l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrScannerDisabled, err)
	}

	return nil
}

// HandleDecode accepts a token when idle and reports whether it was processed. Tokens arriving
// while locked, or outside an active view, are dropped.
func (l *Loop) HandleDecode(token string) bool {
	l.mu.Lock()
	if !l.active || l.disabled || l.state == StateLocked {
		l.mu.Unlock()
		return false
	}
	l.state = StateLocked
	l.until = time.Time{}
	gen := l.generation
	// Processing outlives the view: a confirmed release must finish even if the device disconnects.
	ctx := context.WithoutCancel(l.viewCtx)
	l.mu.Unlock()

	if err := l.decoder.Pause(); err != nil {
		l.logger.Warn().Err(err).Msg("failed to pause decoder")
	}

	l.process(ctx, token)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.generation != gen || !l.active {
		return true
	}
	l.until = l.now().Add(l.cfg.Cooldown)
	l.timer = time.AfterFunc(l.cfg.Cooldown, func() {
		l.release(gen)
	})
	return true
}

// Leave tears the view down: stops the decoder, cancels a pending cooldown and clears the lock.
func (l *Loop) Leave() {
	l.mu.Lock()
	l.generation++
	l.active = false
	l.state = StateIdle
	l.until = time.Time{}
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.viewCtx = nil
	l.mu.Unlock()

	if err := l.decoder.Stop(); err != nil {
		l.logger.Debug().Err(err).Msg("failed to stop decoder")
	}
}

// Disable turns scanning off for the current view after the decoder failed on the device. A pending
// cooldown is dropped and the decoder is stopped; Enter re-enables. It reports false when there is
// no active view or scanning is already off.
func (l *Loop) Disable() bool {
	l.mu.Lock()
	if !l.active || l.disabled {
		l.mu.Unlock()
		return false
	}
	l.generation++
	l.disabled = true
	l.state = StateIdle
	l.until = time.Time{}
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()

	if err := l.decoder.Stop(); err != nil {
		l.logger.Debug().Err(err).Msg("failed to stop decoder")
	}
	return true
}

// State returns the lock state and, during cooldown, when it ends.
func (l *Loop) State() (State, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.until
}

// Disabled reports whether the decoder failed to start for the current view.
func (l *Loop) Disabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disabled
}

func (l *Loop) release(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.generation != gen || !l.active {
		return
	}
	l.timer = nil
	l.state = StateIdle
	l.until = time.Time{}

	if err := l.decoder.Resume(); err != nil {
		l.logger.Warn().Err(err).Msg("failed to resume decoder")
	}
}

func (l *Loop) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active && l.generation == gen
}
