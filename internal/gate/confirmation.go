package gate

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrSessionClosed is returned when the device disconnects before answering.
	ErrSessionClosed = errors.New("gate session closed")
	// ErrUnknownPrompt is returned for decisions that match no open prompt.
	ErrUnknownPrompt = errors.New("unknown prompt")
)

// ConfirmationGate asks the operator to confirm or cancel a release.
type ConfirmationGate interface {
	Present(ctx context.Context, prompt Prompt) (bool, error)
}

// promptBroker sends prompts to the device and routes decisions back to the waiting scan.
type promptBroker struct {
	emit   func(v interface{}) error
	closed <-chan struct{}

	mu      sync.Mutex
	waiting map[string]chan bool
}

func newPromptBroker(emit func(v interface{}) error, closed <-chan struct{}) *promptBroker {
	return &promptBroker{
		emit:    emit,
		closed:  closed,
		waiting: make(map[string]chan bool),
	}
}

// Present blocks until the operator answers, ctx is done or the session closes.
func (b *promptBroker) Present(ctx context.Context, prompt Prompt) (bool, error) {
	prompt.Type = TypePrompt
	decision := make(chan bool, 1)

	b.mu.Lock()
	b.waiting[prompt.PromptID] = decision
	b.mu.Unlock()
	defer b.forget(prompt.PromptID)

	if err := b.emit(prompt); err != nil {
		return false, err
	}

	select {
	case confirmed := <-decision:
		return confirmed, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-b.closed:
		return false, ErrSessionClosed
	}
}

// resolve delivers the operator decision. Late or duplicate answers return ErrUnknownPrompt.
func (b *promptBroker) resolve(promptID string, confirmed bool) error {
	b.mu.Lock()
	decision, ok := b.waiting[promptID]
	if ok {
		delete(b.waiting, promptID)
	}
	b.mu.Unlock()

	if !ok {
		return ErrUnknownPrompt
	}
	decision <- confirmed
	return nil
}

func (b *promptBroker) forget(promptID string) {
	b.mu.Lock()
	delete(b.waiting, promptID)
	b.mu.Unlock()
}
