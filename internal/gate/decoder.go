package gate

import (
	"context"
	"errors"
	"sync"
)

// remoteDecoder is the device camera seen through the websocket. Commands are queued to the
// session writer and never block on the device.
type remoteDecoder struct {
	emit func(v interface{}) error

	mu       sync.Mutex
	running  bool
	decoded  bool
	onDecode func(token string)
	onError  func(err error)
}

func newRemoteDecoder(emit func(v interface{}) error) *remoteDecoder {
	return &remoteDecoder{emit: emit}
}

func (d *remoteDecoder) Start(_ context.Context, onDecode func(token string), onError func(err error)) error {
	d.mu.Lock()
	d.running = true
	d.decoded = false
	d.onDecode = onDecode
	d.onError = onError
	d.mu.Unlock()

	if err := d.command(ActionStart); err != nil {
		d.mu.Lock()
		d.running = false
		d.onDecode = nil
		d.onError = nil
		d.mu.Unlock()
		return err
	}
	return nil
}

func (d *remoteDecoder) Pause() error {
	return d.command(ActionPause)
}

func (d *remoteDecoder) Resume() error {
	return d.command(ActionResume)
}

func (d *remoteDecoder) Stop() error {
	d.mu.Lock()
	d.running = false
	d.onDecode = nil
	d.onError = nil
	d.mu.Unlock()

	return d.command(ActionStop)
}

func (d *remoteDecoder) command(action string) error {
	return d.emit(DecoderCommand{Type: TypeDecoder, Action: action})
}

// deliver hands a decoded token to the loop. Tokens read before Start or after Stop are ignored.
func (d *remoteDecoder) deliver(token string) bool {
	d.mu.Lock()
	handler := d.onDecode
	running := d.running
	if running && handler != nil {
		d.decoded = true
	}
	d.mu.Unlock()

	if !running || handler == nil {
		return false
	}
	handler(token)
	return true
}

// fail handles an error reported by the device. It returns true when the camera never came up:
// the device tagged the error as a start failure, or nothing was decoded since Start. The decoder
// then stops accepting tokens; later errors go to the loop's error handler.
func (d *remoteDecoder) fail(message, phase string) bool {
	d.mu.Lock()
	handler := d.onError
	startup := d.running && (phase == PhaseStart || (phase != PhaseRuntime && !d.decoded))
	if startup {
		d.running = false
		d.onDecode = nil
		d.onError = nil
	}
	d.mu.Unlock()

	if startup {
		return true
	}
	if handler != nil {
		handler(errors.New(message))
	}
	return false
}
