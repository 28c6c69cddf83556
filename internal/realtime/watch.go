package realtime

import (
	"context"

	"github.com/rs/zerolog"
)

// Loader reads the current contents of a watched collection.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Watch emits a snapshot from load immediately and again after every change event on topic.
// Bursts of events collapse into one reload, and an unread snapshot is replaced by the newer
// one. The channel closes when ctx is done.
func Watch[T any](ctx context.Context, hub *Hub, topic Topic, load Loader[T], logger zerolog.Logger) <-chan []T {
	out := make(chan []T, 1)
	sub := hub.Subscribe(topic)

	go func() {
		defer close(out)
		defer sub.Stop()

		emit := func() {
			snapshot, err := load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn().Err(err).Str("topic", topic.String()).Msg("failed to load snapshot")
				}
				return
			}
			select {
			case out <- snapshot:
			default:
				select {
				case <-out:
				default:
				}
				out <- snapshot
			}
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C:
				if !ok {
					return
				}
				drain(sub.C)
				emit()
			}
		}
	}()

	return out
}

func drain(ch <-chan Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
