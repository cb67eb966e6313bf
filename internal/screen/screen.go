// Package screen holds one authoritative state container per screen
// lifetime. Every backend callback or user command produces a new
// immutable snapshot via copy-with-changes; the UI observes a read-only
// latest-wins stream of snapshots plus a direct getter.
package screen

// stream publishes latest-wins snapshots on a buffered channel: a slow
// reader only ever misses intermediate states, never the newest one.
type stream[T any] struct {
	ch chan T
}

func newStream[T any]() stream[T] {
	return stream[T]{ch: make(chan T, 1)}
}

func (s stream[T]) publish(v T) {
	for {
		select {
		case s.ch <- v:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}
