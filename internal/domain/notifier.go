package domain

import (
	"context"
	"sync"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
)

const subscriberBuffer = 32

// Notifier fans library changes and debug lines out to subscribers.
// Publishing never blocks: a subscriber that falls behind loses events,
// and the next snapshot supersedes whatever it missed.
type Notifier struct {
	repo ports.MediaRepository
	log  *logger.ZapLogger

	mu   sync.Mutex
	subs map[chan ports.MediaEvent]struct{}
}

func NewNotifier(repo ports.MediaRepository, log *logger.ZapLogger) *Notifier {
	return &Notifier{
		repo: repo,
		log:  log,
		subs: make(map[chan ports.MediaEvent]struct{}),
	}
}

func (n *Notifier) Subscribe() (<-chan ports.MediaEvent, func()) {
	ch := make(chan ports.MediaEvent, subscriberBuffer)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, ch)
			n.mu.Unlock()
			close(ch)
		})
	}
}

func (n *Notifier) publish(ev ports.MediaEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs {
		select {
		case ch <- ev:
		default:
			n.log.Log(logger.LogEntry{
				Level:   "warn",
				Message: "subscriber lagging, event dropped",
				Fields:  map[string]any{"type": string(ev.Type)},
			})
		}
	}
}

// LibraryChanged publishes a fresh snapshot of the whole library.
func (n *Notifier) LibraryChanged(ctx context.Context) {
	snap, err := Snapshot(ctx, n.repo)
	if err != nil {
		n.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "build library snapshot",
			Error:   err,
		})
		return
	}
	n.publish(ports.MediaEvent{Type: ports.EventLibraryUpdated, LibrarySnapshot: snap})
}

// Debug forwards a human readable line to subscribers.
func (n *Notifier) Debug(msg string) {
	n.publish(ports.MediaEvent{Type: ports.EventLog, Message: msg})
}

// Snapshot lists the library newest first together with the total size
// of downloaded payloads.
func Snapshot(ctx context.Context, repo ports.MediaRepository) (*ports.LibrarySnapshot, error) {
	media, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, m := range media {
		if s, ok := m.Stored(); ok {
			total += s.Size
		}
	}
	return &ports.LibrarySnapshot{Media: media, TotalSize: total}, nil
}
