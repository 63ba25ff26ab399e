package callstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/triagedesk/internal/feed"
)

const (
	insertChannel        = "call_inserted"
	minReconnectInterval = 2 * time.Second
	maxReconnectInterval = 30 * time.Second
)

// insertListener adapts a lib/pq LISTEN connection to the feed's insert
// stream contract. Notification payloads are the inserted call ids.
type insertListener struct {
	pl      *pq.Listener
	ready   chan struct{}
	inserts chan string
	errs    chan error
	done    chan struct{}

	readyOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// SubscribeInserts opens a dedicated LISTEN connection on the call_inserted
// channel. The returned stream signals ready once the server acknowledges
// the subscription and reports connection loss on its error channel.
func (s *Store) SubscribeInserts(ctx context.Context) (feed.InsertStream, error) {
	l := &insertListener{
		ready:   make(chan struct{}),
		inserts: make(chan string, 32),
		errs:    make(chan error, 4),
		done:    make(chan struct{}),
	}

	l.pl = pq.NewListener(s.dsn, minReconnectInterval, maxReconnectInterval, l.onEvent)
	if err := l.pl.Listen(insertChannel); err != nil {
		l.pl.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", insertChannel, err)
	}

	go l.forward(ctx)
	return l, nil
}

func (l *insertListener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		l.readyOnce.Do(func() { close(l.ready) })
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		if err == nil {
			err = errors.New("postgres listener connection lost")
		}
		select {
		case l.errs <- err:
		default:
		}
	}
}

// forward pumps notifications into the insert channel until the listener is
// closed or the subscribing context ends. A nil notification is lib/pq's
// reconnect marker, not an insert; the feed's poll backstop covers whatever
// was missed during the outage.
func (l *insertListener) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return
		case <-l.done:
			return
		case n := <-l.pl.NotificationChannel():
			if n == nil {
				continue
			}
			select {
			case l.inserts <- n.Extra:
			case <-ctx.Done():
				l.Close()
				return
			case <-l.done:
				return
			}
		}
	}
}

func (l *insertListener) Ready() <-chan struct{} { return l.ready }
func (l *insertListener) Inserts() <-chan string { return l.inserts }
func (l *insertListener) Err() <-chan error      { return l.errs }

func (l *insertListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.closeErr = l.pl.Close()
		log.Debug().Msg("call insert listener closed")
	})
	return l.closeErr
}
