package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/logger"
	"github.com/sbctool/sbctool/internal/telemetry"
	"github.com/sbctool/sbctool/internal/transport"
)

// updateBuffer is how many updates each collector may queue ahead of the
// dashboard.
const updateBuffer = 64

// DefaultShutdownTimeout bounds Stop when no timeout is configured.
const DefaultShutdownTimeout = 2 * time.Second

// Runner is a long-lived collector loop.
type Runner interface {
	Run(ctx context.Context, out chan<- telemetry.Update, refresh <-chan struct{}) error
}

// Supervisor runs the system info and log collectors for one session and
// exposes their update channels.
type Supervisor struct {
	runners []Runner
	updates []chan telemetry.Update
	refresh []chan struct{}

	shutdownTimeout time.Duration
	log             logger.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

// NewSupervisor wires both collectors to session.
func NewSupervisor(session transport.Session, opts Options, shutdownTimeout time.Duration) *Supervisor {
	return NewSupervisorFor(opts.Logger, shutdownTimeout,
		NewSystemInfoCollector(session, opts),
		NewLogCollector(session, opts),
	)
}

// NewSupervisorFor supervises arbitrary runners, one update channel each.
func NewSupervisorFor(log logger.Logger, shutdownTimeout time.Duration, runners ...Runner) *Supervisor {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	s := &Supervisor{
		runners:         runners,
		shutdownTimeout: shutdownTimeout,
		log:             logger.Or(log),
		done:            make(chan struct{}),
	}
	for range runners {
		s.updates = append(s.updates, make(chan telemetry.Update, updateBuffer))
		s.refresh = append(s.refresh, make(chan struct{}, 1))
	}
	return s
}

// Start launches every runner. Each update channel is closed when its
// runner returns. Calling Start again has no effect.
func (s *Supervisor) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(ctx)
		for i, r := range s.runners {
			r, out, refresh := r, s.updates[i], s.refresh[i]
			g.Go(func() error {
				defer close(out)
				return r.Run(gctx, out, refresh)
			})
		}
		go func() {
			s.err = g.Wait()
			close(s.done)
		}()
	})
}

// Updates returns one receive channel per runner, in construction order.
func (s *Supervisor) Updates() []<-chan telemetry.Update {
	chans := make([]<-chan telemetry.Update, len(s.updates))
	for i, ch := range s.updates {
		chans[i] = ch
	}
	return chans
}

// Refresh asks every runner for an out-of-cycle collection. Signals do not
// queue: a runner that has not consumed the previous one gets nothing new.
func (s *Supervisor) Refresh() {
	for _, ch := range s.refresh {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Done is closed once every runner has returned.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Stop cancels the runners and waits for them, at most shutdownTimeout.
func (s *Supervisor) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	t := time.NewTimer(s.shutdownTimeout)
	defer t.Stop()

	select {
	case <-s.done:
		return s.err
	case <-t.C:
		s.log.Warn("collectors still running after %s", s.shutdownTimeout)
		return errors.New(errors.ErrTransport,
			fmt.Sprintf("collectors did not stop within %s", s.shutdownTimeout), "")
	}
}
