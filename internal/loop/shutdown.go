package loop

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// ShutdownSignal is a one-way flag: once triggered it stays set.
type ShutdownSignal struct {
	once sync.Once
	set  atomic.Bool
	done chan struct{}
}

func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{done: make(chan struct{})}
}

// Trigger sets the flag. Calls after the first are no-ops.
func (s *ShutdownSignal) Trigger() {
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
	})
}

func (s *ShutdownSignal) IsSet() bool { return s.set.Load() }

// Done is closed when the signal is triggered.
func (s *ShutdownSignal) Done() <-chan struct{} { return s.done }

// TriggerOn sets the flag when any of sigs arrives. The returned func stops
// listening.
func (s *ShutdownSignal) TriggerOn(sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	quit := make(chan struct{})
	go func() {
		select {
		case <-ch:
			s.Trigger()
		case <-quit:
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}
