package probe

import "sync/atomic"

// Latch is a boolean which can only go from false to true. Done is closed
// on the transition, so waiters can select on it.
type Latch struct {
	set  atomic.Bool
	done chan struct{}
}

func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Set flips the latch. It returns true for the call which did the flip.
func (l *Latch) Set() bool {
	if !l.set.CompareAndSwap(false, true) {
		return false
	}
	close(l.done)
	return true
}

func (l *Latch) IsSet() bool {
	return l.set.Load()
}

func (l *Latch) Done() <-chan struct{} {
	return l.done
}
