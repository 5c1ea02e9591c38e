package scheduler

// Semaphore caps concurrent model calls across a tick. Acquisition is
// non-blocking: a session that cannot get a slot is skipped and picked
// up on a later tick, it never queues.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore returns a semaphore with n slots (minimum one).
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// TryAcquire takes a slot if one is free and reports whether it did.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot taken by a successful TryAcquire.
func (s *Semaphore) Release() {
	<-s.slots
}

// Available reports the number of free slots.
func (s *Semaphore) Available() int {
	return cap(s.slots) - len(s.slots)
}
