package state

import (
	"sync"
	"time"
)

// Reclaimer recovers users whose gate stayed closed after a crash or a
// lost reply. Each Arm call replaces any pending timer for the user,
// so repeated busy messages keep pushing the deadline out instead of
// stacking timers.
type Reclaimer struct {
	onFire func(userID string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewReclaimer wires the callback invoked when a user's timer fires.
// The callback runs on the timer goroutine, outside the reclaimer lock.
func NewReclaimer(onFire func(userID string)) *Reclaimer {
	return &Reclaimer{
		onFire: onFire,
		timers: map[string]*time.Timer{},
	}
}

// Arm schedules a reclaim for the user after delay, cancelling any
// pending one.
func (r *Reclaimer) Arm(userID string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[userID]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		r.mu.Lock()
		// A stopped timer's callback can still run; only the timer
		// currently on record may fire.
		if current, ok := r.timers[userID]; !ok || current != t {
			r.mu.Unlock()
			return
		}
		delete(r.timers, userID)
		r.mu.Unlock()

		r.onFire(userID)
	})
	r.timers[userID] = t
}

// Cancel drops any pending reclaim for the user, typically because the
// interaction finished normally.
func (r *Reclaimer) Cancel(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[userID]; ok {
		t.Stop()
		delete(r.timers, userID)
	}
}

// Pending reports whether a reclaim is scheduled for the user.
func (r *Reclaimer) Pending(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[userID]
	return ok
}
