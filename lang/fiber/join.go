package fiber

import (
	"fmt"

	"github.com/emberlang/ember/lang/types"
)

// ErrJoinSelf is returned by AttemptJoin when a fiber tries to join
// itself (spec §4.E "fails if target == self", §7 FiberCannotJoinItself,
// §8 "join(self) fails with FiberCannotJoinItself").
var ErrJoinSelf = fmt.Errorf("fiber: cannot join itself")

// AttemptJoin implements spec §4.E's join protocol: if target has already
// terminated it returns immediately; otherwise self is added to target's
// joining set and self attempts to park. The lock order is always
// target-then-self (spec "Lock order"): target's joiner set is updated
// under target's lock, which is released before self parks under its own
// lock, so the two fibers never hold each other's lock simultaneously.
//
// Returns true if self actually parked (the caller must suspend), false if
// the join was satisfied immediately (target had already terminated, or a
// permit happened to already be available).
func AttemptJoin(self, target *Fiber) (parked bool, err error) {
	if self == target {
		return false, ErrJoinSelf
	}

	target.mu.Lock()
	if target.state.IndicatesTermination() {
		target.mu.Unlock()
		return false, nil
	}
	target.joining[self] = struct{}{}
	target.mu.Unlock()

	// self.Park may race with Terminate clearing self's permit via
	// wakeJoiners below; the spurious-wakeup rule means a park that
	// returns "already satisfied" here is always safe to treat as
	// "recheck target's state", which the caller is expected to do.
	consumed := self.Park()
	return !consumed, nil
}

// Terminate transitions the fiber to the given terminal state, recording
// its result (or error), and wakes every joining fiber by setting each
// one's permit (spec §4.E "Termination walks the joiner set and sets each
// one's permit, clearing the joiner set atomically once, to nil").
func (f *Fiber) Terminate(state State, result types.Value, err error) {
	f.mu.Lock()
	f.state = state
	f.result = result
	f.resultErr = err
	joiners := f.joining
	f.joining = make(map[*Fiber]struct{})
	f.mu.Unlock()

	for joiner := range joiners {
		joiner.Unpark()
	}
}
