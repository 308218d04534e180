package fiber

// Park is the parking-permit primitive (spec §4.E "Parking permits"): it
// consumes the fiber's single-bit permit and returns immediately if one
// was available, otherwise transitions the fiber to Parked and reports
// that the caller must suspend (the scheduler, not this method, performs
// the actual suspension of the running goroutine).
//
// Spurious wakeups are permitted: a fiber resumed from Parked must
// recheck whatever condition it was waiting on, exactly as if Park had
// returned having consumed a permit that was never really "for" it.
func (f *Fiber) Park() (consumed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flags&FlagPermitUnavailable == 0 {
		// Permit was available: consume it and return without suspending.
		f.flags |= FlagPermitUnavailable
		return true
	}
	f.state = Parked
	return false
}

// Unpark sets the fiber's permit and, if it is currently Parked,
// transitions it back to Suspended so the scheduler can schedule it
// (spec §4.E "unpark sets the permit and, if the fiber is PARKED,
// schedules it back to SUSPENDED"). Returns true if the fiber was woken.
func (f *Fiber) Unpark() (woken bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags &^= FlagPermitUnavailable
	if f.state == Parked {
		f.state = Suspended
		return true
	}
	return false
}

// PermitAvailable reports whether the fiber's park permit is currently
// set, for tests and diagnostics.
func (f *Fiber) PermitAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags&FlagPermitUnavailable == 0
}
