// Package bistable implements the latching threshold logic shared by the
// protection-style channels in the plant: backup heater banks, PORV channels,
// steam-dump trip-open channels, and the P-12 interlock all trip at one value
// and reset at another so a signal sitting near a single setpoint cannot
// chatter the output.
package bistable

// Logic is a hysteresis comparator. With TripHigh set it trips when the value
// reaches TripAt and resets when the value falls back to ResetAt (TripAt >
// ResetAt); with TripHigh clear the comparisons mirror for a low trip
// (TripAt < ResetAt). Threshold ordering is enforced by config validation,
// not here.
type Logic struct {
	TripAt   float64
	ResetAt  float64
	TripHigh bool

	tripped bool
}

// Update advances the comparator with a new value and reports the latched
// output.
func (l *Logic) Update(value float64) bool {
	if l.TripHigh {
		switch {
		case value >= l.TripAt:
			l.tripped = true
		case value <= l.ResetAt:
			l.tripped = false
		}
	} else {
		switch {
		case value <= l.TripAt:
			l.tripped = true
		case value >= l.ResetAt:
			l.tripped = false
		}
	}
	return l.tripped
}

// Tripped reports the latched output without advancing the comparator.
func (l *Logic) Tripped() bool { return l.tripped }

// Force overrides the latched output. Used to seed initial conditions when a
// simulation starts mid-procedure.
func (l *Logic) Force(tripped bool) { l.tripped = tripped }

// Valid reports whether the threshold pair is ordered for the trip direction.
func (l Logic) Valid() bool {
	if l.TripHigh {
		return l.TripAt > l.ResetAt
	}
	return l.TripAt < l.ResetAt
}

// SealIn latches the first true condition until Reset is called, regardless
// of what the condition does afterward. This is the C-7 style arming latch.
type SealIn struct {
	sealed bool
}

// Update latches on a true condition and reports the sealed state.
func (s *SealIn) Update(condition bool) bool {
	if condition {
		s.sealed = true
	}
	return s.sealed
}

// Sealed reports the latch without updating it.
func (s *SealIn) Sealed() bool { return s.sealed }

// Reset clears the latch. Only an explicit reset clears it; a cleared
// condition never does.
func (s *SealIn) Reset() { s.sealed = false }

// Delayed asserts only after its condition has held continuously for HoldHr
// of simulation time. The qualifying timer accumulates elapsed time rather
// than tick counts, so halving the timestep does not move the assertion
// point. Any gap in the condition restarts the timer.
type Delayed struct {
	HoldHr float64

	heldHr float64
}

// Update advances the qualifying timer by dtHr and reports whether the
// condition has been held long enough.
func (d *Delayed) Update(condition bool, dtHr float64) bool {
	if !condition {
		d.heldHr = 0
		return false
	}
	d.heldHr += dtHr
	return d.heldHr >= d.HoldHr
}

// HeldHr reports how long the condition has currently been held.
func (d *Delayed) HeldHr() float64 { return d.heldHr }
