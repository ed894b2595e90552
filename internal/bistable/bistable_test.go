package bistable

import "testing"

func TestLogic_HighTrip(t *testing.T) {
	l := Logic{TripAt: 2335, ResetAt: 2315, TripHigh: true}

	tests := []struct {
		name  string
		value float64
		want  bool
	}{
		{"below both", 2300, false},
		{"inside band rising", 2325, false},
		{"at trip", 2335, true},
		{"inside band falling holds", 2325, true},
		{"at reset", 2315, false},
		{"inside band after reset", 2325, false},
	}

	for _, tt := range tests {
		got := l.Update(tt.value)
		if got != tt.want {
			t.Errorf("%s: Update(%v) = %v, want %v", tt.name, tt.value, got, tt.want)
		}
	}
}

func TestLogic_LowTrip(t *testing.T) {
	// Backup heater shape: energize low, de-energize high.
	l := Logic{TripAt: 2210, ResetAt: 2235, TripHigh: false}

	if l.Update(2250) {
		t.Error("energized above band")
	}
	if !l.Update(2210) {
		t.Error("not energized at low threshold")
	}
	if !l.Update(2220) {
		t.Error("dropped out inside band")
	}
	if l.Update(2235) {
		t.Error("still energized at de-energize threshold")
	}
}

func TestLogic_NoChatterOnSlowRamp(t *testing.T) {
	// A slow triangular sweep across the band must produce exactly one trip
	// and one reset per traversal.
	l := Logic{TripAt: 10, ResetAt: 5, TripHigh: true}

	transitions := 0
	prev := false
	sweep := func(from, to, step float64) {
		v := from
		for {
			got := l.Update(v)
			if got != prev {
				transitions++
				prev = got
			}
			if (step > 0 && v >= to) || (step < 0 && v <= to) {
				break
			}
			v += step
		}
	}

	for i := 0; i < 3; i++ {
		sweep(0, 12, 0.01)
		sweep(12, 0, -0.01)
	}

	if transitions != 6 {
		t.Errorf("transitions = %d, want 6 (one trip + one reset per sweep)", transitions)
	}
}

func TestLogic_Valid(t *testing.T) {
	tests := []struct {
		name string
		l    Logic
		want bool
	}{
		{"high ordered", Logic{TripAt: 10, ResetAt: 5, TripHigh: true}, true},
		{"high inverted", Logic{TripAt: 5, ResetAt: 10, TripHigh: true}, false},
		{"high equal", Logic{TripAt: 5, ResetAt: 5, TripHigh: true}, false},
		{"low ordered", Logic{TripAt: 5, ResetAt: 10}, true},
		{"low inverted", Logic{TripAt: 10, ResetAt: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.l.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSealIn_HoldsThroughConditionClearing(t *testing.T) {
	var s SealIn

	if s.Update(false) {
		t.Error("sealed without condition")
	}
	if !s.Update(true) {
		t.Error("did not seal on condition")
	}
	if !s.Update(false) {
		t.Error("seal dropped when condition cleared")
	}
	if !s.Sealed() {
		t.Error("Sealed() disagrees with Update")
	}

	s.Reset()
	if s.Update(false) {
		t.Error("still sealed after reset")
	}
}

func TestDelayed_QualifyingTime(t *testing.T) {
	d := Delayed{HoldHr: 5.0 / 60.0} // five minutes
	dt := 1.0 / 360.0

	// Condition held for just under five minutes: never asserts.
	steps := int(d.HoldHr/dt) - 1
	for i := 0; i < steps; i++ {
		if d.Update(true, dt) {
			t.Fatalf("asserted early at step %d", i)
		}
	}

	// A gap resets the timer.
	if d.Update(false, dt) {
		t.Fatal("asserted on cleared condition")
	}
	if d.HeldHr() != 0 {
		t.Fatalf("timer not reset, held %v", d.HeldHr())
	}

	// Full qualifying interval asserts and stays asserted.
	for i := 0; i <= int(d.HoldHr/dt); i++ {
		d.Update(true, dt)
	}
	if !d.Update(true, dt) {
		t.Error("did not assert after qualifying interval")
	}
}

func TestDelayed_TimerUsesElapsedTimeNotTicks(t *testing.T) {
	coarse := Delayed{HoldHr: 0.1}
	fine := Delayed{HoldHr: 0.1}

	var coarseAt, fineAt float64
	for tHr := 0.0; tHr < 0.2; tHr += 1.0 / 360.0 {
		if coarse.Update(true, 1.0/360.0) && coarseAt == 0 {
			coarseAt = tHr
		}
	}
	for tHr := 0.0; tHr < 0.2; tHr += 1.0 / 720.0 {
		if fine.Update(true, 1.0/720.0) && fineAt == 0 {
			fineAt = tHr
		}
	}

	if diff := coarseAt - fineAt; diff > 1.0/360.0 || diff < -1.0/360.0 {
		t.Errorf("assertion times differ by %v hr across timesteps", diff)
	}
}
