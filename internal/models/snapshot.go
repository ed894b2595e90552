package models

// Snapshot is one tick of recorded trajectory: the full observable plant
// state plus an echo of the inputs that produced it. The trace store, the
// JSONL tick log, the telemetry hub, and the phase analyzer all consume this
// shape.
type Snapshot struct {
	PlantState

	Inputs ExternalInputs `json:"inputs"`
}

// TotalSGDutyBTUHr sums the per-generator heat duties.
func (s *Snapshot) TotalSGDutyBTUHr() float64 {
	var sum float64
	for i := range s.SGs {
		sum += s.SGs[i].HeatDutyBTUHr
	}
	return sum
}
