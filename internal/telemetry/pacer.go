package telemetry

import (
	"time"

	"github.com/criticalsim/heatup/internal/models"
)

// Pacer wraps a snapshot sink with wall-clock pacing so a live viewer sees
// the run advance at a steady speed. SpeedX is simulated hours per wall
// hour; 60 plays one simulated hour per wall minute. Pacing is display
// plumbing only, the simulation itself stays fixed-step.
type Pacer struct {
	next   func(models.Snapshot) error
	speedX float64

	started   bool
	startWall time.Time
	startSim  float64

	nowFunc func() time.Time
	sleep   func(time.Duration)
}

// NewPacer returns a pacer delivering snapshots to next at speedX. A speedX
// of zero or less disables pacing and passes snapshots straight through.
func NewPacer(speedX float64, next func(models.Snapshot) error) *Pacer {
	return &Pacer{
		next:    next,
		speedX:  speedX,
		nowFunc: time.Now,
		sleep:   time.Sleep,
	}
}

// Emit delays until the snapshot's simulation time is due on the wall
// clock, then passes it to the wrapped sink. A run that falls behind the
// wall clock is never delayed further.
func (p *Pacer) Emit(snap models.Snapshot) error {
	if p.speedX > 0 {
		if !p.started {
			p.started = true
			p.startWall = p.nowFunc()
			p.startSim = snap.TimeHr
		} else {
			dueWall := time.Duration((snap.TimeHr - p.startSim) / p.speedX * float64(time.Hour))
			ahead := dueWall - p.nowFunc().Sub(p.startWall)
			if ahead > 0 {
				p.sleep(ahead)
			}
		}
	}
	return p.next(snap)
}
