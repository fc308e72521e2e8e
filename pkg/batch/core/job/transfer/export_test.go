package transfer

import "time"

// SetClock replaces the clock that captures watermarks.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}
