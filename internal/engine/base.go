package engine

import "time"

const (
	// ProtectionWindow is how long in-base protection lasts from entry,
	// even while healing continues.
	ProtectionWindow = 5 * time.Second
	// BaseMemory is how long a device must go without healing before a new
	// entry resets the protection window.
	BaseMemory = 15 * time.Second
)

// baseState tracks the in-base sub-state. Any heal tick while outside the
// base enters it. in drops as soon as healing stops, or on a later heal tick
// once ProtectionWindow has passed since entry. The entry time is only
// forgotten after BaseMemory without healing, so a quick re-entry keeps the
// old entry time and loses protection again on its next heal tick.
type baseState struct {
	in         bool
	remembered bool
	enteredMs  int64
	idle       bool
	idleSince  int64
}

func (b *baseState) update(nowMs int64, heal int32) {
	if heal > 0 {
		b.idle = false
		if !b.in {
			b.in = true
			if !b.remembered {
				b.remembered = true
				b.enteredMs = nowMs
			}
		} else if nowMs-b.enteredMs >= ProtectionWindow.Milliseconds() {
			b.in = false
		}
		return
	}

	b.in = false
	if !b.idle {
		b.idle = true
		b.idleSince = nowMs
	}
	if nowMs-b.idleSince >= BaseMemory.Milliseconds() {
		b.remembered = false
	}
}
