// services/surface/knob.go
package surface

import (
	"time"

	"go.uber.org/zap"
)

// processKnob runs one debounce/threshold filter step for knob i with the
// raw position sampled this poll cycle. active reports whether the motor is
// still travelling toward a commanded target.
//
// The large/small hysteresis split rejects motor overshoot right after an
// externally-commanded reposition while staying responsive to genuine turns:
// crossing the active threshold arms the small one; a stretch of stationary
// polls re-arms the large one.
func (e *Engine) processKnob(i int, raw uint16, active bool, now time.Time) {
	k := &e.knobs[i]

	if !k.primed {
		k.primed = true
		k.lastPos = raw
		return
	}

	if active {
		// Hardware is still moving to a commanded target: suspend
		// filtering and arm the settle skip. The drift counter starts
		// in its already-expired state so the next real read begins
		// fresh.
		k.movingToTarget = true
		k.pollSkip = e.cfg.SettlePolls
		k.driftPolls = e.cfg.DriftTimeoutPolls
		k.lastPos = raw
		return
	}

	if k.pollSkip > 0 {
		k.pollSkip--
		k.lastPos = raw
		if k.pollSkip == 0 {
			k.movingToTarget = false
			k.delta = 0
			k.big = true
		}
		return
	}

	p := e.knobParam(i)
	if p == nil {
		k.lastPos = raw
		return
	}

	k.delta += int(raw) - int(k.lastPos)
	k.lastPos = raw
	k.driftPolls++

	defB, defS := e.cfg.DefaultThresholdBig, e.cfg.DefaultThresholdSmall

	if e.store.Exceeds(p, k.delta, k.big, defB, defS) {
		if k.big && k.moveToLarge {
			e.log.Debug("knob settled across large threshold",
				zap.Int("knob", i),
				zap.Duration("settle", now.Sub(k.moveToLargeAt)))
			k.moveToLarge = false
		}
		k.delta = 0
		k.big = false
		k.smallStill = 0
		k.driftPolls = 0

		v := e.store.Norm(p, raw)
		if v != p.Value && !e.suppress {
			p.Value = v
			e.emitChange(p, true)
			e.propagate(p, nil)
		}
		return
	}

	if !k.big {
		// Small threshold armed but no crossing: count down to the
		// debounced "idle again" fallback.
		k.smallStill++
		if k.smallStill >= e.cfg.SmallStationaryPolls {
			k.big = true
			k.smallStill = 0
			k.delta = 0
		}
	} else if e.store.Exceeds(p, k.delta, false, defB, defS) {
		// Diagnostics only: time how long the knob hovers past the
		// small threshold before (maybe) crossing the large one.
		if !k.moveToLarge {
			k.moveToLarge = true
			k.moveToLargeAt = now
		}
	} else {
		k.moveToLarge = false
	}

	// Runaway accumulator guard: a delta that lingers outside the small
	// threshold without ever resolving is forcibly reset.
	if k.driftPolls > e.cfg.DriftTimeoutPolls &&
		e.store.Exceeds(p, k.delta, false, defB, defS) {
		k.delta = 0
		k.driftPolls = 0
	}
}
