// services/surface/poll.go
package surface

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// pollLoop drives pollOnce at the fixed configured period. The remainder of
// each period is slept outside the engine lock; cancellation is cooperative
// and checked once per iteration.
func (e *Engine) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		e.pollOnce(start)

		if d := e.cfg.PollPeriod - time.Since(start); d > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
		}
	}
}

// pollOnce runs one full poll cycle: pending reinit, morph evaluation, one
// locked sample-and-update pass, combo detection, LED commit.
func (e *Engine) pollOnce(now time.Time) {
	if e.takeReinit() {
		e.reinitHardware()
	}

	// Snapshot refresh happens before the lock is taken.
	morphing := e.evalMorph()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hwOK {
		return
	}

	// One bus transaction: all raw samples of this cycle.
	e.drv.Lock()
	sw, errSw := e.drv.ReadSwitchStates()
	var kn []uint16
	var errKn error
	if errKn = e.drv.RequestKnobStates(); errKn == nil {
		kn, errKn = e.drv.ReadKnobStates()
	}
	actives := make([]bool, len(kn))
	for i := range kn {
		a, err := e.drv.KnobIsActive(i)
		if err != nil {
			break
		}
		actives[i] = a
	}
	e.drv.Unlock()

	if errSw != nil {
		e.log.Warn("switch read failed", zap.Error(errSw))
		sw = nil
	}
	if errKn != nil {
		e.log.Warn("knob read failed", zap.Error(errKn))
		kn = nil
	}

	// The morph knob itself is always processed first, so the user can
	// always turn it.
	mi := e.cfg.MorphKnob
	if mi >= 0 && mi < len(kn) {
		e.processKnob(mi, kn[mi], actives[mi], now)
	}
	morphing = morphing && mi >= 0 && e.morphNeutral()

	for i := range kn {
		if i == mi || i >= len(e.knobs) {
			continue
		}
		if morphing && e.knobs[i].morphable {
			e.driveMorphedKnob(i)
		} else {
			e.processKnob(i, kn[i], actives[i], now)
		}
	}

	for i := range sw {
		if i >= len(e.switches) {
			break
		}
		if morphing && e.switches[i].morphable {
			e.driveMorphedSwitch(i)
		} else {
			e.processSwitch(i, sw[i], now)
		}
	}

	if morphing {
		e.presetsFresh = false
	}

	e.detectCombos(now)

	// LED state is committed unconditionally, whichever branch ran.
	e.commitHW()
}
