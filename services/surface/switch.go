// services/surface/switch.go
package surface

import (
	"time"

	"go.uber.org/zap"

	"panelcode-go/params"
	"panelcode-go/types"
)

// effectiveMode resolves the haptic mode a switch runs under this poll:
// keyboard and sequencer-record passthrough force multi-function switches to
// plain PUSH; single-select leaves the configured mode in place.
func (e *Engine) effectiveMode(p *params.Param) types.HapticMode {
	if p == nil {
		return types.HapticPush
	}
	if p.Is(params.FlagMultiFn) &&
		(e.multiFn == types.MultiFnKeyboard || e.multiFn == types.MultiFnSeqRecord) {
		return types.HapticPush
	}
	return p.Haptic
}

// ledMirrors reports whether the commit step drives this switch's LED.
// NO_LED variants never do; multi-function switches don't while the group is
// in keyboard passthrough.
func (e *Engine) ledMirrors(mode types.HapticMode, p *params.Param) bool {
	if mode == types.HapticPushNoLED {
		return false
	}
	if p != nil && p.Is(params.FlagMultiFn) && e.multiFn == types.MultiFnKeyboard {
		return false
	}
	return true
}

// processSwitch runs one haptic-machine step for switch i with the raw
// physical sample of this poll cycle.
func (e *Engine) processSwitch(i int, raw uint8, now time.Time) {
	s := &e.switches[i]
	if !s.primed {
		s.primed = true
		s.lastPhysical = raw
		return
	}

	p := e.switchParam(i)
	mode := e.effectiveMode(p)

	edge := raw != s.lastPhysical
	press := edge && raw == 1
	release := edge && raw == 0

	switch mode {
	case types.HapticPush, types.HapticPushNoLED:
		// Logical state mirrors physical state exactly.
		if edge {
			e.commitSwitch(i, p, raw, mode)
		}

	case types.HapticLatchPush:
		if press {
			if s.logical == 1 {
				// Second press while ON always clears.
				s.latched = false
				s.pushProcessed = true
				e.commitSwitch(i, p, 0, mode)
			} else {
				s.pushTime = now
				s.pushProcessed = false
				e.commitSwitch(i, p, 1, mode)
			}
		} else if release && !s.pushProcessed {
			if now.Sub(s.pushTime) < e.cfg.LatchThreshold {
				// Momentary tap: revert.
				e.commitSwitch(i, p, 0, mode)
			} else {
				s.latched = true
			}
			s.pushProcessed = true
		}

	case types.HapticToggle, types.HapticToggleLEDPulse:
		if press {
			e.toggleSwitch(i, p, mode)
		}

	case types.HapticToggleRelease:
		if press {
			s.pushTime = now
			s.pushProcessed = false
		} else if release && !s.pushProcessed {
			if now.Sub(s.pushTime) <= e.cfg.ReleaseWindow {
				e.commitSwitch(i, p, 1-s.logical, mode)
			}
			s.pushProcessed = true
		}

	case types.HapticToggleHold:
		if press {
			s.pushTime = now
			s.pushProcessed = false
			e.commitSwitch(i, p, 1-s.logical, mode)
		} else if raw == 1 && !edge && !s.pushProcessed &&
			now.Sub(s.pushTime) >= e.cfg.HoldThreshold {
			// Held past the threshold: emit the confirm gesture once,
			// without flipping again.
			s.pushProcessed = true
			if p != nil && !e.suppress {
				e.emitChange(p, true)
				e.propagate(p, nil)
			}
		}
	}

	s.lastPhysical = raw
}

// toggleSwitch flips a TOGGLE-family switch on a press edge. Multi-function
// switches in single-select mode clear all active siblings and mark this one
// as the selected position; a selected position cannot be toggled off by a
// direct press.
func (e *Engine) toggleSwitch(i int, p *params.Param, mode types.HapticMode) {
	s := &e.switches[i]
	if e.multiFn == types.MultiFnSingleSelect && p != nil && p.Is(params.FlagMultiFn) {
		if s.selectedPos {
			return
		}
		e.selectMultiFnLocked(i, p)
		return
	}
	e.commitSwitch(i, p, 1-s.logical, mode)
}

// selectMultiFnLocked makes switch i the single selected position in the
// multi-function group, deactivating every sibling in the same cycle.
func (e *Engine) selectMultiFnLocked(i int, p *params.Param) {
	for j := e.cfg.FirstMultiFnSwitch; j < e.cfg.NumSwitches; j++ {
		if j == i {
			continue
		}
		sib := &e.switches[j]
		if sib.logical == 0 && !sib.selectedPos {
			continue
		}
		sib.selectedPos = false
		sp := e.switchParam(j)
		e.commitSwitch(j, sp, 0, e.effectiveMode(sp))
	}
	e.switches[i].selectedPos = true
	e.commitSwitch(i, p, 1, e.effectiveMode(p))
}

// commitSwitch is the single commit funnel for all haptic modes: update the
// logical state, mirror the LED, manage the pulse timer, then write the
// parameter value and trigger propagation unless suppressed.
func (e *Engine) commitSwitch(i int, p *params.Param, v uint8, mode types.HapticMode) {
	e.setSwitchOutput(i, p, v, mode)

	if e.suppress || p == nil {
		return
	}
	nv := float64(v)
	if p.Value != nv {
		p.Value = nv
		e.emitChange(p, true)
		e.propagate(p, nil)
	}
}

// setSwitchOutput updates logical state, LED, and pulse-timer lifecycle
// without touching the parameter value.
func (e *Engine) setSwitchOutput(i int, p *params.Param, v uint8, mode types.HapticMode) {
	s := &e.switches[i]
	s.logical = v
	if v == 0 {
		s.latched = false
	}

	if e.ledMirrors(mode, p) {
		e.setLED(i, v != 0)
	}

	if mode == types.HapticToggleLEDPulse && v == 1 {
		e.startPulse(i)
	} else {
		e.stopPulse(i)
	}
}

// applySwitchHaptic resets a switch's transient machine state after its mode
// changed or its targeted parameter was displaced, and re-syncs LED/pulse
// from the parameter value.
func (e *Engine) applySwitchHaptic(i int, p *params.Param) {
	if i < 0 || i >= e.cfg.NumSwitches {
		return
	}
	s := &e.switches[i]
	s.pushProcessed = false
	s.latched = false
	var v uint8
	if p != nil && p.Value >= 0.5 {
		v = 1
	}
	e.setSwitchOutput(i, p, v, e.effectiveMode(p))
}

// ---- LED pulse timer ----

// ledPulse is the owned periodic blink handle for TOGGLE_LED_PULSE switches.
// It exists exactly while the switch's logical state is ON.
type ledPulse struct {
	stop chan struct{}
}

func (e *Engine) startPulse(i int) {
	s := &e.switches[i]
	if s.pulse != nil {
		return
	}
	pl := &ledPulse{stop: make(chan struct{})}
	s.pulse = pl
	period := e.cfg.LEDPulsePeriod

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		on := false
		for {
			select {
			case <-pl.stop:
				return
			case <-t.C:
				e.mu.Lock()
				if e.hwOK {
					if err := e.drv.SetSwitchLED(i, on); err != nil {
						e.log.Warn("pulse LED write failed", zap.Int("switch", i), zap.Error(err))
					} else if err := e.drv.CommitLEDs(); err != nil {
						e.log.Warn("pulse LED commit failed", zap.Error(err))
					}
				}
				on = !on
				e.mu.Unlock()
			}
		}
	}()
}

func (e *Engine) stopPulse(i int) {
	s := &e.switches[i]
	if s.pulse == nil {
		return
	}
	close(s.pulse.stop)
	s.pulse = nil
}
