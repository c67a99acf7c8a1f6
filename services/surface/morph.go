// services/surface/morph.go
package surface

import (
	"go.uber.org/zap"

	"panelcode-go/types"
)

// evalMorph decides whether morphing is active and moving this cycle and, if
// so, refreshes the provider's blend pair. The snapshot refresh runs before
// the engine lock is taken; the value/mode reads take the lock briefly, since
// bus handlers mutate those parameters under it. The overlay-neutrality of
// the morph knob is re-checked under the lock in the poll cycle.
func (e *Engine) evalMorph() bool {
	if e.cfg.MorphKnob < 0 || e.snap == nil {
		return false
	}
	e.mu.Lock()
	mv, ok := e.store.Lookup(e.cfg.MorphValuePath)
	var value, modeVal float64
	if ok {
		value = mv.Value
		if mm, ok := e.store.Lookup(e.cfg.MorphModePath); ok {
			modeVal = mm.Value
		}
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	// At either blend extreme every control reads hardware directly, so
	// physical feedback is exact at the endpoints.
	if value <= 0 || value >= 1 {
		return false
	}
	mode := types.MorphModeDJ
	if modeVal >= 0.5 {
		mode = types.MorphModeBlend
	}
	if mode == types.MorphModeDJ {
		return false
	}
	if err := e.snap.Refresh(); err != nil {
		e.log.Debug("blend snapshot unavailable", zap.Error(err))
		return false
	}
	return true
}

// morphNeutral reports whether the morph knob currently targets its
// default-state parameter (no overlay remap). Caller holds the engine lock.
func (e *Engine) morphNeutral() bool {
	ref := knobRef(e.cfg.MorphKnob)
	d, ok := e.store.DefaultFor(ref)
	return ok && e.activeParam(ref) == d
}

// driveMorphedKnob bypasses the debounce filter and sets the knob's active
// parameter from the blended snapshot whenever it differs, or once
// unconditionally right after presets were reloaded. The motor follows the
// blended value so the physical position is exact when the blend ends.
func (e *Engine) driveMorphedKnob(i int) {
	m := e.knobParam(i)
	if m == nil {
		return
	}
	bv, ok := e.snap.BlendedValue(m.Path)
	if !ok {
		return
	}
	if bv == m.Value && !e.presetsFresh {
		return
	}
	m.Value = bv
	e.syncControl(m)
	e.emitChange(m, false)
	e.propagate(m, nil)
}

// driveMorphedSwitch sets a morphable switch from the blended snapshot,
// keeping logical state and LED in step.
func (e *Engine) driveMorphedSwitch(i int) {
	m := e.switchParam(i)
	if m == nil {
		return
	}
	bv, ok := e.snap.BlendedValue(m.Path)
	if !ok {
		return
	}
	if bv == m.Value && !e.presetsFresh {
		return
	}
	var v uint8
	if bv >= 0.5 {
		v = 1
	}
	m.Value = bv
	e.setSwitchOutput(i, m, v, e.effectiveMode(m))
	e.emitChange(m, false)
	e.propagate(m, nil)
}
