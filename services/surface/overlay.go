// services/surface/overlay.go
package surface

import (
	"go.uber.org/zap"

	"panelcode-go/params"
	"panelcode-go/types"
)

// overlayStack is the named controls-state stack. The most recently pushed
// state that defines a given physical control wins; with no matching entry
// the control's default-state parameter applies.
type overlayStack []string

func (o *overlayStack) push(name string) {
	*o = append(*o, name)
}

// pop removes the most recent occurrence of name, reporting whether it was
// present.
func (o *overlayStack) pop(name string) bool {
	s := *o
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == name {
			*o = append(s[:i], s[i+1:]...)
			return true
		}
	}
	return false
}

// activeParam resolves the parameter a physical control currently targets.
func (e *Engine) activeParam(ref types.ControlRef) *params.Param {
	for i := len(e.overlay) - 1; i >= 0; i-- {
		if p, ok := e.store.ForState(e.overlay[i], ref); ok {
			return p
		}
	}
	if p, ok := e.store.DefaultFor(ref); ok {
		return p
	}
	return nil
}

// pushStateLocked activates a named controls-state: every parameter tagged
// with it displaces the previous target of its physical control. Owned
// controls get their haptic mode re-applied and hardware re-synced.
func (e *Engine) pushStateLocked(name string) {
	e.overlay.push(name)
	e.log.Debug("controls state pushed", zap.String("state", name))
	for _, p := range e.store.Tagged(name) {
		e.reapplyControl(p)
	}
}

// popStateLocked reverts a named controls-state; the affected controls fall
// back to whatever the stack now resolves for them.
func (e *Engine) popStateLocked(name string) {
	tagged := e.store.Tagged(name)
	if !e.overlay.pop(name) {
		return
	}
	e.log.Debug("controls state popped", zap.String("state", name))
	for _, p := range tagged {
		if !p.Is(params.FlagPhysicalControl) {
			continue
		}
		if q := e.activeParam(p.Control); q != nil {
			e.reapplyControl(q)
		}
	}
}

// reapplyControl re-applies haptics and hardware position/LED for the
// parameter now targeted by a physical control this engine owns.
func (e *Engine) reapplyControl(p *params.Param) {
	if !p.Is(params.FlagPhysicalControl) {
		return
	}
	switch p.Control.Type {
	case types.ControlKnob:
		if e.hwOK && p.Control.Index < e.cfg.NumKnobs {
			if err := e.drv.SetKnobHaptic(p.Control.Index, p.KnobHaptic); err != nil {
				e.log.Warn("knob haptic apply failed", zap.Int("knob", p.Control.Index), zap.Error(err))
			}
		}
		e.syncControl(p)
	case types.ControlSwitch:
		e.applySwitchHaptic(p.Control.Index, p)
	}
}
