// services/surface/propagate.go
package surface

import (
	"panelcode-go/params"
)

// propagate fans a committed value change at p out along its mapped-parameter
// edges, depth-first. exclude is the single-hop recursion guard: the one edge
// pointing back at the node that caused this call is skipped, nothing more.
// Longer cycles are assumed one-hop-acyclic by graph construction.
//
// This is the only code path allowed to mutate hardware output state as a
// side effect of value propagation.
func (e *Engine) propagate(p *params.Param, exclude *params.Param) {
	for _, path := range p.Mapped {
		m, ok := e.store.Lookup(path)
		if !ok || m == exclude {
			continue
		}

		switch m.Kind {
		case params.KindSystemFunction:
			// Terminal: translated to a discrete system-function
			// dispatch, never itself a propagation source.
			e.emitSystemFunc(m, p)

		case params.KindUIStateChange:
			// The originating switch's ON/OFF selects push vs pop of
			// the named overlay group.
			if p.Value >= 0.5 {
				e.pushStateLocked(m.StateTag)
			} else {
				e.popStateLocked(m.StateTag)
			}
			if m.Is(params.FlagPersisted) && m.Value != p.Value {
				m.Value = p.Value
				e.emitChange(m, false)
			}

		default:
			old := m.Value
			m.Value = p.Value
			if m.Is(params.FlagPhysicalControl) {
				e.syncControl(m)
			}
			if m.Value != old {
				e.emitChange(m, false)
				e.propagate(m, p)
			}
		}
	}
}
