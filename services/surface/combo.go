// services/surface/combo.go
package surface

import (
	"time"

	"panelcode-go/types"
)

// detectCombos checks the two hold-combinations from already-sampled logical
// switch states; no extra hardware reads. Each fires once per hold.
func (e *Engine) detectCombos(now time.Time) {
	if e.comboHeld(e.cfg.SoftSwitches[:]) {
		if e.comboPowerAt.IsZero() {
			e.comboPowerAt = now
		} else if !e.comboPowerHit && now.Sub(e.comboPowerAt) >= e.cfg.ComboHold {
			e.comboPowerHit = true
			e.log.Info("power-off combination held")
			e.conn.Publish(e.conn.NewMessage(topicSystemFunc, types.SystemFunc{
				Path:     "system/power-off",
				Value:    1,
				Position: -1,
			}, false))
		}
	} else {
		e.comboPowerAt = time.Time{}
		e.comboPowerHit = false
	}

	if e.comboHeld(e.cfg.ReinitCombo[:]) {
		if e.comboReinitAt.IsZero() {
			e.comboReinitAt = now
		} else if !e.comboReinitHit && now.Sub(e.comboReinitAt) >= e.cfg.ComboHold {
			e.comboReinitHit = true
			e.reinitRq = true
			e.log.Info("hardware reinit combination held")
		}
	} else {
		e.comboReinitAt = time.Time{}
		e.comboReinitHit = false
	}
}

func (e *Engine) comboHeld(idx []int) bool {
	for _, i := range idx {
		if i < 0 || i >= len(e.switches) || e.switches[i].logical == 0 {
			return false
		}
	}
	return len(idx) > 0
}

// takeReinit consumes a pending reinit request.
func (e *Engine) takeReinit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.reinitRq {
		return false
	}
	e.reinitRq = false
	return true
}
