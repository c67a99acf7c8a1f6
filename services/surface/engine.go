// services/surface/engine.go
package surface

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"panelcode-go/bus"
	"panelcode-go/params"
	"panelcode-go/types"
	"panelcode-go/x/mathx"
)

var (
	topicParamSet     = bus.T("param", "set")
	topicParamChanged = bus.T("param", "changed")
	topicSurfaceFunc  = bus.T("surface", "func")
	topicSystemFunc   = bus.T("system", "func")
	topicState        = bus.T("surface", "state")
)

const moduleName = "surface"

// SnapshotProvider supplies blended parameter values while a morph is in
// flight. Refresh recomputes the blend pair for the current morph position;
// BlendedValue returns the blended normalized value for a parameter path.
type SnapshotProvider interface {
	Refresh() error
	BlendedValue(path string) (float64, bool)
}

// knobState is the per-physical-knob debounce filter state.
type knobState struct {
	primed         bool
	lastPos        uint16
	delta          int
	big            bool // true: large hysteresis threshold armed
	pollSkip       int  // settle polls remaining after a commanded move
	driftPolls     int
	smallStill     int
	movingToTarget bool
	moveToLarge    bool // diagnostics: approaching the small threshold
	moveToLargeAt  time.Time
	morphable      bool
}

// switchState is the per-physical-switch haptic machine state.
type switchState struct {
	primed        bool
	logical       uint8
	lastPhysical  uint8
	latched       bool
	selectedPos   bool // single-select "selected position" marker
	pushTime      time.Time
	pushProcessed bool
	pulse         *ledPulse
	morphable     bool
}

// Engine is the surface control engine: it owns the fixed-size control
// arrays, the poll loop, and all hardware output mutation.
type Engine struct {
	cfg   types.SurfaceConfig
	drv   Driver
	store *params.Store
	conn  *bus.Connection
	snap  SnapshotProvider // nil: morphing never activates
	log   *zap.Logger

	mu       sync.Mutex
	knobs    []knobState
	switches []switchState
	overlay  overlayStack
	multiFn  types.MultiFnMode
	suppress bool // maintenance-mode emission suppression
	hwOK     bool
	reinitRq bool
	// presetsFresh forces one unconditional morph re-drive after presets
	// were (re)applied.
	presetsFresh bool

	comboPowerAt   time.Time
	comboPowerHit  bool
	comboReinitAt  time.Time
	comboReinitHit bool
}

// New constructs an engine. The control arrays are sized once from cfg and
// never resized. Morphable flags are latched from the default-state control
// parameters at construction.
func New(cfg types.SurfaceConfig, drv Driver, store *params.Store, conn *bus.Connection, snap SnapshotProvider, log *zap.Logger) *Engine {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MorphKnob >= cfg.NumKnobs {
		cfg.MorphKnob = -1
	}
	e := &Engine{
		cfg:      cfg,
		drv:      drv,
		store:    store,
		conn:     conn,
		snap:     snap,
		log:      log,
		knobs:    make([]knobState, cfg.NumKnobs),
		switches: make([]switchState, cfg.NumSwitches),
	}
	for i := range e.knobs {
		e.knobs[i].big = true
		if p, ok := store.DefaultFor(knobRef(i)); ok {
			e.knobs[i].morphable = p.Is(params.FlagMorphable)
		}
	}
	for i := range e.switches {
		if p, ok := store.DefaultFor(switchRef(i)); ok {
			e.switches[i].morphable = p.Is(params.FlagMorphable)
		}
	}
	return e
}

func knobRef(i int) types.ControlRef {
	return types.ControlRef{Type: types.ControlKnob, Index: i}
}

func switchRef(i int) types.ControlRef {
	return types.ControlRef{Type: types.ControlSwitch, Index: i}
}

// Run opens the driver and runs the poll loop until ctx is cancelled. A
// failed open is logged as critical and the engine keeps running in a
// degraded, hardware-absent state.
func (e *Engine) Run(ctx context.Context) {
	if err := e.drv.Open(); err != nil {
		e.log.Error("driver open failed, running degraded", zap.Error(err))
		e.publishState("degraded", "driver_open_failed", err)
	} else {
		e.mu.Lock()
		e.hwOK = true
		e.ledSelfTest()
		e.applyPresetsLocked()
		e.mu.Unlock()
		e.publishState("ready", "configured", nil)
	}

	pcSub := e.conn.Subscribe(topicParamSet)
	fnSub := e.conn.Subscribe(topicSurfaceFunc)
	defer e.conn.Unsubscribe(pcSub)
	defer e.conn.Unsubscribe(fnSub)

	go e.eventLoop(ctx, pcSub, fnSub)

	e.pollLoop(ctx)

	e.mu.Lock()
	for i := range e.switches {
		e.stopPulse(i)
	}
	e.mu.Unlock()

	e.publishState("stopped", "context_cancelled", nil)
	if e.hwOK {
		if err := e.drv.Close(); err != nil {
			e.log.Warn("driver close failed", zap.Error(err))
		}
	}
}

// SetMultiFnMode switches the global multi-function group mode.
func (e *Engine) SetMultiFnMode(m types.MultiFnMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.multiFn = m
}

// SetSuppressEmission toggles the maintenance-mode "don't emit" guard:
// control state and LEDs keep tracking the hardware, but no parameter
// writes, events, or propagation happen.
func (e *Engine) SetSuppressEmission(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suppress = on
}

// ---- event handling (bus callback goroutine) ----

func (e *Engine) eventLoop(ctx context.Context, pcSub, fnSub *bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-pcSub.Channel():
			if !ok {
				return
			}
			if pc, ok := m.Payload.(types.ParamChange); ok {
				e.handleParamChange(pc)
			}
		case m, ok := <-fnSub.Channel():
			if !ok {
				return
			}
			f, ok := m.Payload.(types.SurfaceControlFunc)
			if !ok {
				e.conn.Reply(m, types.EngineState{Level: "error", Status: "invalid_payload", TS: time.Now()}, false)
				continue
			}
			e.handleControlFunc(f)
			e.conn.Reply(m, types.EngineState{Level: "ok", TS: time.Now()}, false)
		}
	}
}

// handleParamChange applies an externally-driven value update to a parameter
// this engine owns, re-syncing hardware and fanning out mapped targets.
func (e *Engine) handleParamChange(pc types.ParamChange) {
	p, ok := e.store.Lookup(pc.Path)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	v := mathx.Clamp(pc.Value, 0, 1)
	if p.Value == v {
		return
	}
	p.Value = v
	if p.Is(params.FlagPhysicalControl) {
		e.syncControl(p)
	}
	e.propagate(p, nil)
}

func (e *Engine) handleControlFunc(f types.SurfaceControlFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch f.Type {
	case types.FuncResetMultiFnSwitches:
		e.resetMultiFnLocked()

	case types.FuncSetMultiFnSwitch:
		p, ok := e.store.Lookup(f.ControlPath)
		if !ok || !p.Is(params.FlagPhysicalControl|params.FlagMultiFn) ||
			p.Control.Type != types.ControlSwitch {
			return
		}
		e.selectMultiFnLocked(p.Control.Index, p)
		e.commitHW()

	case types.FuncSetSwitchValue:
		p, ok := e.store.Lookup(f.ControlPath)
		if !ok || !p.Is(params.FlagPhysicalControl) || p.Control.Type != types.ControlSwitch {
			return
		}
		var v uint8
		if f.Value >= 0.5 {
			v = 1
		}
		e.commitSwitch(p.Control.Index, p, v, e.effectiveMode(p))
		e.commitHW()

	case types.FuncSetControlHapticMode:
		p, ok := e.store.Lookup(f.ControlPath)
		if !ok || !p.Is(params.FlagPhysicalControl) {
			return
		}
		if p.Control.Type == types.ControlKnob {
			p.KnobHaptic = f.KnobHaptic
			if e.hwOK {
				if err := e.drv.SetKnobHaptic(p.Control.Index, p.KnobHaptic); err != nil {
					e.log.Warn("set knob haptic failed", zap.Int("knob", p.Control.Index), zap.Error(err))
				}
			}
		} else {
			p.Haptic = f.Haptic
			e.applySwitchHaptic(p.Control.Index, p)
		}

	case types.FuncPushPopControlsState:
		if f.PopState != "" {
			e.popStateLocked(f.PopState)
		}
		if f.PushState != "" {
			e.pushStateLocked(f.PushState)
		}
		e.commitHW()
	}
}

// resetMultiFnLocked forces every multi-function switch to logical 0 and its
// LED off, regardless of latch or selected-position state.
func (e *Engine) resetMultiFnLocked() {
	for i := e.cfg.FirstMultiFnSwitch; i < e.cfg.NumSwitches; i++ {
		s := &e.switches[i]
		e.stopPulse(i)
		s.logical = 0
		s.latched = false
		s.selectedPos = false
		s.pushProcessed = false
		e.setLED(i, false)
		if p := e.switchParam(i); p != nil && p.Value != 0 {
			p.Value = 0
			e.emitChange(p, false)
		}
	}
	e.commitHW()
}

// ---- hardware sync helpers ----

// syncControl pushes a parameter's value out to its physical control, if the
// parameter is currently the active target of that control.
func (e *Engine) syncControl(p *params.Param) {
	if !e.hwOK || !p.Is(params.FlagPhysicalControl) {
		return
	}
	if e.activeParam(p.Control) != p {
		return
	}
	switch p.Control.Type {
	case types.ControlKnob:
		if err := e.drv.SetKnobPosition(p.Control.Index, e.store.Raw(p, p.Value), false); err != nil {
			e.log.Warn("knob reposition failed", zap.Int("knob", p.Control.Index), zap.Error(err))
		}
	case types.ControlSwitch:
		var v uint8
		if p.Value >= 0.5 {
			v = 1
		}
		e.setSwitchOutput(p.Control.Index, p, v, e.effectiveMode(p))
	}
}

func (e *Engine) setLED(i int, on bool) {
	if !e.hwOK {
		return
	}
	if err := e.drv.SetSwitchLED(i, on); err != nil {
		e.log.Warn("switch LED write failed", zap.Int("switch", i), zap.Error(err))
	}
}

func (e *Engine) commitHW() {
	if !e.hwOK {
		return
	}
	if err := e.drv.CommitLEDs(); err != nil {
		e.log.Warn("LED commit failed", zap.Error(err))
	}
}

// ledSelfTest flashes every LED once; replayed after a hardware reinit.
func (e *Engine) ledSelfTest() {
	if !e.hwOK {
		return
	}
	if err := e.drv.SetAllSwitchLEDs(true); err != nil {
		e.log.Warn("LED self-test failed", zap.Error(err))
		return
	}
	e.commitHW()
	_ = e.drv.SetAllSwitchLEDs(false)
	e.commitHW()
}

// applyPresetsLocked re-applies every default-state control parameter to the
// hardware: knob haptics and positions, switch logical state and LEDs.
func (e *Engine) applyPresetsLocked() {
	if !e.hwOK {
		return
	}
	e.store.Controls(func(p *params.Param) {
		switch p.Control.Type {
		case types.ControlKnob:
			i := p.Control.Index
			if i < 0 || i >= e.cfg.NumKnobs {
				return
			}
			if err := e.drv.SetKnobHaptic(i, p.KnobHaptic); err != nil {
				e.log.Warn("knob haptic apply failed", zap.Int("knob", i), zap.Error(err))
			}
			if err := e.drv.SetKnobPosition(i, e.store.Raw(p, p.Value), true); err != nil {
				e.log.Warn("knob preset apply failed", zap.Int("knob", i), zap.Error(err))
			}
		case types.ControlSwitch:
			i := p.Control.Index
			if i < 0 || i >= e.cfg.NumSwitches {
				return
			}
			var v uint8
			if p.Value >= 0.5 {
				v = 1
			}
			e.setSwitchOutput(i, p, v, e.effectiveMode(p))
		}
	})
	e.commitHW()
	e.presetsFresh = true
}

// reinitHardware reopens the driver, replays the LED self-test, and
// re-applies all current presets to the now-fresh hardware.
func (e *Engine) reinitHardware() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.drv.Reinit(); err != nil {
		e.log.Error("hardware reinit failed", zap.Error(err))
		e.hwOK = false
		return
	}
	e.hwOK = true
	e.ledSelfTest()
	e.applyPresetsLocked()
	e.log.Info("hardware reinitialized")
}

// ---- bus output ----

func (e *Engine) emitChange(p *params.Param, display bool) {
	if e.suppress {
		return
	}
	e.conn.Publish(e.conn.NewMessage(topicParamChanged, types.ParamChange{
		Path:    p.Path,
		Value:   p.Value,
		Module:  moduleName,
		Display: display,
	}, false))
}

func (e *Engine) emitSystemFunc(target, src *params.Param) {
	if e.suppress {
		return
	}
	pos := -1
	if src.Is(params.FlagPhysicalControl | params.FlagMultiPosition) {
		pos = src.Position()
	}
	e.conn.Publish(e.conn.NewMessage(topicSystemFunc, types.SystemFunc{
		Path:     target.Path,
		Value:    src.Value,
		Position: pos,
	}, false))
}

func (e *Engine) publishState(level, status string, err error) {
	st := types.EngineState{Level: level, Status: status, TS: time.Now()}
	if err != nil {
		st.Error = err.Error()
	}
	e.conn.Publish(e.conn.NewMessage(topicState, st, true))
}

// ---- control resolution ----

func (e *Engine) knobParam(i int) *params.Param {
	return e.activeParam(knobRef(i))
}

func (e *Engine) switchParam(i int) *params.Param {
	return e.activeParam(switchRef(i))
}
