package types

// ---- Bus event payloads ----

// ParamChange announces a committed parameter value change.
// Display suppresses the UI echo for internally-derived changes.
type ParamChange struct {
	Path    string  `json:"path"`
	Value   float64 `json:"value"`
	Module  string  `json:"module"`
	Display bool    `json:"display"`
}

// SystemFunc is the terminal dispatch for system-function mapped targets.
// Position carries the integer position when the source is a multi-position
// physical control, -1 otherwise.
type SystemFunc struct {
	Path     string  `json:"path"`
	Value    float64 `json:"value"`
	Position int     `json:"position"`
}

// SurfaceFuncType tags a SurfaceControlFunc request.
type SurfaceFuncType uint8

const (
	FuncResetMultiFnSwitches SurfaceFuncType = iota
	FuncSetMultiFnSwitch
	FuncSetSwitchValue
	FuncSetControlHapticMode
	FuncPushPopControlsState
)

// SurfaceControlFunc is an externally-issued command to the surface engine.
// Fields beyond Type are interpreted per type:
//
//	FuncSetMultiFnSwitch     ControlPath
//	FuncSetSwitchValue       ControlPath, Value
//	FuncSetControlHapticMode ControlPath, Haptic or KnobHaptic
//	FuncPushPopControlsState PushState and/or PopState (both set = atomic swap)
type SurfaceControlFunc struct {
	Type        SurfaceFuncType `json:"type"`
	ControlPath string          `json:"control_path,omitempty"`
	Value       float64         `json:"value,omitempty"`
	Haptic      HapticMode      `json:"haptic,omitempty"`
	KnobHaptic  KnobHaptic      `json:"knob_haptic,omitempty"`
	PushState   string          `json:"push_state,omitempty"`
	PopState    string          `json:"pop_state,omitempty"`
}
