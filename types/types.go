package types

import "time"

// ---- Engine lifecycle state (retained) ----

type EngineState struct {
	Level  string    `json:"level"`  // e.g. "ready", "degraded", "stopped"
	Status string    `json:"status"` // freeform short code
	TS     time.Time `json:"ts"`
	Error  string    `json:"error,omitempty"`
}

// ---- Physical control addressing ----

type ControlType uint8

const (
	ControlKnob ControlType = iota
	ControlSwitch
)

func (t ControlType) String() string {
	if t == ControlKnob {
		return "knob"
	}
	return "switch"
}

// ControlRef addresses one physical control on the panel.
type ControlRef struct {
	Type  ControlType
	Index int
}

// ---- Switch haptic modes ----

// HapticMode is the behavioural contract assigned to a physical switch.
type HapticMode uint8

const (
	HapticPush HapticMode = iota
	HapticPushNoLED
	HapticLatchPush
	HapticToggle
	HapticToggleLEDPulse
	HapticToggleRelease
	HapticToggleHold
)

func (m HapticMode) String() string {
	switch m {
	case HapticPush:
		return "push"
	case HapticPushNoLED:
		return "push_no_led"
	case HapticLatchPush:
		return "latch_push"
	case HapticToggle:
		return "toggle"
	case HapticToggleLEDPulse:
		return "toggle_led_pulse"
	case HapticToggleRelease:
		return "toggle_release"
	case HapticToggleHold:
		return "toggle_hold"
	}
	return "unknown"
}

// ---- Knob haptic descriptor ----

type KnobMotion uint8

const (
	KnobFree KnobMotion = iota
	KnobStepped
	KnobCentered
)

// KnobHaptic is the positioning/step descriptor applied to a motorized knob.
type KnobHaptic struct {
	Motion KnobMotion
	Steps  int // detent count for KnobStepped, 0 otherwise
}

// ---- Multi-function switch group modes ----

type MultiFnMode uint8

const (
	MultiFnDisabled MultiFnMode = iota
	MultiFnKeyboard             // keyboard passthrough: switches act as keys
	MultiFnSingleSelect
	MultiFnSeqRecord // sequencer-record passthrough
)

func (m MultiFnMode) String() string {
	switch m {
	case MultiFnDisabled:
		return "disabled"
	case MultiFnKeyboard:
		return "keyboard"
	case MultiFnSingleSelect:
		return "single_select"
	case MultiFnSeqRecord:
		return "seq_record"
	}
	return "unknown"
}

// ---- Morph blend modes ----

type MorphMode uint8

const (
	MorphModeDJ    MorphMode = iota // pass-through crossfade, controls stay live
	MorphModeBlend                  // snapshot blend drives morphable controls
)
