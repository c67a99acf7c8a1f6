package types

import "time"

// SurfaceConfig is supplied on the "config/surface" bus topic (retained).
type SurfaceConfig struct {
	NumKnobs    int `json:"num_knobs"`
	NumSwitches int `json:"num_switches"`

	// MorphKnob is the index of the single physical morph knob, -1 if absent.
	MorphKnob int `json:"morph_knob"`

	// FirstMultiFnSwitch is the index of the first multi-function switch;
	// all switches from this index up form the multi-function group.
	FirstMultiFnSwitch int `json:"first_multifn_switch"`

	PollPeriod time.Duration `json:"poll_period"`

	// Knob filter tuning.
	SettlePolls          int `json:"settle_polls"`           // skip count after a commanded move
	DriftTimeoutPolls    int `json:"drift_timeout_polls"`    // forced delta reset
	SmallStationaryPolls int `json:"small_stationary_polls"` // small -> large fallback
	DefaultThresholdBig  int `json:"default_threshold_big"`
	DefaultThresholdSmall int `json:"default_threshold_small"`

	// Switch timing.
	LatchThreshold time.Duration `json:"latch_threshold"` // LATCH_PUSH tap window
	ReleaseWindow  time.Duration `json:"release_window"`  // TOGGLE_RELEASE window
	HoldThreshold  time.Duration `json:"hold_threshold"`  // TOGGLE_HOLD confirm
	LEDPulsePeriod time.Duration `json:"led_pulse_period"`

	// Hold combinations, sampled from logical switch state.
	SoftSwitches [3]int        `json:"soft_switches"` // all held -> power off
	ReinitCombo  [2]int        `json:"reinit_combo"`  // held -> hardware reinit
	ComboHold    time.Duration `json:"combo_hold"`

	// Well-known parameter paths consumed by the morph engine.
	MorphValuePath string `json:"morph_value_path"`
	MorphModePath  string `json:"morph_mode_path"`
}

// WithDefaults fills unset fields with conservative defaults.
func (c SurfaceConfig) WithDefaults() SurfaceConfig {
	if c.NumKnobs <= 0 {
		c.NumKnobs = 8
	}
	if c.NumSwitches <= 0 {
		c.NumSwitches = 16
	}
	if c.FirstMultiFnSwitch <= 0 {
		c.FirstMultiFnSwitch = c.NumSwitches / 2
	}
	if c.PollPeriod <= 0 {
		c.PollPeriod = 10 * time.Millisecond
	}
	if c.SettlePolls <= 0 {
		c.SettlePolls = 5
	}
	if c.DriftTimeoutPolls <= 0 {
		c.DriftTimeoutPolls = 100
	}
	if c.SmallStationaryPolls <= 0 {
		c.SmallStationaryPolls = 50
	}
	if c.DefaultThresholdBig <= 0 {
		c.DefaultThresholdBig = 4
	}
	if c.DefaultThresholdSmall <= 0 {
		c.DefaultThresholdSmall = 1
	}
	if c.LatchThreshold <= 0 {
		c.LatchThreshold = 500 * time.Millisecond
	}
	if c.ReleaseWindow <= 0 {
		c.ReleaseWindow = 500 * time.Millisecond
	}
	if c.HoldThreshold <= 0 {
		c.HoldThreshold = time.Second
	}
	if c.LEDPulsePeriod <= 0 {
		c.LEDPulsePeriod = 250 * time.Millisecond
	}
	if c.ComboHold <= 0 {
		c.ComboHold = 3 * time.Second
	}
	// All-zero combo indices mean the combination was never configured; a
	// negative index disables the slot, so a bare default config cannot
	// power off or reinit from switch 0 alone.
	var noSoft [3]int
	if c.SoftSwitches == noSoft {
		c.SoftSwitches = [3]int{-1, -1, -1}
	}
	var noReinit [2]int
	if c.ReinitCombo == noReinit {
		c.ReinitCombo = [2]int{-1, -1}
	}
	if c.MorphValuePath == "" {
		c.MorphValuePath = "morph/value"
	}
	if c.MorphModePath == "" {
		c.MorphModePath = "morph/mode"
	}
	return c
}
