package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device's surface config
//
// Durations are nanoseconds, matching time.Duration's JSON form.
// -----------------------------------------------------------------------------

const cfgPanelMk2 = `{
  "num_knobs": 8,
  "num_switches": 16,
  "morph_knob": 7,
  "first_multifn_switch": 8,
  "poll_period": 10000000,
  "default_threshold_big": 4,
  "default_threshold_small": 1,
  "soft_switches": [0, 1, 2],
  "reinit_combo": [0, 15],
  "morph_value_path": "morph/value",
  "morph_mode_path": "morph/mode"
}`

var embeddedConfigs = map[string][]byte{
	"panel_mk2": []byte(cfgPanelMk2),
}
