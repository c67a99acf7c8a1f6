// Package params implements the path-keyed parameter registry the surface
// engine resolves controls against. The engine never owns a parameter; it
// holds paths and control indices and looks records up here.
package params

import (
	"math"

	"panelcode-go/types"
)

// Kind tags how a parameter behaves as a propagation target.
type Kind uint8

const (
	KindPlain Kind = iota
	KindSystemFunction // terminal: translated to a SystemFunc dispatch
	KindUIStateChange  // drives a controls-state overlay push/pop
)

// Flags are parameter role markers.
type Flags uint16

const (
	FlagPhysicalControl Flags = 1 << iota
	FlagMultiPosition
	FlagMultiFn
	FlagMorphable
	FlagPersisted // UI-state params that are independently persisted
)

// Param is one parameter record. Value is normalized to [0..1]; discrete
// parameters additionally carry a Steps count and are read positionally.
//
// Value is mutated only under the surface engine's mutex; the store's own
// lock guards the registry maps, not individual values.
type Param struct {
	Path  string
	Value float64
	Kind  Kind
	Flags Flags

	// Mapped holds the ordered outgoing propagation edges (paths into the
	// same store, back-references not owned by this record).
	Mapped []string

	// StateTag names the controls-state this parameter belongs to; empty
	// means the control's default state.
	StateTag string

	// Control is the physical control binding, valid when
	// FlagPhysicalControl is set.
	Control types.ControlRef

	// Haptic descriptors: switches use Haptic, knobs use KnobHaptic.
	Haptic     types.HapticMode
	KnobHaptic types.KnobHaptic

	// Raw hardware range for position translation.
	RawMin, RawMax uint16

	// Steps > 0 marks a discrete parameter with that many positions.
	Steps int

	// Hysteresis thresholds in raw encoder counts; zero falls back to the
	// engine-configured defaults.
	ThresholdBig, ThresholdSmall int
}

// Is reports whether all bits of f are set.
func (p *Param) Is(f Flags) bool { return p.Flags&f == f }

// Position returns the discrete position index for stepped parameters.
func (p *Param) Position() int {
	if p.Steps <= 1 {
		return 0
	}
	return int(math.Round(p.Value * float64(p.Steps-1)))
}

// SetPosition sets Value from a discrete position index.
func (p *Param) SetPosition(i int) {
	if p.Steps <= 1 {
		p.Value = 0
		return
	}
	if i < 0 {
		i = 0
	}
	if i > p.Steps-1 {
		i = p.Steps - 1
	}
	p.Value = float64(i) / float64(p.Steps-1)
}
