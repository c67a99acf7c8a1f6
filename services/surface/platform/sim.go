// services/surface/platform/sim.go
package platform

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"panelcode-go/errcode"
	"panelcode-go/types"
	"panelcode-go/x/mathx"
	"panelcode-go/x/ramp"
)

const (
	simRawTop uint16 = 0xFFFF

	simMoveMs       uint32 = 150
	simMoveRobustMs uint32 = 400
	simMoveSteps    uint16 = 32
)

// Sim is an in-memory panel: knobs travel along a linear ramp when commanded,
// switches and LEDs are plain state. Test mains poke inputs with SetSwitch
// and TurnKnob.
//
// Input reads are expected inside a Lock/Unlock bracket and take no internal
// lock; everything else locks itself.
type Sim struct {
	mu   sync.Mutex
	open bool
	log  *zap.Logger

	switches []uint8
	knobs    []uint16
	haptics  []types.KnobHaptic
	leds     []bool
	lit      []bool // committed LED state
	moving   []bool
	stops    []chan struct{}
}

func NewSim(knobs, switches int, log *zap.Logger) *Sim {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sim{
		log:      log,
		switches: make([]uint8, switches),
		knobs:    make([]uint16, knobs),
		haptics:  make([]types.KnobHaptic, knobs),
		leds:     make([]bool, switches),
		lit:      make([]bool, switches),
		moving:   make([]bool, knobs),
		stops:    make([]chan struct{}, knobs),
	}
}

func (s *Sim) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stops {
		s.stopRamp(i)
	}
	s.open = false
	return nil
}

func (s *Sim) Reinit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stops {
		s.stopRamp(i)
	}
	for i := range s.leds {
		s.leds[i] = false
		s.lit[i] = false
	}
	s.open = true
	return nil
}

func (s *Sim) Lock()   { s.mu.Lock() }
func (s *Sim) Unlock() { s.mu.Unlock() }

// ---- inputs (caller holds the lock) ----

func (s *Sim) ReadSwitchStates() ([]uint8, error) {
	if !s.open {
		return nil, errcode.DriverClosed
	}
	out := make([]uint8, len(s.switches))
	copy(out, s.switches)
	return out, nil
}

func (s *Sim) RequestKnobStates() error {
	if !s.open {
		return errcode.DriverClosed
	}
	return nil
}

func (s *Sim) ReadKnobStates() ([]uint16, error) {
	if !s.open {
		return nil, errcode.DriverClosed
	}
	out := make([]uint16, len(s.knobs))
	copy(out, s.knobs)
	return out, nil
}

func (s *Sim) KnobIsActive(i int) (bool, error) {
	if !s.open {
		return false, errcode.DriverClosed
	}
	if i < 0 || i >= len(s.knobs) {
		return false, errcode.InvalidParams
	}
	return s.moving[i], nil
}

// ---- outputs ----

func (s *Sim) SetSwitchLED(i int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errcode.DriverClosed
	}
	if i < 0 || i >= len(s.leds) {
		return errcode.InvalidParams
	}
	s.leds[i] = on
	return nil
}

func (s *Sim) SetAllSwitchLEDs(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errcode.DriverClosed
	}
	for i := range s.leds {
		s.leds[i] = on
	}
	return nil
}

func (s *Sim) CommitLEDs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errcode.DriverClosed
	}
	copy(s.lit, s.leds)
	return nil
}

// SetKnobPosition starts a simulated motor ramp toward target. A new command
// cancels any ramp still travelling on the same knob.
func (s *Sim) SetKnobPosition(i int, target uint16, robust bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errcode.DriverClosed
	}
	if i < 0 || i >= len(s.knobs) {
		return errcode.InvalidParams
	}
	s.stopRamp(i)

	// Stepped haptics land on a detent, like the real motor does.
	if h := s.haptics[i]; h.Motion == types.KnobStepped && h.Steps > 1 {
		pos := mathx.MapU16(target, 0, simRawTop, 0, uint16(h.Steps-1))
		target = mathx.MapU16(pos, 0, uint16(h.Steps-1), 0, simRawTop)
	}

	cur := s.knobs[i]
	if cur == target {
		return nil
	}
	dur := simMoveMs
	if robust {
		dur = simMoveRobustMs
	}
	stop := make(chan struct{})
	s.stops[i] = stop
	s.moving[i] = true

	go func() {
		ramp.StartLinear(cur, target, simRawTop, dur, simMoveSteps,
			func(d time.Duration) bool {
				select {
				case <-stop:
					return false
				case <-time.After(d):
					return true
				}
			},
			func(level uint16) {
				s.mu.Lock()
				s.knobs[i] = level
				s.mu.Unlock()
			})
		s.mu.Lock()
		if s.stops[i] == stop {
			s.moving[i] = false
			s.stops[i] = nil
		}
		s.mu.Unlock()
	}()
	return nil
}

func (s *Sim) SetKnobHaptic(i int, h types.KnobHaptic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errcode.DriverClosed
	}
	if i < 0 || i >= len(s.haptics) {
		return errcode.InvalidParams
	}
	s.haptics[i] = h
	return nil
}

// stopRamp cancels a travelling ramp; caller holds the lock.
func (s *Sim) stopRamp(i int) {
	if s.stops[i] != nil {
		close(s.stops[i])
		s.stops[i] = nil
		s.moving[i] = false
	}
}

// ---- test/demo input injection ----

func (s *Sim) SetSwitch(i int, v uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.switches) {
		s.switches[i] = v
	}
}

func (s *Sim) TurnKnob(i int, raw uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.knobs) {
		s.stopRamp(i)
		s.knobs[i] = raw
	}
}

func (s *Sim) LEDLit(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return i >= 0 && i < len(s.lit) && s.lit[i]
}
