package params

import (
	"math"
	"sync"

	"panelcode-go/errcode"
	"panelcode-go/types"
	"panelcode-go/x/mathx"
)

// stateKey indexes a parameter by its controls-state tag and control binding.
type stateKey struct {
	tag string
	ref types.ControlRef
}

// Store is the path-keyed parameter registry. The RW mutex guards the maps;
// Param.Value is owned by the engine (see Param docs).
type Store struct {
	mu       sync.RWMutex
	byPath   map[string]*Param
	defaults map[types.ControlRef]*Param // physical controls, empty StateTag
	byState  map[stateKey]*Param         // physical controls, named StateTag
	byTag    map[string][]*Param         // every param carrying a state tag
}

func NewStore() *Store {
	return &Store{
		byPath:   map[string]*Param{},
		defaults: map[types.ControlRef]*Param{},
		byState:  map[stateKey]*Param{},
		byTag:    map[string][]*Param{},
	}
}

// Add registers a parameter. Duplicate paths are rejected.
func (s *Store) Add(p *Param) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byPath[p.Path]; exists {
		return errcode.InvalidParams
	}
	s.byPath[p.Path] = p

	if p.StateTag != "" {
		s.byTag[p.StateTag] = append(s.byTag[p.StateTag], p)
	}
	if p.Is(FlagPhysicalControl) {
		if p.StateTag == "" {
			s.defaults[p.Control] = p
		} else {
			s.byState[stateKey{tag: p.StateTag, ref: p.Control}] = p
		}
	}
	return nil
}

// Lookup returns the parameter at path, ok=false if absent.
func (s *Store) Lookup(path string) (*Param, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byPath[path]
	return p, ok
}

// DefaultFor returns the default-state parameter bound to a physical control.
func (s *Store) DefaultFor(ref types.ControlRef) (*Param, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.defaults[ref]
	return p, ok
}

// ForState returns the parameter bound to a control within a named state.
func (s *Store) ForState(tag string, ref types.ControlRef) (*Param, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byState[stateKey{tag: tag, ref: ref}]
	return p, ok
}

// Tagged returns every parameter carrying the given state tag.
func (s *Store) Tagged(tag string) []*Param {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byTag[tag]
}

// Each visits all parameters in unspecified order.
func (s *Store) Each(fn func(*Param)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byPath {
		fn(p)
	}
}

// Controls visits every default-state physical-control parameter.
func (s *Store) Controls(fn func(*Param)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.defaults {
		fn(p)
	}
}

// ---- raw <-> normalized translation ----

// Norm translates a raw hardware position into the parameter's normalized
// value, snapping stepped parameters to their nearest position.
func (s *Store) Norm(p *Param, raw uint16) float64 {
	lo, hi := p.RawMin, p.RawMax
	if hi <= lo {
		return 0
	}
	raw = mathx.Clamp(raw, lo, hi)
	v := float64(raw-lo) / float64(hi-lo)
	if p.Steps > 1 {
		v = math.Round(v*float64(p.Steps-1)) / float64(p.Steps-1)
	}
	return v
}

// Raw translates a normalized value back into a raw hardware position.
func (s *Store) Raw(p *Param, norm float64) uint16 {
	lo, hi := p.RawMin, p.RawMax
	if hi <= lo {
		return lo
	}
	norm = mathx.Clamp(norm, 0, 1)
	return lo + uint16(math.Round(norm*float64(hi-lo)))
}

// Exceeds reports whether an accumulated signed delta crosses the active
// hysteresis threshold for p. Zero thresholds fall back to the defaults.
func (s *Store) Exceeds(p *Param, delta int, big bool, defBig, defSmall int) bool {
	thr := p.ThresholdSmall
	def := defSmall
	if big {
		thr = p.ThresholdBig
		def = defBig
	}
	if thr <= 0 {
		thr = def
	}
	return mathx.Abs(delta) > thr
}
