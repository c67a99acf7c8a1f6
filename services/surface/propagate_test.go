package surface

import (
	"testing"

	"panelcode-go/params"
	"panelcode-go/types"
)

// propagateFrom drives one propagation pass under the engine lock, the way
// a committed control change would.
func (f *fixture) propagateFrom(path string, v float64) {
	f.t.Helper()
	p, ok := f.store.Lookup(path)
	if !ok {
		f.t.Fatalf("no param %s", path)
	}
	f.e.mu.Lock()
	p.Value = v
	f.e.propagate(p, nil)
	f.e.mu.Unlock()
}

func TestPropagateCopiesValueAlongChain(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		s.Add(&params.Param{Path: "macro/brightness", Mapped: []string{"filter/cutoff"}})
		s.Add(&params.Param{Path: "filter/cutoff", Mapped: []string{"fx/tone"}})
		s.Add(&params.Param{Path: "fx/tone"})
	})

	f.propagateFrom("macro/brightness", 0.8)

	for _, path := range []string{"filter/cutoff", "fx/tone"} {
		p, _ := f.store.Lookup(path)
		if p.Value != 0.8 {
			t.Fatalf("%s = %v", path, p.Value)
		}
	}
	got := f.changes()
	if len(got) != 2 {
		t.Fatalf("changes = %+v, want targets only", got)
	}
	for _, c := range got {
		if c.Display {
			t.Fatalf("propagated change %s flagged for display", c.Path)
		}
	}
}

func TestPropagateBackEdgeDoesNotRecurse(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		s.Add(&params.Param{Path: "osc1/level", Mapped: []string{"osc2/level"}})
		s.Add(&params.Param{Path: "osc2/level", Mapped: []string{"osc1/level"}})
	})

	f.propagateFrom("osc1/level", 0.6)

	a, _ := f.store.Lookup("osc1/level")
	b, _ := f.store.Lookup("osc2/level")
	if a.Value != 0.6 || b.Value != 0.6 {
		t.Fatalf("values = %v / %v", a.Value, b.Value)
	}
	// Exactly one emission: the back-edge to the source is excluded.
	if got := f.changes(); len(got) != 1 || got[0].Path != "osc2/level" {
		t.Fatalf("changes = %+v", got)
	}
}

func TestPropagateUnchangedTargetStops(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		s.Add(&params.Param{Path: "src", Mapped: []string{"mid"}})
		s.Add(&params.Param{Path: "mid", Value: 0.5, Mapped: []string{"far"}})
		s.Add(&params.Param{Path: "far"})
	})

	f.propagateFrom("src", 0.5)

	// mid already held 0.5: no emission, no recursion into far.
	far, _ := f.store.Lookup("far")
	if far.Value != 0 {
		t.Fatalf("far = %v, want untouched", far.Value)
	}
	f.expectNoChange()
}

func TestPropagateSyncsMappedPhysicalControl(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		s.Add(&params.Param{Path: "macro/brightness", Mapped: []string{"filter/cutoff"}})
		s.Add(testKnob("filter/cutoff", 1, 0, 1000))
	})

	f.propagateFrom("macro/brightness", 0.3)

	mc, ok := f.drv.lastMotor()
	if !ok || mc.knob != 1 || mc.target != 300 || mc.robust {
		t.Fatalf("motor = %+v ok=%v", mc, ok)
	}
}

func TestPropagateSystemFunctionIsTerminal(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		src := testSwitch("transport/stop", 1, types.HapticPush)
		src.Mapped = []string{"system/stop-all"}
		s.Add(src)
		s.Add(&params.Param{
			Path:   "system/stop-all",
			Kind:   params.KindSystemFunction,
			Mapped: []string{"never/reached"},
		})
		s.Add(&params.Param{Path: "never/reached"})
	})

	f.pollSwitch(1, 0)
	f.pollSwitch(1, 1)

	fns := f.systemFuncs()
	if len(fns) != 1 || fns[0].Path != "system/stop-all" || fns[0].Value != 1 {
		t.Fatalf("system funcs = %+v", fns)
	}
	if fns[0].Position != -1 {
		t.Fatalf("position = %d, want -1 for non-positional source", fns[0].Position)
	}
	nr, _ := f.store.Lookup("never/reached")
	if nr.Value != 0 {
		t.Fatal("propagation continued past a system-function target")
	}
}

func TestPropagateSystemFunctionCarriesPosition(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		src := testKnob("seq/pattern", 0, 0, 1000)
		src.Flags |= params.FlagMultiPosition
		src.Steps = 4
		src.Mapped = []string{"system/pattern-select"}
		s.Add(src)
		s.Add(&params.Param{Path: "system/pattern-select", Kind: params.KindSystemFunction})
	})

	f.pollKnob(0, 0)
	f.pollKnob(0, 700) // snaps to position 2 of 0..3

	fns := f.systemFuncs()
	if len(fns) != 1 || fns[0].Position != 2 {
		t.Fatalf("system funcs = %+v", fns)
	}
}

func TestPropagateUIStateChangePushesAndPops(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		key := testSwitch("ui/shift-key", 2, types.HapticPush)
		key.Mapped = []string{"ui/shift"}
		s.Add(key)
		s.Add(&params.Param{Path: "ui/shift", Kind: params.KindUIStateChange, StateTag: "shift"})

		s.Add(testKnob("filter/cutoff", 0, 0, 1000))
		alt := testKnob("filter/env-amount", 0, 0, 1000)
		alt.StateTag = "shift"
		s.Add(alt)
	})

	f.pollSwitch(2, 0)
	f.pollSwitch(2, 1)
	if got := f.e.activeParam(knobRef(0)).Path; got != "filter/env-amount" {
		t.Fatalf("active = %s, want shift overlay", got)
	}

	f.pollSwitch(2, 0)
	if got := f.e.activeParam(knobRef(0)).Path; got != "filter/cutoff" {
		t.Fatalf("active = %s, want default after pop", got)
	}
}

func TestPropagatePersistedUIStateEmits(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		key := testSwitch("ui/latch-key", 2, types.HapticToggle)
		key.Mapped = []string{"ui/latch"}
		s.Add(key)
		s.Add(&params.Param{
			Path:     "ui/latch",
			Kind:     params.KindUIStateChange,
			StateTag: "latch",
			Flags:    params.FlagPersisted,
		})
	})

	f.pollSwitch(2, 0)
	f.pollSwitch(2, 1)

	got := f.changes()
	if len(got) != 2 {
		t.Fatalf("changes = %+v, want switch + persisted state", got)
	}
	st, _ := f.store.Lookup("ui/latch")
	if st.Value != 1 {
		t.Fatalf("persisted value = %v", st.Value)
	}
}
