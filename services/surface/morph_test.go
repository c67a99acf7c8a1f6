package surface

import (
	"testing"

	"panelcode-go/params"
	"panelcode-go/types"
)

type fakeSnap struct {
	refreshErr error
	refreshes  int
	vals       map[string]float64
}

func (s *fakeSnap) Refresh() error {
	s.refreshes++
	return s.refreshErr
}

func (s *fakeSnap) BlendedValue(path string) (float64, bool) {
	v, ok := s.vals[path]
	return v, ok
}

func morphFixture(t *testing.T) (*fixture, *fakeSnap) {
	cfg := testCfg()
	cfg.MorphKnob = 3
	f := newFixture(t, cfg, func(s *params.Store) {
		morphable := testKnob("filter/cutoff", 0, 0, 1000)
		morphable.Flags |= params.FlagMorphable
		s.Add(morphable)

		plain := testKnob("fx/mix", 1, 0, 1000)
		s.Add(plain)

		msw := testSwitch("transport/play", 4, types.HapticToggle)
		msw.Flags |= params.FlagMorphable
		s.Add(msw)

		s.Add(testKnob(cfg.MorphValuePath, 3, 0, 1000))
		s.Add(&params.Param{Path: cfg.MorphModePath})
	})
	snap := &fakeSnap{vals: map[string]float64{}}
	f.e.snap = snap
	return f, snap
}

func (f *fixture) setMorph(value, mode float64) {
	mv, _ := f.store.Lookup(f.cfg.MorphValuePath)
	mv.Value = value
	mm, _ := f.store.Lookup(f.cfg.MorphModePath)
	mm.Value = mode
}

func TestMorphInactiveAtExtremes(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["filter/cutoff"] = 0.5

	for _, v := range []float64{0, 1} {
		f.setMorph(v, 1)
		f.poll()
	}
	if snap.refreshes != 0 {
		t.Fatalf("refreshes = %d, want none at the blend extremes", snap.refreshes)
	}
	p, _ := f.store.Lookup("filter/cutoff")
	if p.Value != 0 {
		t.Fatalf("morphable param driven: %v", p.Value)
	}
}

func TestMorphInactiveInDJMode(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["filter/cutoff"] = 0.5
	f.setMorph(0.5, 0) // DJ crossfade: controls stay live
	f.poll()
	if snap.refreshes != 0 {
		t.Fatal("snapshot refreshed in DJ mode")
	}
}

func TestMorphInactiveOnRefreshFailure(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["filter/cutoff"] = 0.5
	snap.refreshErr = errFake
	f.setMorph(0.5, 1)
	f.poll()
	p, _ := f.store.Lookup("filter/cutoff")
	if p.Value != 0 {
		t.Fatal("morphable param driven despite failed refresh")
	}
}

func TestMorphDrivesMorphableControls(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["filter/cutoff"] = 0.65
	snap.vals["transport/play"] = 1
	f.setMorph(0.5, 1)

	f.poll()

	p, _ := f.store.Lookup("filter/cutoff")
	if p.Value != 0.65 {
		t.Fatalf("blended value = %v", p.Value)
	}
	sw, _ := f.store.Lookup("transport/play")
	if sw.Value != 1 || f.e.switches[4].logical != 1 || !f.drv.ledOn(4) {
		t.Fatal("morphable switch not driven")
	}

	got := f.changes()
	if len(got) != 2 {
		t.Fatalf("changes = %+v", got)
	}
	for _, c := range got {
		if c.Display {
			t.Fatalf("morph drive %s flagged for display", c.Path)
		}
	}
}

func TestMorphDriveRepositionsKnob(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["filter/cutoff"] = 0.65
	f.setMorph(0.5, 1)

	f.poll()
	mc, ok := f.drv.lastMotor()
	if !ok || mc.knob != 0 || mc.target != 650 || mc.robust {
		t.Fatalf("motor = %+v ok=%v, want knob 0 -> 650", mc, ok)
	}

	// Steady blended value: no re-drive.
	n := f.drv.motorCount()
	f.poll()
	if f.drv.motorCount() != n {
		t.Fatal("steady blended value re-drove the motor")
	}

	// Every blended change moves the motor with it.
	snap.vals["filter/cutoff"] = 0.25
	f.poll()
	if mc, _ := f.drv.lastMotor(); mc.knob != 0 || mc.target != 250 {
		t.Fatalf("motor = %+v after blend change", mc)
	}
}

func TestMorphEndNudgeKeepsBlendResult(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["filter/cutoff"] = 0.65

	f.drv.knobs[0] = 110
	f.poll() // prime at the pre-morph position

	f.setMorph(0.5, 1)
	f.poll() // blended drive repositions the knob
	mc, _ := f.drv.lastMotor()
	f.drv.knobs[0] = mc.target + 10 // motor reached the target, then a nudge
	f.setMorph(1, 1)                // blend ends at the extreme
	f.changes()

	f.poll()
	c := f.expectOneChange("filter/cutoff", true)
	if c.Value != 0.66 {
		t.Fatalf("value = %v, want the nudged blend result", c.Value)
	}
}

func TestMorphEvalConcurrentWithMorphEdits(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["filter/cutoff"] = 0.65

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			f.e.handleParamChange(types.ParamChange{
				Path:  f.cfg.MorphValuePath,
				Value: float64(i%10) / 10,
			})
		}
	}()
	for i := 0; i < 500; i++ {
		f.e.pollOnce(f.now)
	}
	<-done
}

func TestMorphSkipsNonMorphable(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["fx/mix"] = 0.9
	f.setMorph(0.5, 1)
	f.poll()
	p, _ := f.store.Lookup("fx/mix")
	if p.Value != 0 {
		t.Fatalf("non-morphable param driven: %v", p.Value)
	}
}

func TestMorphSteadyValueEmitsNothing(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["filter/cutoff"] = 0.65
	f.setMorph(0.5, 1)

	f.poll()
	f.changes()
	f.poll() // same blended value: no re-drive
	f.expectNoChange()
}

func TestMorphPresetsFreshForcesOneRedrive(t *testing.T) {
	f, snap := morphFixture(t)
	p, _ := f.store.Lookup("filter/cutoff")
	p.Value = 0.65
	snap.vals["filter/cutoff"] = 0.65
	f.setMorph(0.5, 1)

	f.e.mu.Lock()
	f.e.presetsFresh = true
	f.e.mu.Unlock()

	f.poll()
	if f.e.presetsFresh {
		t.Fatal("presetsFresh not consumed")
	}
	got := f.changes()
	found := false
	for _, c := range got {
		if c.Path == "filter/cutoff" {
			found = true
		}
	}
	if !found {
		t.Fatalf("changes = %+v, want unconditional re-drive", got)
	}

	f.poll()
	f.expectNoChange()
}

func TestMorphKnobStaysLive(t *testing.T) {
	f, snap := morphFixture(t)
	snap.vals["filter/cutoff"] = 0.65
	f.setMorph(0.5, 1)

	// Turning the morph knob itself still goes through the normal filter
	// while morphing is active.
	f.drv.knobs[3] = 500
	f.poll() // prime
	f.changes()
	f.drv.knobs[3] = 520
	f.poll()

	got := f.changes()
	var sawMorphValue bool
	for _, c := range got {
		if c.Path == f.cfg.MorphValuePath && c.Display {
			sawMorphValue = true
		}
	}
	if !sawMorphValue {
		t.Fatalf("changes = %+v, want morph knob edit", got)
	}
}

func TestMorphSuspendedWhileMorphKnobOverlaid(t *testing.T) {
	cfg := testCfg()
	cfg.MorphKnob = 3
	f := newFixture(t, cfg, func(s *params.Store) {
		morphable := testKnob("filter/cutoff", 0, 0, 1000)
		morphable.Flags |= params.FlagMorphable
		s.Add(morphable)
		s.Add(testKnob(cfg.MorphValuePath, 3, 0, 1000))
		s.Add(&params.Param{Path: cfg.MorphModePath})

		alt := testKnob("alt/target", 3, 0, 1000)
		alt.StateTag = "shift"
		s.Add(alt)
	})
	snap := &fakeSnap{vals: map[string]float64{"filter/cutoff": 0.65}}
	f.e.snap = snap
	f.setMorph(0.5, 1)

	f.e.mu.Lock()
	f.e.pushStateLocked("shift")
	f.e.mu.Unlock()

	f.poll()
	p, _ := f.store.Lookup("filter/cutoff")
	if p.Value != 0 {
		t.Fatal("morph drove controls while the morph knob was overlaid")
	}
}
