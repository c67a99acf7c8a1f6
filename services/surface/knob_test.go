package surface

import (
	"testing"

	"panelcode-go/params"
)

func knobFixture(t *testing.T) *fixture {
	return newFixture(t, testCfg(), func(s *params.Store) {
		s.Add(testKnob("filter/cutoff", 0, 0, 1000))
	})
}

func (f *fixture) pollKnob(i int, raw uint16) {
	f.drv.knobs[i] = raw
	f.poll()
}

func TestKnobBelowThresholdHolds(t *testing.T) {
	f := knobFixture(t)
	for _, raw := range []uint16{100, 101, 102, 103} {
		f.pollKnob(0, raw)
	}
	f.expectNoChange()
	p, _ := f.store.Lookup("filter/cutoff")
	if p.Value != 0 {
		t.Fatalf("value = %v, want untouched", p.Value)
	}
}

func TestKnobCrossingEmitsOnceAtCrossingSample(t *testing.T) {
	f := knobFixture(t)
	// Threshold 4: deltas accumulate 0 (prime), 1, 2, 5. Only the last
	// sample crosses, and the commit reads the crossing position.
	for _, raw := range []uint16{100, 101, 102, 105} {
		f.pollKnob(0, raw)
	}
	c := f.expectOneChange("filter/cutoff", true)
	if c.Value != 0.105 {
		t.Fatalf("value = %v, want 0.105", c.Value)
	}
	if f.e.knobs[0].delta != 0 {
		t.Fatalf("delta = %d, want reset", f.e.knobs[0].delta)
	}
}

func TestKnobEqualToThresholdDoesNotEmit(t *testing.T) {
	f := knobFixture(t)
	f.pollKnob(0, 100)
	f.pollKnob(0, 104) // delta exactly 4
	f.expectNoChange()
	f.pollKnob(0, 105) // delta 5 crosses
	f.expectOneChange("filter/cutoff", true)
}

func TestKnobOppositeTurnsCancel(t *testing.T) {
	f := knobFixture(t)
	f.pollKnob(0, 100)
	f.pollKnob(0, 103)
	f.pollKnob(0, 100)
	f.pollKnob(0, 103)
	f.expectNoChange()
}

func TestKnobSmallThresholdAfterCommit(t *testing.T) {
	f := knobFixture(t)
	f.pollKnob(0, 100)
	f.pollKnob(0, 110) // crossing arms the small threshold
	f.changes()

	if f.e.knobs[0].big {
		t.Fatal("large threshold still armed after crossing")
	}
	// Small threshold 1: a 2-count move now commits immediately.
	f.pollKnob(0, 112)
	c := f.expectOneChange("filter/cutoff", true)
	if c.Value != 0.112 {
		t.Fatalf("value = %v", c.Value)
	}
}

func TestKnobStationaryRearmsLargeThreshold(t *testing.T) {
	f := knobFixture(t)
	f.pollKnob(0, 100)
	f.pollKnob(0, 110)
	f.changes()

	// SmallStationaryPolls = 3 idle cycles flip back to the large threshold.
	for j := 0; j < 3; j++ {
		f.pollKnob(0, 110)
	}
	if !f.e.knobs[0].big {
		t.Fatal("large threshold not re-armed after stationary stretch")
	}
	// A 2-count move no longer commits.
	f.pollKnob(0, 112)
	f.expectNoChange()
}

func TestKnobSettleSkipAfterCommandedMove(t *testing.T) {
	f := knobFixture(t)
	f.pollKnob(0, 100) // prime

	// Motor starts travelling: filtering suspends.
	f.drv.actives[0] = true
	f.pollKnob(0, 300)
	f.pollKnob(0, 480)
	f.drv.actives[0] = false

	// SettlePolls = 3: overshoot wobble right after arrival is swallowed.
	f.pollKnob(0, 505)
	f.pollKnob(0, 498)
	f.pollKnob(0, 500)
	f.expectNoChange()
	if f.e.knobs[0].delta != 0 || !f.e.knobs[0].big {
		t.Fatalf("filter state after settle = %+v", f.e.knobs[0])
	}

	// The next genuine turn works from the settled position.
	f.pollKnob(0, 510)
	c := f.expectOneChange("filter/cutoff", true)
	if c.Value != 0.51 {
		t.Fatalf("value = %v", c.Value)
	}
}

func TestKnobDriftTimeoutResetsAccumulator(t *testing.T) {
	f := knobFixture(t)
	f.pollKnob(0, 100)

	// Creep upward 3 counts, then sit: delta stays past the small
	// threshold without ever crossing the large one.
	f.pollKnob(0, 103)
	for j := 0; j < f.cfg.DriftTimeoutPolls; j++ {
		f.pollKnob(0, 103)
	}
	f.expectNoChange()
	if f.e.knobs[0].delta != 0 {
		t.Fatalf("delta = %d, want drift-reset", f.e.knobs[0].delta)
	}
}

func TestKnobPerParamThresholdOverride(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		k := testKnob("fx/mix", 1, 0, 1000)
		k.ThresholdBig = 10
		s.Add(k)
	})
	f.pollKnob(1, 100)
	f.pollKnob(1, 108) // above the default 4, below the override 10
	f.expectNoChange()
	f.pollKnob(1, 111)
	f.expectOneChange("fx/mix", true)
}

func TestSteppedKnobSnapsToPositions(t *testing.T) {
	f := newFixture(t, testCfg(), func(s *params.Store) {
		k := testKnob("osc1/wave", 2, 0, 1000)
		k.Steps = 5
		s.Add(k)
	})
	f.pollKnob(2, 0)
	f.pollKnob(2, 700)
	c := f.expectOneChange("osc1/wave", true)
	if c.Value != 0.75 { // position 3 of 0..4
		t.Fatalf("value = %v, want snapped 0.75", c.Value)
	}
	p, _ := f.store.Lookup("osc1/wave")
	if p.Position() != 3 {
		t.Fatalf("position = %d", p.Position())
	}
}

func TestUnboundKnobIsIgnored(t *testing.T) {
	f := newFixture(t, testCfg(), nil)
	f.pollKnob(3, 100)
	f.pollKnob(3, 900)
	f.expectNoChange()
}
