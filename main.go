package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"panelcode-go/bus"
	"panelcode-go/params"
	"panelcode-go/services/config"
	"panelcode-go/services/surface"
	"panelcode-go/services/surface/platform"
	"panelcode-go/types"
)

const deviceID = "panel_mk2"

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(32)

	cfgConn := b.NewConnection("config")
	config.NewService(log.Named("config")).Start(
		context.WithValue(ctx, config.CtxDeviceKey, deviceID), cfgConn)

	cfg := waitConfig(ctx, b, log)

	store := params.NewStore()
	registerParams(store, cfg, log)

	drv := platform.NewDriver(cfg, log.Named("panel"))
	conn := b.NewConnection("surface")
	eng := surface.New(cfg, drv, store, conn, nil, log.Named("surface"))

	go monitor(ctx, b.NewConnection("monitor"), log.Named("monitor"))

	log.Info("starting surface engine", zap.String("device", deviceID))
	eng.Run(ctx)
}

// waitConfig blocks for the retained surface config, falling back to built-in
// defaults if the config service stays silent.
func waitConfig(ctx context.Context, b *bus.Bus, log *zap.Logger) types.SurfaceConfig {
	conn := b.NewConnection("config-wait")
	defer conn.Disconnect()
	sub := conn.Subscribe(bus.T("config", "surface"))

	select {
	case m := <-sub.Channel():
		if sc, ok := m.Payload.(types.SurfaceConfig); ok {
			return sc
		}
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
	}
	log.Warn("no surface config received, using defaults")
	return types.SurfaceConfig{}.WithDefaults()
}

// monitor logs outbound engine traffic: parameter changes and system
// function dispatches.
func monitor(ctx context.Context, conn *bus.Connection, log *zap.Logger) {
	defer conn.Disconnect()
	pc := conn.Subscribe(bus.T("param", "changed"))
	sf := conn.Subscribe(bus.T("system", "func"))
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-pc.Channel():
			if !ok {
				return
			}
			if c, ok := m.Payload.(types.ParamChange); ok {
				log.Info("param changed",
					zap.String("path", c.Path),
					zap.Float64("value", c.Value),
					zap.Bool("display", c.Display))
			}
		case m, ok := <-sf.Channel():
			if !ok {
				return
			}
			if f, ok := m.Payload.(types.SystemFunc); ok {
				log.Info("system func",
					zap.String("path", f.Path),
					zap.Int("position", f.Position))
			}
		}
	}
}

// registerParams loads the development parameter map: a continuous knob bank
// with one shift-overlay remap, the morph pair, a handful of switch haptic
// variants, and the multi-function group.
func registerParams(store *params.Store, cfg types.SurfaceConfig, log *zap.Logger) {
	add := func(p *params.Param) {
		if err := store.Add(p); err != nil {
			log.Error("param registration failed", zap.String("path", p.Path), zap.Error(err))
		}
	}

	knob := func(i int, path string, morphable bool) *params.Param {
		f := params.FlagPhysicalControl
		if morphable {
			f |= params.FlagMorphable
		}
		return &params.Param{
			Path:    path,
			Flags:   f,
			Control: types.ControlRef{Type: types.ControlKnob, Index: i},
			RawMin:  0,
			RawMax:  0xFFFF,
		}
	}

	add(knob(0, "osc1/pitch", true))
	add(knob(1, "osc1/level", true))
	add(knob(2, "filter/cutoff", true))
	add(knob(3, "filter/res", true))
	add(knob(4, "env/attack", true))
	add(knob(5, "env/release", true))
	add(knob(6, "fx/mix", false))

	// Linked levels, one hop in each direction.
	if p, ok := store.Lookup("osc1/level"); ok {
		p.Mapped = []string{"osc2/level"}
	}
	add(&params.Param{Path: "osc2/level", Mapped: []string{"osc1/level"}})

	// Shift overlay: knob 2 becomes envelope amount while "shift" is pushed.
	sh := knob(2, "filter/env-amount", false)
	sh.StateTag = "shift"
	add(sh)

	// Morph pair.
	if cfg.MorphKnob >= 0 {
		add(knob(cfg.MorphKnob, cfg.MorphValuePath, false))
	} else {
		add(&params.Param{Path: cfg.MorphValuePath})
	}
	add(&params.Param{Path: cfg.MorphModePath})

	sw := func(i int, path string, mode types.HapticMode) *params.Param {
		return &params.Param{
			Path:    path,
			Flags:   params.FlagPhysicalControl,
			Control: types.ControlRef{Type: types.ControlSwitch, Index: i},
			Haptic:  mode,
		}
	}

	add(sw(0, "transport/play", types.HapticToggle))
	add(sw(1, "transport/stop", types.HapticPush))
	add(sw(2, "transport/rec", types.HapticToggleLEDPulse))
	add(sw(3, "ui/shift-key", types.HapticPushNoLED))
	add(sw(4, "seq/hold", types.HapticToggleHold))
	add(sw(5, "fx/freeze", types.HapticToggleRelease))
	add(sw(6, "osc1/wave", types.HapticLatchPush))

	// Stop dispatches a system function.
	if p, ok := store.Lookup("transport/stop"); ok {
		p.Mapped = []string{"system/stop-all"}
	}
	add(&params.Param{Path: "system/stop-all", Kind: params.KindSystemFunction})

	// Shift key drives the overlay.
	if p, ok := store.Lookup("ui/shift-key"); ok {
		p.Mapped = []string{"ui/shift"}
	}
	add(&params.Param{Path: "ui/shift", Kind: params.KindUIStateChange, StateTag: "shift"})

	// Multi-function group: one toggle per step.
	for i := cfg.FirstMultiFnSwitch; i < cfg.NumSwitches; i++ {
		s := sw(i, "seq/step/"+strconv.Itoa(i-cfg.FirstMultiFnSwitch), types.HapticToggle)
		s.Flags |= params.FlagMultiFn
		add(s)
	}
}
