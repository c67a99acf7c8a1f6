// services/surface/platform/factories_host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"go.uber.org/zap"

	"panelcode-go/services/surface"
	"panelcode-go/types"
)

// NewDriver returns the simulated panel for host builds.
func NewDriver(cfg types.SurfaceConfig, log *zap.Logger) surface.Driver {
	return NewSim(cfg.NumKnobs, cfg.NumSwitches, log)
}
