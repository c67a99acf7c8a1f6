package config

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"panelcode-go/bus"
	"panelcode-go/types"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key holding the device ID
)

// EmbeddedConfigLookup resolves the raw surface config for a device ID.
// Overridable for tests.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Service publishes the device's surface configuration as a retained message
// on config/surface. Consumers subscribing later still receive it.
type Service struct {
	Name string
	log  *zap.Logger
}

func NewService(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Name: serviceName, log: log}
}

func (s *Service) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}

	var sc types.SurfaceConfig
	if err := json.Unmarshal(raw, &sc); err != nil {
		return err
	}

	conn.Publish(&bus.Message{
		Topic:    bus.T(configPrefix, "surface"),
		Payload:  sc.WithDefaults(),
		Retained: true,
	})
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			s.log.Error("config publish failed", zap.Error(err))
		}
	}()
}
