// services/surface/platform/factories_rp2xxx.go
//go:build rp2040 || rp2350

package platform

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"go.uber.org/zap"

	"panelcode-go/drivers/panel"
	"panelcode-go/services/surface"
	"panelcode-go/types"
)

// NewDriver wires the real panel board on the RP2 family: registers over
// i2c0 at 400 kHz, motor commands over UART0 to the motor controller.
func NewDriver(cfg types.SurfaceConfig, log *zap.Logger) surface.Driver {
	b := machine.I2C0
	_ = b.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})

	return panel.New(b, panel.Config{
		Knobs:    cfg.NumKnobs,
		Switches: cfg.NumSwitches,
		Motors:   u,
	}, log)
}
