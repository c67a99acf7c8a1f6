// Package panel provides the register-level I²C driver for the control
// surface board: switch banks, motorized knob encoders, and the LED shift
// register behind a shadow/commit scheme.
//
// Register protocol:
// • One identity register; Open probes it before anything else.
// • Switch states are packed bitmask bytes, one bit per switch.
// • Knob positions are read in two phases: writing the latch register
//   freezes all encoder counts, the position block then returns them
//   big-endian, two bytes per knob.
// • LED writes go to a shadow block and take effect on commit.
// • Motor targets are 4-byte commands; a busy bitmask exposes travel state.
package panel

import (
	"sync"

	"go.uber.org/zap"
	"tinygo.org/x/drivers"

	"panelcode-go/errcode"
	"panelcode-go/types"
)

const (
	AddressDefault uint16 = 0x42

	deviceID byte = 0x5C

	regID         byte = 0x00
	regReset      byte = 0x01
	regSwitchBase byte = 0x10
	regKnobLatch  byte = 0x20
	regKnobActive byte = 0x22
	regKnobBase   byte = 0x24
	regLEDBase    byte = 0x40
	regLEDCommit  byte = 0x4F
	regMotor      byte = 0x50
	regKnobHaptic byte = 0x54
)

// MotorLink optionally routes motor positioning commands over a separate
// transport (e.g. a UART to the motor controller board) instead of the I²C
// motor register.
type MotorLink interface {
	Write(p []byte) (int, error)
}

type Config struct {
	Address  uint16
	Knobs    int
	Switches int
	// Motors overrides the I²C motor register with a dedicated link.
	Motors MotorLink
}

type Device struct {
	i2c    drivers.I2C
	addr   uint16
	nk, ns int
	motors MotorLink
	log    *zap.Logger

	mu   sync.Mutex
	open bool
	leds []byte // LED shadow, flushed on CommitLEDs

	w [5]byte
}

func New(i2c drivers.I2C, cfg Config, log *zap.Logger) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Device{
		i2c:    i2c,
		addr:   addr,
		nk:     cfg.Knobs,
		ns:     cfg.Switches,
		motors: cfg.Motors,
		log:    log,
		leds:   make([]byte, (cfg.Switches+7)/8),
	}
}

// ---- lifecycle ----

func (d *Device) Open() error {
	var r [1]byte
	if err := d.readReg(regID, r[:]); err != nil {
		return err
	}
	if r[0] != deviceID {
		return &errcode.E{C: errcode.DriverIO, Op: "open", Msg: "unexpected panel id"}
	}
	d.mu.Lock()
	d.open = true
	for i := range d.leds {
		d.leds[i] = 0
	}
	d.mu.Unlock()
	return d.CommitLEDs()
}

func (d *Device) Close() error {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}

// Reinit resets the board and reopens it with fresh register state.
func (d *Device) Reinit() error {
	if err := d.writeReg(regReset, 1); err != nil {
		return err
	}
	return d.Open()
}

// Lock/Unlock bracket one bus transaction.
func (d *Device) Lock()   { d.mu.Lock() }
func (d *Device) Unlock() { d.mu.Unlock() }

// ---- inputs ----

func (d *Device) ReadSwitchStates() ([]uint8, error) {
	if !d.open {
		return nil, errcode.DriverClosed
	}
	buf := make([]byte, (d.ns+7)/8)
	if err := d.readReg(regSwitchBase, buf); err != nil {
		return nil, err
	}
	out := make([]uint8, d.ns)
	for i := 0; i < d.ns; i++ {
		out[i] = (buf[i/8] >> (uint(i) % 8)) & 1
	}
	return out, nil
}

func (d *Device) RequestKnobStates() error {
	if !d.open {
		return errcode.DriverClosed
	}
	return d.writeReg(regKnobLatch, 1)
}

func (d *Device) ReadKnobStates() ([]uint16, error) {
	if !d.open {
		return nil, errcode.DriverClosed
	}
	buf := make([]byte, d.nk*2)
	if err := d.readReg(regKnobBase, buf); err != nil {
		return nil, err
	}
	out := make([]uint16, d.nk)
	for i := 0; i < d.nk; i++ {
		out[i] = uint16(buf[2*i])<<8 | uint16(buf[2*i+1])
	}
	return out, nil
}

func (d *Device) KnobIsActive(i int) (bool, error) {
	if !d.open {
		return false, errcode.DriverClosed
	}
	if i < 0 || i >= d.nk {
		return false, errcode.InvalidParams
	}
	var r [1]byte
	if err := d.readReg(regKnobActive+byte(i/8), r[:]); err != nil {
		return false, err
	}
	return (r[0]>>(uint(i)%8))&1 != 0, nil
}

// ---- outputs ----

func (d *Device) SetSwitchLED(i int, on bool) error {
	if !d.open {
		return errcode.DriverClosed
	}
	if i < 0 || i >= d.ns {
		return errcode.InvalidParams
	}
	bit := byte(1) << (uint(i) % 8)
	if on {
		d.leds[i/8] |= bit
	} else {
		d.leds[i/8] &^= bit
	}
	return nil
}

func (d *Device) SetAllSwitchLEDs(on bool) error {
	if !d.open {
		return errcode.DriverClosed
	}
	var v byte
	if on {
		v = 0xFF
	}
	for i := range d.leds {
		d.leds[i] = v
	}
	return nil
}

func (d *Device) CommitLEDs() error {
	if !d.open {
		return errcode.DriverClosed
	}
	if err := d.writeReg(regLEDBase, d.leds...); err != nil {
		return err
	}
	return d.writeReg(regLEDCommit, 1)
}

func (d *Device) SetKnobPosition(i int, target uint16, robust bool) error {
	if !d.open {
		return errcode.DriverClosed
	}
	if i < 0 || i >= d.nk {
		return errcode.InvalidParams
	}
	var flags byte
	if robust {
		flags = 1
	}
	cmd := []byte{byte(i), byte(target >> 8), byte(target), flags}
	if d.motors != nil {
		_, err := d.motors.Write(cmd)
		return err
	}
	return d.writeReg(regMotor, cmd...)
}

func (d *Device) SetKnobHaptic(i int, h types.KnobHaptic) error {
	if !d.open {
		return errcode.DriverClosed
	}
	if i < 0 || i >= d.nk {
		return errcode.InvalidParams
	}
	steps := h.Steps
	if steps > 255 {
		steps = 255
	}
	return d.writeReg(regKnobHaptic, byte(i), byte(h.Motion), byte(steps))
}

// ---- register access ----

func (d *Device) readReg(reg byte, dst []byte) error {
	d.w[0] = reg
	return d.i2c.Tx(d.addr, d.w[:1], dst)
}

func (d *Device) writeReg(reg byte, data ...byte) error {
	if len(data) < len(d.w) {
		d.w[0] = reg
		n := copy(d.w[1:], data)
		return d.i2c.Tx(d.addr, d.w[:1+n], nil)
	}
	buf := make([]byte, 1+len(data))
	buf[0] = reg
	copy(buf[1:], data)
	return d.i2c.Tx(d.addr, buf, nil)
}
