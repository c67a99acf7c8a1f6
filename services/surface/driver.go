package surface

import "panelcode-go/types"

// Driver is the bus-level contract to the physical panel hardware.
//
// Lock/Unlock bracket one bus transaction; implementations must keep every
// call bounded and non-blocking beyond the bus transfer itself. All methods
// may be called concurrently with LED pulse timers; implementations guard
// their own transport state.
type Driver interface {
	Open() error
	Close() error
	// Reinit reopens the hardware from scratch (fresh register state).
	Reinit() error

	Lock()
	Unlock()

	// ReadSwitchStates returns the raw 0/1 state per physical switch.
	ReadSwitchStates() ([]uint8, error)

	// Knob positions are read in two phases: a sample request latches all
	// encoder counts on the board, the read returns them.
	RequestKnobStates() error
	ReadKnobStates() ([]uint16, error)

	SetSwitchLED(i int, on bool) error
	SetAllSwitchLEDs(on bool) error
	// CommitLEDs flushes the LED shadow state to the hardware.
	CommitLEDs() error

	// SetKnobPosition commands the motor to target; robust requests the
	// slower, overshoot-free positioning profile.
	SetKnobPosition(i int, target uint16, robust bool) error
	SetKnobHaptic(i int, h types.KnobHaptic) error

	// KnobIsActive reports whether the motor is still travelling toward a
	// commanded target.
	KnobIsActive(i int) (bool, error)
}
