package esp32

// Connection carries console commands to an ESP32 and returns the
// numeric result of each.
type Connection interface {
	Open() error
	Close() error
	// Call runs cmd with args on the chip. Chip-side failures are
	// returned as one of the adc package errors.
	Call(cmd string, args ...uint32) (uint32, error)
}

// Console commands understood by the board.
const (
	CmdADCWidth  = "adc_width"  // unit bits
	CmdADCAtten  = "adc_atten"  // unit channel atten
	CmdADCRaw    = "adc_raw"    // unit channel -> raw
	CmdVrefGPIO  = "vref_gpio"  // gpio
	CmdEfuseWord = "efuse_word" // block word -> value
)
