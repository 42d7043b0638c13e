package esp32

import (
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/adc"
)

var _ adc.Driver = &Chip{}

// ConfigWidth sets the capture width of a unit.
func (c *Chip) ConfigWidth(u adc.Unit, w adc.Width) error {
	logrus.Tracef("ConfigWidth(%s, %s) called", u, w)

	_, err := c.Call(CmdADCWidth, uint32(u), uint32(w.Bits()))
	return err
}

// ConfigChannelAtten sets the attenuation of a channel.
func (c *Chip) ConfigChannelAtten(u adc.Unit, ch adc.Channel, a adc.Atten) error {
	logrus.Tracef("ConfigChannelAtten(%s, %d, %s) called", u, int(ch), a)

	_, err := c.Call(CmdADCAtten, uint32(u), uint32(ch), uint32(a))
	return err
}

// GetRaw takes a single conversion.
func (c *Chip) GetRaw(u adc.Unit, ch adc.Channel) (int, error) {
	logrus.Tracef("GetRaw(%s, %d) called", u, int(ch))

	v, err := c.Call(CmdADCRaw, uint32(u), uint32(ch))
	if err != nil {
		return 0, err
	}

	logrus.Tracef("GetRaw returned %d", v)
	return int(v), nil
}

// VrefToGPIO routes the ADC2 reference to a pad.
func (c *Chip) VrefToGPIO(gpio int) error {
	logrus.Tracef("VrefToGPIO(%d) called", gpio)

	if gpio < 0 {
		return adc.ErrInvalidArg
	}
	_, err := c.Call(CmdVrefGPIO, uint32(gpio))
	return err
}
