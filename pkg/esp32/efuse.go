package esp32

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/efuse"
)

// ReadFuses takes a snapshot of eFuse BLOCK0 and BLOCK3.
func (c *Chip) ReadFuses() (efuse.Fuses, error) {
	logrus.Tracef("ReadFuses called")

	var f efuse.Fuses
	for i := range f.Block0 {
		v, err := c.Call(CmdEfuseWord, 0, uint32(i))
		if err != nil {
			return f, pkgerrors.Wrapf(err, "failed to read eFuse BLOCK0 word %d", i)
		}
		f.Block0[i] = v
	}
	for i := range f.Block3 {
		v, err := c.Call(CmdEfuseWord, 3, uint32(i))
		if err != nil {
			return f, pkgerrors.Wrapf(err, "failed to read eFuse BLOCK3 word %d", i)
		}
		f.Block3[i] = v
	}

	logrus.WithFields(logrus.Fields{
		"vref":     f.HasVref(),
		"twoPoint": f.HasTwoPoint(),
	}).Debug("eFuse snapshot taken")

	return f, nil
}
