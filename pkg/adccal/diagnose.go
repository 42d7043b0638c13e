package adccal

import (
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/adc"
	"github.com/charlie0129/vbat/pkg/efuse"
)

// Diagnosis describes what the eFuses hold and which scheme a reading
// will use.
type Diagnosis struct {
	TwoPointSupported  bool              `json:"twoPointSupported"`
	EfuseVrefSupported bool              `json:"efuseVrefSupported"`
	Words              map[string]uint32 `json:"words"`
	Characteristics    Characteristics   `json:"characteristics"`
}

// Diagnose runs the same selection as Select and records the inputs it
// looked at. It has no side effects.
func Diagnose(f efuse.Fuses, u adc.Unit, atten adc.Atten, width adc.Width, defaultVref uint32) Diagnosis {
	return Diagnosis{
		TwoPointSupported:  CheckEfuse(f, SchemeTwoPoint) == nil,
		EfuseVrefSupported: CheckEfuse(f, SchemeEfuseVref) == nil,
		Words:              f.Words(),
		Characteristics:    Select(f, u, atten, width, defaultVref),
	}
}

// Log writes the diagnosis to logger, one line per finding.
func (d Diagnosis) Log(logger logrus.FieldLogger) {
	fields := logrus.Fields{}
	for k, v := range d.Words {
		fields[k] = v
	}
	logger.WithFields(fields).Debug("eFuse words inspected")

	logger.Infof("eFuse Two Point: %s", supportedText(d.TwoPointSupported))
	logger.Infof("eFuse Vref: %s", supportedText(d.EfuseVrefSupported))

	c := d.Characteristics
	entry := logger.WithFields(logrus.Fields{
		"unit":   c.Unit.String(),
		"atten":  c.Atten.String(),
		"width":  c.Width.String(),
		"coeffA": c.CoeffA,
		"coeffB": c.CoeffB,
	})
	switch c.Scheme {
	case SchemeTwoPoint:
		entry.Infof("characterized using %s", c.Scheme.Description())
	default:
		entry.Infof("characterized using %s (%d mV)", c.Scheme.Description(), c.Vref)
	}
}

func supportedText(ok bool) string {
	if ok {
		return "supported"
	}
	return "NOT supported"
}
