package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/adc"
	"github.com/charlie0129/vbat/pkg/adccal"
	"github.com/charlie0129/vbat/pkg/config"
	"github.com/charlie0129/vbat/pkg/events"
	"github.com/charlie0129/vbat/pkg/types"
	"github.com/charlie0129/vbat/pkg/version"
)

// abort replies with the error message as a JSON string.
func abort(c *gin.Context, code int, err error) {
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}

// statusFor maps driver errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, adc.ErrInvalidArg):
		return http.StatusBadRequest
	case errors.Is(err, adc.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, adc.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func getVoltage(c *gin.Context) {
	reading, err := meter.Read()
	if err != nil {
		logrus.Errorf("getVoltage failed: %v", err)
		abort(c, statusFor(err), err)
		return
	}

	c.IndentedJSON(http.StatusOK, reading)
}

func getReadings(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, recorder.GetRecords())
}

func getCalibration(c *gin.Context) {
	d := meter.LogCharacterisations(logrus.StandardLogger())
	c.IndentedJSON(http.StatusOK, d)
}

func setVrefGPIO(c *gin.Context) {
	var gpio int
	if err := c.BindJSON(&gpio); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := meter.RouteVrefToGPIO(gpio); err != nil {
		logrus.Errorf("RouteVrefToGPIO failed: %v", err)
		abort(c, statusFor(err), err)
		return
	}

	sseHub.Publish(events.VrefRouted, events.VrefRoutedEvent{
		GPIO: gpio,
		Ts:   time.Now().Unix(),
	})

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf(
		"ADC2 reference routed to GPIO%d. Measure it against GND and store the value with `vbat reference-voltage <mV>`. Keep Wi-Fi and Bluetooth off until the board is reset.",
		gpio))
}

func setReferenceVoltage(c *gin.Context) {
	var mv int
	if err := c.BindJSON(&mv); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if mv < config.MinReferenceVoltage || mv > config.MaxReferenceVoltage {
		err := fmt.Errorf("reference voltage must be between %d and %d mV, got %d",
			config.MinReferenceVoltage, config.MaxReferenceVoltage, mv)
		abort(c, http.StatusBadRequest, err)
		return
	}

	conf.SetReferenceVoltage(mv)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if err := meter.SetReferenceVoltage(mv); err != nil {
		abort(c, statusFor(err), err)
		return
	}

	logrus.Infof("set reference voltage to %d mV", mv)

	msg := fmt.Sprintf("set reference voltage to %d mV", mv)
	if s := meter.Characteristics().Scheme; s != adccal.SchemeDefaultVref {
		msg += fmt.Sprintf(". This chip is calibrated with %s, which takes precedence; the value is kept for reference only.", s.Description())
	}

	c.IndentedJSON(http.StatusCreated, msg)
}

func setSamples(c *gin.Context) {
	var n int
	if err := c.BindJSON(&n); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if n < 1 || n > config.MaxSamples {
		err := fmt.Errorf("samples must be between 1 and %d, got %d", config.MaxSamples, n)
		abort(c, http.StatusBadRequest, err)
		return
	}

	conf.SetSamples(n)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if err := meter.SetSamples(n); err != nil {
		abort(c, statusFor(err), err)
		return
	}

	logrus.Infof("set samples per reading to %d", n)

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("each reading now averages %d samples", n))
}

func getRadiosAllowed(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, meter.RadiosAllowed())
}

func getStatus(c *gin.Context) {
	st := types.Status{
		Board:           meter.Board().Name,
		Reading:         recorder.GetLastRecord(),
		Characteristics: meter.Characteristics(),
		VrefGPIO:        meter.VrefGPIO(),
		RadiosAllowed:   meter.RadiosAllowed(),
		Samples:         conf.Samples(),
		SampleSchedule:  conf.SampleSchedule(),
		Recorded:        len(recorder.GetRecords()),
	}
	if err := getLastSampleErr(); err != nil {
		st.LastError = err.Error()
	}
	if sampler != nil {
		if next, running := sampler.Status(); running && !next.IsZero() {
			st.NextSample = next.Format(time.RFC3339)
		}
	}

	c.IndentedJSON(http.StatusOK, st)
}

func getEvents(c *gin.Context) {
	ch := sseHub.Subscribe()
	defer sseHub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
