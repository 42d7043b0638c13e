package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/vbat/pkg/adccal"
	"github.com/charlie0129/vbat/pkg/config"
	"github.com/charlie0129/vbat/pkg/types"
)

// GetVoltage takes a fresh reading.
func (c *Client) GetVoltage() (*types.Reading, error) {
	ret, err := c.Get("/voltage")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get battery voltage")
	}

	var r types.Reading
	if err := json.Unmarshal([]byte(ret), &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal reading")
	}
	return &r, nil
}

// GetReadings returns the readings recorded by the sampling loop, oldest
// first.
func (c *Client) GetReadings() ([]types.Reading, error) {
	ret, err := c.Get("/readings")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get recorded readings")
	}

	var rs []types.Reading
	if err := json.Unmarshal([]byte(ret), &rs); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal readings")
	}
	return rs, nil
}

// GetCalibration returns the calibration diagnostic. The daemon also logs
// it.
func (c *Client) GetCalibration() (*adccal.Diagnosis, error) {
	ret, err := c.Get("/calibration")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get calibration")
	}

	var d adccal.Diagnosis
	if err := json.Unmarshal([]byte(ret), &d); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal calibration")
	}
	return &d, nil
}

func (c *Client) RouteVref(gpio int) (string, error) {
	return c.Put("/vref-gpio", strconv.Itoa(gpio))
}

func (c *Client) SetReferenceVoltage(mv int) (string, error) {
	return c.Put("/reference-voltage", strconv.Itoa(mv))
}

func (c *Client) SetSamples(n int) (string, error) {
	return c.Put("/samples", strconv.Itoa(n))
}

func (c *Client) GetRadiosAllowed() (bool, error) {
	ret, err := c.Get("/radios-allowed")
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to get radio status")
	}
	return parseBoolResponse(ret)
}

func (c *Client) GetStatus() (*types.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}

	var s types.Status
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal status")
	}
	return &s, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}

func parseBoolResponse(resp string) (bool, error) {
	switch resp {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, pkgerrors.Errorf("unexpected response: %s", resp)
	}
}
