package adc

import "errors"

var (
	// ErrInvalidArg is returned for an unknown unit, channel, width,
	// attenuation, or a pad that cannot serve the requested function.
	ErrInvalidArg = errors.New("invalid argument")

	// ErrInvalidState is returned when the peripheral is already claimed
	// or has not been configured.
	ErrInvalidState = errors.New("invalid state")

	// ErrTimeout is returned when ADC2 is held by another user, e.g. the
	// radios or the reference router.
	ErrTimeout = errors.New("adc busy")

	// ErrHardware is returned when a conversion fails or yields a value
	// outside the configured width.
	ErrHardware = errors.New("adc hardware fault")
)
