package events

import "encoding/json"

// Event name constants
const (
	BatteryVoltage = "battery.voltage"
	SampleError    = "sample.error"
	VrefRouted     = "vref.routed"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// BatteryVoltageEvent is the typed payload for battery.voltage.
type BatteryVoltageEvent struct {
	Voltage       float64 `json:"voltage"`
	PinMillivolts uint32  `json:"pinMillivolts"`
	Raw           int     `json:"raw"`
	Scheme        string  `json:"scheme"`
	InRange       bool    `json:"inRange"`
	Ts            int64   `json:"ts"`
}

// SampleErrorEvent is the typed payload for sample.error.
type SampleErrorEvent struct {
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// VrefRoutedEvent is the typed payload for vref.routed. Radios must stay
// off from now on.
type VrefRoutedEvent struct {
	GPIO int   `json:"gpio"`
	Ts   int64 `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.BatteryVoltageEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Voltage)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
