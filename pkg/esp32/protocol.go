package esp32

import (
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/vbat/pkg/adc"
)

// The console speaks one request and one reply per line, and echoes each
// request before answering it:
//
//	> adc_raw 1 7
//	< OK 1342
//	> vref_gpio 13
//	< ERR ESP_ERR_INVALID_ARG

var espErrors = map[string]error{
	"ESP_ERR_INVALID_ARG":   adc.ErrInvalidArg,
	"ESP_ERR_INVALID_STATE": adc.ErrInvalidState,
	"ESP_ERR_TIMEOUT":       adc.ErrTimeout,
}

// FormatRequest renders a console request line, newline included.
func FormatRequest(cmd string, args ...uint32) string {
	var sb strings.Builder
	sb.WriteString(cmd)
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatUint(uint64(a), 10))
	}
	sb.WriteByte('\n')
	return sb.String()
}

// ParseReply decodes a console reply line.
func ParseReply(line string) (uint32, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, pkgerrors.Wrap(adc.ErrHardware, "empty reply")
	}

	switch fields[0] {
	case "OK":
		if len(fields) == 1 {
			return 0, nil
		}
		v, err := strconv.ParseUint(fields[1], 0, 32)
		if err != nil {
			return 0, pkgerrors.Wrapf(adc.ErrHardware, "malformed value in reply %q", line)
		}
		return uint32(v), nil
	case "ERR":
		name := "ESP_FAIL"
		if len(fields) > 1 {
			name = fields[1]
		}
		if err, ok := espErrors[name]; ok {
			return 0, pkgerrors.Wrap(err, name)
		}
		return 0, pkgerrors.Wrap(adc.ErrHardware, name)
	default:
		return 0, pkgerrors.Wrapf(adc.ErrHardware, "unexpected reply %q", line)
	}
}
