// Package format renders tester statistics for humans.
package format

import (
	"fmt"
	"strconv"
	"time"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB"}

// Bytes renders n in 1024-based units with at most two decimals,
// e.g. "1.5 KB". Values above the GB range stay in GB.
func Bytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v := float64(n)
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return trimFloat(v) + " " + byteUnits[unit]
}

// Latency renders sub-second latencies in milliseconds and longer ones in
// seconds with two decimals.
func Latency(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)
	if ms < 1000 {
		return strconv.FormatFloat(ms, 'f', -1, 64) + "ms"
	}
	return fmt.Sprintf("%.2fs", ms/1000)
}

// Duration renders d truncated to whole seconds as "1h 2m 3s", "2m 3s" or
// "3s".
func Duration(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes%60, seconds%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// QoSDescription names an MQTT delivery guarantee.
func QoSDescription(qos byte) string {
	switch qos {
	case 0:
		return "At most once"
	case 1:
		return "At least once"
	case 2:
		return "Exactly once"
	default:
		return "Unknown QoS " + strconv.Itoa(int(qos))
	}
}

// trimFloat rounds to two decimals and drops trailing zeros.
func trimFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	f, _ := strconv.ParseFloat(s, 64)
	return strconv.FormatFloat(f, 'f', -1, 64)
}
