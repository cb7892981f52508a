package stream

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// unitSuffixes are the units ffmpeg accepts after plain seconds, longest
// match first.
var unitSuffixes = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"us", time.Microsecond},
	{"s", time.Second},
}

// ParseTimestamp parses an ffmpeg style time: plain seconds with an optional
// unit ("90", "1.5", "5s", "250ms", "100us") or [[HH:]MM:]SS[.fraction]
// ("00:01:30", "1:30.250").
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("stream: empty timestamp")
	}

	if !strings.Contains(s, ":") {
		for _, u := range unitSuffixes {
			if strings.HasSuffix(s, u.suffix) {
				return parseSeconds(s, strings.TrimSuffix(s, u.suffix), u.unit)
			}
		}
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("stream: invalid timestamp %q", s)
	}

	var total time.Duration
	for i, part := range parts {
		last := i == len(parts)-1

		if last {
			secs, err := strconv.ParseFloat(part, 64)
			if err != nil || !(secs >= 0) || math.IsInf(secs, 0) || (len(parts) > 1 && secs >= 60) {
				return 0, fmt.Errorf("stream: invalid seconds in timestamp %q", s)
			}
			total += time.Duration(secs * float64(time.Second))
			break
		}

		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || (i > 0 && n >= 60) {
			return 0, fmt.Errorf("stream: invalid timestamp %q", s)
		}

		if len(parts)-i == 3 {
			total += time.Duration(n) * time.Hour
		} else {
			total += time.Duration(n) * time.Minute
		}
	}

	return total, nil
}

func parseSeconds(s, num string, unit time.Duration) (time.Duration, error) {
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || !(n >= 0) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("stream: invalid timestamp %q", s)
	}

	return time.Duration(n * float64(unit)), nil
}
