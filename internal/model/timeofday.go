package model

import (
	"errors"
	"strconv"
	"strings"
)

// ErrBadTime is returned for time-of-day strings that are not "HH:MM" or "HH:MM:SS".
var ErrBadTime = errors.New("model: unparsable time of day")

// ParseTimeOfDay converts "HH:MM" or "HH:MM:SS" into minutes since midnight.
// Seconds are validated but do not contribute to the result.
func ParseTimeOfDay(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, ErrBadTime
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, ErrBadTime
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, ErrBadTime
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, ErrBadTime
		}
	}
	return h*60 + m, nil
}

// FormatTimeOfDay renders minutes since midnight as zero-padded "HH:MM".
func FormatTimeOfDay(minutes int) string {
	h, m := minutes/60, minutes%60
	buf := [5]byte{byte('0' + h/10), byte('0' + h%10), ':', byte('0' + m/10), byte('0' + m%10)}
	return string(buf[:])
}
