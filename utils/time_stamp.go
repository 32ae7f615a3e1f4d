package utils

import (
	"fmt"
	"time"
)

// ClockLabel is the HH:MM:SS label the hub attaches to samples that
// arrive without a timestamp.
func ClockLabel(t time.Time) string {
	return t.Format("15:04:05")
}

// ReportName returns a unique file name for a downloaded report:
//
//	<prefix>_YYYYMMDD_HHMMSS.<ext>
func ReportName(prefix string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format("20060102_150405"), ext)
}
