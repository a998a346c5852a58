package report

import (
	"strconv"
	"time"
)

// Millis formats d as milliseconds with two decimals ("12.00").
func Millis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 2, 64)
}
