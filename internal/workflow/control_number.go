package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Control numbers are per-day sequences of the form YYYYMMDD0001.  The
// sequence is made safe under concurrent submissions by the unique index
// on samples.control_number: the repository inserts with the next free
// number and retries on a duplicate-key error rather than trusting a
// read-then-write of the current maximum.

// ControlNumberPrefix returns the date prefix for control numbers issued
// on the given day, in UTC.
func ControlNumberPrefix(day time.Time) string {
	return day.UTC().Format("20060102")
}

// ControlNumber formats a control number from a day and a 1-based
// sequence counter.
func ControlNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", ControlNumberPrefix(day), seq)
}

// NextControlNumber returns the control number that follows the given one
// within the same day.  When current is empty, malformed or from another
// day, the sequence starts at 1.
func NextControlNumber(day time.Time, current string) string {
	prefix := ControlNumberPrefix(day)
	seq := 0
	if strings.HasPrefix(current, prefix) {
		if n, err := strconv.Atoi(current[len(prefix):]); err == nil {
			seq = n
		}
	}
	return ControlNumber(day, seq+1)
}
