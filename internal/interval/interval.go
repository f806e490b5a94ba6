package interval

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Unit is the granularity an interval magnitude is expressed in.
type Unit int

const (
	Seconds Unit = iota
	Minutes
	Hours
	Days
)

var ErrInvalidMagnitude = errors.New("interval magnitude must be a finite number >= 0")

// secondsPer holds the fixed multiplier for each unit.
var secondsPer = [...]float64{
	Seconds: 1,
	Minutes: 60,
	Hours:   3600,
	Days:    86400,
}

func (u Unit) String() string {
	switch u {
	case Seconds:
		return "seconds"
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	case Days:
		return "days"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

func (u Unit) valid() bool { return u >= Seconds && u <= Days }

// ParseUnit accepts the long names plus their single-letter forms (s, m, h, d).
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "second", "seconds":
		return Seconds, nil
	case "m", "min", "minute", "minutes":
		return Minutes, nil
	case "h", "hour", "hours":
		return Hours, nil
	case "d", "day", "days":
		return Days, nil
	default:
		return 0, fmt.Errorf("unknown interval unit %q (use seconds, minutes, hours or days)", s)
	}
}

// Spec is the configured interval: a magnitude in a unit.
type Spec struct {
	Unit      Unit
	Magnitude float64
}

func (s Spec) Validate() error {
	if !s.Unit.valid() {
		return fmt.Errorf("invalid interval unit %d", int(s.Unit))
	}
	if math.IsNaN(s.Magnitude) || math.IsInf(s.Magnitude, 0) || s.Magnitude < 0 {
		return ErrInvalidMagnitude
	}
	return nil
}

// Duration is the interval expressed as a time.Duration, saturating at the
// largest representable value.
func (s Spec) Duration() time.Duration {
	secs := s.Magnitude * s.Unit.seconds()
	if secs >= float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs * float64(time.Second))
}

func (s Spec) String() string {
	return fmt.Sprintf("%g %s", s.Magnitude, s.Unit)
}

func (u Unit) seconds() float64 {
	if !u.valid() {
		return 1
	}
	return secondsPer[u]
}

// IsDue reports whether elapsedSeconds, converted into the spec's unit, has
// reached the magnitude. A zero magnitude is due on every call.
func IsDue(elapsedSeconds float64, spec Spec) bool {
	// A clock stepping backwards counts as no time elapsed.
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	return elapsedSeconds/spec.Unit.seconds() >= spec.Magnitude
}
