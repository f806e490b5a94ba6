package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"repeat/internal/interval"
)

// intervalTarget is shared by the -s/-m/-h/-d flags; the last one given wins.
type intervalTarget struct {
	spec *interval.Spec
}

// intervalValue is a pflag.Value bound to one unit.
type intervalValue struct {
	target *intervalTarget
	unit   interval.Unit
}

var _ pflag.Value = (*intervalValue)(nil)

func (v *intervalValue) Set(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return fmt.Errorf("%q must be a finite number >= 0", s)
	}
	v.target.spec = &interval.Spec{Unit: v.unit, Magnitude: f}
	return nil
}

func (v *intervalValue) String() string {
	if v.target == nil || v.target.spec == nil || v.target.spec.Unit != v.unit {
		return ""
	}
	return strconv.FormatFloat(v.target.spec.Magnitude, 'g', -1, 64)
}

func (v *intervalValue) Type() string { return "N" }

func addIntervalFlags(fs *pflag.FlagSet, target *intervalTarget) {
	for _, f := range []struct {
		name, short string
		unit        interval.Unit
	}{
		{"seconds", "s", interval.Seconds},
		{"minutes", "m", interval.Minutes},
		{"hours", "h", interval.Hours},
		{"days", "d", interval.Days},
	} {
		fs.VarP(&intervalValue{target: target, unit: f.unit}, f.name, f.short,
			fmt.Sprintf("wait N %s between command executions", f.name))
	}
}
