package climatology

import "fmt"

// TimeIndex selects one climatology averaging period: 1–12 are calendar
// months, 13–16 are seasons (winter, spring, summer, autumn) and 17 is the
// annual mean.
type TimeIndex int

const (
	January  TimeIndex = 1
	December TimeIndex = 12
	Winter   TimeIndex = 13
	Autumn   TimeIndex = 16
	Annual   TimeIndex = 17
)

// Valid reports whether idx is one of the seventeen known periods.
func (idx TimeIndex) Valid() bool {
	return idx >= January && idx <= Annual
}

// IsMonthly reports whether idx is a calendar month.
func (idx TimeIndex) IsMonthly() bool {
	return idx >= January && idx <= December
}

// FileCode returns the two-digit period field used in climatology file
// names. The annual mean is stored under code 00.
func (idx TimeIndex) FileCode() string {
	if idx == Annual {
		return "00"
	}
	return fmt.Sprintf("%02d", int(idx))
}

func (idx TimeIndex) String() string {
	switch {
	case idx == Annual:
		return "annual"
	case idx.IsMonthly():
		return fmt.Sprintf("month-%02d", int(idx))
	case idx >= Winter && idx <= Autumn:
		return fmt.Sprintf("season-%d", int(idx-Winter)+1)
	default:
		return fmt.Sprintf("invalid(%d)", int(idx))
	}
}
