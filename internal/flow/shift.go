package flow

// Shift is one of the fixed named time bands used to group slots.
type Shift string

const (
	ShiftMorning Shift = "Morning"
	ShiftDay     Shift = "Day"
	ShiftEvening Shift = "Evening"
	ShiftNight   Shift = "Night"
)

// Window is the hour range [Start, End) of a shift.
type Window struct {
	Shift Shift
	Start int
	End   int
}

// Shifts is the fixed shift table, in display order.
var Shifts = []Window{
	{Shift: ShiftMorning, Start: 6, End: 10},
	{Shift: ShiftDay, Start: 10, End: 16},
	{Shift: ShiftEvening, Start: 16, End: 20},
	{Shift: ShiftNight, Start: 20, End: 24},
}

// OfferedShifts returns the shifts that overlap the opening hours.
// A shift is offered iff closing > shift.Start and opening < shift.End.
func OfferedShifts(opening, closing int) []Shift {
	offered := make([]Shift, 0, len(Shifts))
	for _, w := range Shifts {
		if closing > w.Start && opening < w.End {
			offered = append(offered, w.Shift)
		}
	}
	return offered
}

// ParseShift matches one of the fixed shift names.
func ParseShift(s string) (Shift, bool) {
	for _, w := range Shifts {
		if string(w.Shift) == s {
			return w.Shift, true
		}
	}
	return "", false
}
