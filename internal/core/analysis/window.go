package analysis

import "time"

// Period holds the inclusive timestamp bounds of all samples in a scope. A
// nil *Period means the scope has no samples.
type Period struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// Window is a caller-requested interval. A nil bound is unbounded on that side.
type Window struct {
	Begin *time.Time
	End   *time.Time
}

// Unbounded is the window that clamps to the full period.
func Unbounded() Window {
	return Window{}
}

// Between builds a window with both bounds set.
func Between(begin, end time.Time) Window {
	return Window{Begin: &begin, End: &end}
}

// EffectiveWindow is the interval actually queried, after clamping.
type EffectiveWindow struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// Inverted reports whether the window ends before it begins. Such a window
// matches no samples.
func (w EffectiveWindow) Inverted() bool {
	return w.End.Before(w.Begin)
}

// Clamp intersects a requested window with a period. An inverted request is
// not rejected; it yields an inverted effective window.
func Clamp(requested Window, period Period) EffectiveWindow {
	eff := EffectiveWindow{Begin: period.Earliest, End: period.Latest}

	if requested.Begin != nil && requested.Begin.After(period.Earliest) {
		eff.Begin = *requested.Begin
	}
	if requested.End != nil && requested.End.Before(period.Latest) {
		eff.End = *requested.End
	}

	return eff
}
