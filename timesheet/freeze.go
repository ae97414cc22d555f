package timesheet

import "time"

// EffectiveState returns the freeze state in force at now. No window, or a
// window set in an earlier month, means unfrozen: each month starts open.
// Months are compared in now's location; stored windows are UTC.
func EffectiveState(w *FreezeWindow, now time.Time) FreezeState {
	if w == nil {
		return Unfrozen
	}
	if MonthOf(w.At.In(now.Location())) != MonthOf(now) {
		return Unfrozen
	}
	return w.State
}

// CheckWritable gates day row writes. target must be the month containing
// now and the window must not be frozen.
func CheckWritable(target Month, now time.Time, w *FreezeWindow) error {
	current := MonthOf(now)
	if target != current {
		return &PermissionError{Month: target, Reason: "only " + current.String() + " is open for edits"}
	}
	if EffectiveState(w, now) == Frozen {
		return &PermissionError{Month: target, Reason: "timesheet is frozen"}
	}
	return nil
}
