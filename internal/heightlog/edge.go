package heightlog

// ShouldNotify is the one-shot threshold trigger.
//
// It fires only when the current sample has a height at or above target
// (inclusive) and no notification has been sent for this achievement yet.
// A nil height never fires.
func ShouldNotify(current Sample, target float64, alreadyNotified bool) bool {
	if alreadyNotified || current.LiveHeight == nil {
		return false
	}
	return *current.LiveHeight >= target
}

// AlreadyNotified derives the notified flag from history: any prior sample at
// or above target means the crossing was already reported.
//
// The log is the only source of truth; there is no separate flag to drift.
func AlreadyNotified(prior []Sample, target float64) bool {
	for _, s := range prior {
		if s.LiveHeight != nil && *s.LiveHeight >= target {
			return true
		}
	}
	return false
}

// CrossedOnLast reports whether the most recent sample of l is the first one
// to reach the document's floor target.
func CrossedOnLast(l *HeightLog) bool {
	if l == nil || len(l.DataPoints) == 0 {
		return false
	}
	n := len(l.DataPoints)
	return ShouldNotify(l.DataPoints[n-1], l.FloorTarget, AlreadyNotified(l.DataPoints[:n-1], l.FloorTarget))
}
