package slot

import "time"

// Overlay holds local status flips made since the last authoritative fetch.
// A fresh fetch replaces the cached list and must reset the overlay.
type Overlay map[int64]Status

// Set records a local status for id.
func (o Overlay) Set(id int64, st Status) {
	o[id] = st
}

// Views projects slots for display.
// Slots in held are always pending to this client. Otherwise the overlay wins over the
// cached backend status, and an available slot that has started shows as expired.
func (o Overlay) Views(slots []Slot, held []int64, now time.Time) []View {
	heldSet := make(map[int64]struct{}, len(held))
	for _, id := range held {
		heldSet[id] = struct{}{}
	}

	views := make([]View, 0, len(slots))
	for _, s := range slots {
		v := View{Slot: s, DisplayStatus: s.Status}

		if _, ok := heldSet[s.ID]; ok {
			v.DisplayStatus = StatusPending
			v.HeldByMe = true
		} else if st, ok := o[s.ID]; ok {
			v.DisplayStatus = st
		}

		if v.DisplayStatus == StatusAvailable && hasStarted(s, now) {
			v.DisplayStatus = StatusExpired
		}

		v.Selectable = v.DisplayStatus == StatusAvailable
		views = append(views, v)
	}
	return views
}

// Find returns the view for id.
func Find(views []View, id int64) (View, bool) {
	for _, v := range views {
		if v.ID == id {
			return v, true
		}
	}
	return View{}, false
}

func hasStarted(s Slot, now time.Time) bool {
	start, err := s.StartsAt(now.Location())
	if err != nil {
		// Unparseable times are left to the backend to judge
		return false
	}
	return !start.After(now)
}
