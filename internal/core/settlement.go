package core

// ShareStatus describes one participant's standing on a split expense.
type ShareStatus struct {
	Payable  int64
	Required int64
	Paid     int64
}

// Completed reports whether the participant has covered their share.
func (s ShareStatus) Completed() bool {
	return s.Paid >= s.Required
}

// RequiredShare is the amount each involved friend owes on a split.
// Integer floor division: the remainder of an uneven split is absorbed and
// never billed to anyone. 100 split three ways is 33 each, with 1 lost.
func RequiredShare(total int64, friends int) int64 {
	if friends <= 0 {
		return 0
	}
	return total / int64(friends)
}

// Share computes a participant's standing given the total already paid by
// them toward the split. Payable never goes negative.
func Share(total int64, friends int, paid int64) ShareStatus {
	required := RequiredShare(total, friends)
	payable := required - paid
	if payable < 0 {
		payable = 0
	}
	return ShareStatus{Payable: payable, Required: required, Paid: paid}
}
