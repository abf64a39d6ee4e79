package isotp

// after reports whether instant a occurred strictly after instant b. The
// comparison is done on the signed difference so that a 32-bit millisecond
// counter wrapping around does not flip the ordering.
func after(a, b uint32) bool {
	return int32(b-a) < 0
}

// deadlinePassed reports whether now has reached or passed deadline.
func deadlinePassed(now, deadline uint32) bool {
	return now == deadline || after(now, deadline)
}
