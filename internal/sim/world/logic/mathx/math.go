package mathx

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// SatSub returns a-b, or 0 when that would go below zero.
func SatSub(a, b int) int {
	if a <= b {
		return 0
	}
	return a - b
}
