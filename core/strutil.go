package core

// Itoa converts an integer to a string without pulling in fmt or strconv
func Itoa(n int) string {
	if n < 0 {
		return "-" + utoa64(uint64(-n))
	}
	return utoa64(uint64(n))
}

func itoa(n int) string {
	return Itoa(n)
}

// Utoa converts an unsigned 32-bit counter to a string
func Utoa(n uint32) string {
	return utoa64(uint64(n))
}

func utoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// Ftoa formats a float with a fixed number of decimals (at most 6).
// Used for debug lines on targets where fmt is too heavy.
func Ftoa(f float32, decimals int) string {
	if f != f {
		return "NaN"
	}
	if decimals < 0 {
		decimals = 0
	}
	if decimals > 6 {
		decimals = 6
	}

	sign := ""
	v := float64(f)
	if v < 0 {
		sign = "-"
		v = -v
	}

	scale := uint64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	scaled := uint64(v*float64(scale) + 0.5)
	whole := utoa64(scaled / scale)
	if decimals == 0 {
		return sign + whole
	}

	frac := utoa64(scaled % scale)
	for len(frac) < decimals {
		frac = "0" + frac
	}
	return sign + whole + "." + frac
}

// valueToString converts a dictionary constant to its string form
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int32:
		return itoa(int(val))
	case uint32:
		return Utoa(val)
	case uint64:
		return utoa64(val)
	case float32:
		return Ftoa(val, 3)
	default:
		return ""
	}
}
