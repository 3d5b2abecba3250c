package hexconv

// Halfbyte maps a character onto its hexadecimal value. Characters which are not
// hexadecimal digits are mapped onto 0xFF.
var Halfbyte = func() (table [256]byte) {
	for i := range table {
		table[i] = 0xFF
	}

	for c := '0'; c <= '9'; c++ {
		table[c] = byte(c - '0')
	}

	for c := 'a'; c <= 'f'; c++ {
		table[c] = byte(c-'a') + 10
		table[c-'a'+'A'] = byte(c-'a') + 10
	}

	return table
}()

// Parse decodes the hexadecimal number. It reports false if the input is empty,
// contains a non-hex character or overflows uint64.
func Parse(digits []byte) (uint64, bool) {
	if len(digits) == 0 || len(digits) > 16 {
		return 0, false
	}

	var n uint64
	for _, c := range digits {
		val := Halfbyte[c]
		if val == 0xFF {
			return 0, false
		}

		n = (n << 4) | uint64(val)
	}

	return n, true
}
