package util

import "fmt"

// TrimHex trims the '0x' prefix from a hex string.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// PrettyHex returns the first four bytes of b hex encoded, followed by an
// ellipsis when b is longer. Handy for log lines.
func PrettyHex(b []byte) string {
	if len(b) <= 4 {
		return fmt.Sprintf("%x", b)
	}
	return fmt.Sprintf("%x…", b[:4])
}
