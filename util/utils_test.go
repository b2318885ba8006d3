package util

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestTrimHex(t *testing.T) {
	c := qt.New(t)
	c.Assert(TrimHex("0xab"), qt.Equals, "ab")
	c.Assert(TrimHex("0XAB"), qt.Equals, "AB")
	c.Assert(TrimHex("ab"), qt.Equals, "ab")
	c.Assert(TrimHex("0"), qt.Equals, "0")
}

func TestPrettyHex(t *testing.T) {
	c := qt.New(t)
	c.Assert(PrettyHex([]byte{0x01, 0x02}), qt.Equals, "0102")
	c.Assert(PrettyHex([]byte{0xde, 0xad, 0xbe, 0xef, 0x00}), qt.Equals, "deadbeef…")
}
