package types

import (
	"encoding/hex"
	"fmt"

	"github.com/vocdoni/shielded-pool/util"
)

// HexBytes is a []byte which encodes as a hexadecimal string in JSON and
// other text formats.
type HexBytes []byte

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

// MarshalText encodes the bytes as a lowercase hex string.
func (b HexBytes) MarshalText() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(enc, b)
	return enc, nil
}

// UnmarshalText decodes a hex string, with or without the 0x prefix.
func (b *HexBytes) UnmarshalText(data []byte) error {
	decoded, err := hex.DecodeString(util.TrimHex(string(data)))
	if err != nil {
		return fmt.Errorf("invalid hex bytes: %w", err)
	}
	*b = decoded
	return nil
}

// HexStringToHexBytes converts a hex string to HexBytes, it panics if the
// string is not valid hex. Use it only with trusted constants.
func HexStringToHexBytes(s string) HexBytes {
	var b HexBytes
	if err := b.UnmarshalText([]byte(s)); err != nil {
		panic(err)
	}
	return b
}
