package bundle

import "fmt"

var ErrInvalidFlags = fmt.Errorf("invalid bundle flags")

const (
	flagSpendsEnabled  = 1 << 0
	flagOutputsEnabled = 1 << 1
	flagZSAEnabled     = 1 << 2
	flagsMask          = flagSpendsEnabled | flagOutputsEnabled | flagZSAEnabled
)

// Flags select which parts of the actions of a bundle may carry value.
type Flags struct {
	SpendsEnabled  bool
	OutputsEnabled bool
	ZSAEnabled     bool
}

var (
	// FlagsEnabled allows spends, outputs and non native assets.
	FlagsEnabled = Flags{SpendsEnabled: true, OutputsEnabled: true, ZSAEnabled: true}
	// FlagsNativeOnly allows spends and outputs of the native asset.
	FlagsNativeOnly = Flags{SpendsEnabled: true, OutputsEnabled: true}
	// FlagsSpendsDisabled only allows outputs.
	FlagsSpendsDisabled = Flags{OutputsEnabled: true, ZSAEnabled: true}
	// FlagsOutputsDisabled only allows spends.
	FlagsOutputsDisabled = Flags{SpendsEnabled: true, ZSAEnabled: true}
)

// Byte encodes the flags as a bit field.
func (f Flags) Byte() byte {
	var b byte
	if f.SpendsEnabled {
		b |= flagSpendsEnabled
	}
	if f.OutputsEnabled {
		b |= flagOutputsEnabled
	}
	if f.ZSAEnabled {
		b |= flagZSAEnabled
	}
	return b
}

// FlagsFromByte decodes a bit field. Unknown bits are rejected.
func FlagsFromByte(b byte) (Flags, error) {
	if b&^flagsMask != 0 {
		return Flags{}, fmt.Errorf("%w: %08b", ErrInvalidFlags, b)
	}
	return Flags{
		SpendsEnabled:  b&flagSpendsEnabled != 0,
		OutputsEnabled: b&flagOutputsEnabled != 0,
		ZSAEnabled:     b&flagZSAEnabled != 0,
	}, nil
}

func (f Flags) String() string {
	return fmt.Sprintf("spends=%t outputs=%t zsa=%t", f.SpendsEnabled, f.OutputsEnabled, f.ZSAEnabled)
}
