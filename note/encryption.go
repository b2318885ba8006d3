package note

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/bwesterb/go-ristretto"
	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/config"
	"github.com/vocdoni/shielded-pool/crypto/ecc"
	"github.com/vocdoni/shielded-pool/keys"
	"github.com/vocdoni/shielded-pool/value"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrDecryption       = fmt.Errorf("note decryption failed")
	ErrInvalidPlaintext = fmt.Errorf("invalid note plaintext")
)

const plaintextLeadByte = 0x02

const (
	// NotePlaintextSize is lead byte, diversifier, value, rseed, asset and memo.
	NotePlaintextSize = 1 + config.DiversifierSize + 8 + 32 + ecc.PointSize + config.MemoSize
	// EncCiphertextSize is the note plaintext plus the AEAD tag.
	EncCiphertextSize = NotePlaintextSize + chacha20poly1305.Overhead
	// OutPlaintextSize is pk_d followed by esk.
	OutPlaintextSize = ecc.PointSize + ecc.ScalarSize
	// OutCiphertextSize is the outgoing plaintext plus the AEAD tag.
	OutCiphertextSize = OutPlaintextSize + chacha20poly1305.Overhead
)

// Memo is the fixed-size message attached to every output.
type Memo [config.MemoSize]byte

// EmptyMemo returns the memo that carries no message.
func EmptyMemo() Memo {
	var m Memo
	m[0] = 0xf6
	return m
}

// TextMemo returns a memo holding s, which must be valid UTF-8 that fits.
func TextMemo(s string) (Memo, error) {
	var m Memo
	if !utf8.ValidString(s) || len(s) > config.MemoSize {
		return m, fmt.Errorf("invalid memo text of %d bytes", len(s))
	}
	copy(m[:], s)
	return m, nil
}

// Text returns the memo as a string with trailing zeros removed. An empty
// memo returns "".
func (m Memo) Text() string {
	if m == EmptyMemo() {
		return ""
	}
	return string(bytes.TrimRight(m[:], "\x00"))
}

// EncryptedNote is the ciphertext part of an action.
type EncryptedNote struct {
	EphemeralKey  [ecc.PointSize]byte
	EncCiphertext [EncCiphertextSize]byte
	OutCiphertext [OutCiphertextSize]byte
}

// symmetric key for the note plaintext, derived from the DH shared secret
func kdf(shared *ristretto.Point, epk [ecc.PointSize]byte) []byte {
	sharedBytes := ecc.PointBytes(shared)
	h, err := blake2b.New256([]byte(config.DomainNoteEncryptionKDF))
	if err != nil {
		panic(err)
	}
	h.Write(sharedBytes[:])
	h.Write(epk[:])
	return h.Sum(nil)
}

// outgoing cipher key
func ock(ovk keys.OutgoingViewingKey, cv value.Commitment, cmx ExtractedCommitment, epk [ecc.PointSize]byte) []byte {
	h, err := blake2b.New256([]byte(config.DomainOutgoingCipherKey))
	if err != nil {
		panic(err)
	}
	cvBytes := cv.Bytes()
	cmxBytes := cmx.Bytes()
	h.Write(ovk[:])
	h.Write(cvBytes[:])
	h.Write(cmxBytes[:])
	h.Write(epk[:])
	return h.Sum(nil)
}

// every key is used for a single message so a zero nonce is sound
var zeroNonce [chacha20poly1305.NonceSize]byte

func seal(key, plaintext []byte) []byte {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		panic(err)
	}
	return aead.Seal(nil, zeroNonce[:], plaintext, nil)
}

func open(key, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		panic(err)
	}
	return aead.Open(nil, zeroNonce[:], ciphertext, nil)
}

// Encrypt encrypts n and memo to the recipient of the note. When ovk is
// nil the outgoing ciphertext is sealed with a random key and the sender
// cannot recover the note later.
func Encrypt(ovk *keys.OutgoingViewingKey, n Note, memo Memo, cv value.Commitment, cmx ExtractedCommitment,
	rng io.Reader,
) (EncryptedNote, error) {
	var enc EncryptedNote
	esk := n.rseed.esk(n.rho)
	epk := new(ristretto.Point).ScalarMult(n.recipient.Diversifier().Generator(), esk)
	enc.EphemeralKey = ecc.PointBytes(epk)

	shared := new(ristretto.Point).ScalarMult(n.recipient.TransmissionKey(), esk)
	copy(enc.EncCiphertext[:], seal(kdf(shared, enc.EphemeralKey), n.plaintext(memo)))

	var key []byte
	if ovk != nil {
		key = ock(*ovk, cv, cmx, enc.EphemeralKey)
	} else {
		key = make([]byte, chacha20poly1305.KeySize)
		if _, err := io.ReadFull(rng, key); err != nil {
			return enc, fmt.Errorf("cannot read randomness: %w", err)
		}
	}
	var out [OutPlaintextSize]byte
	pkd := ecc.PointBytes(n.recipient.TransmissionKey())
	eskBytes := ecc.ScalarBytes(esk)
	copy(out[:ecc.PointSize], pkd[:])
	copy(out[ecc.PointSize:], eskBytes[:])
	copy(enc.OutCiphertext[:], seal(key, out[:]))
	return enc, nil
}

func (n Note) plaintext(memo Memo) []byte {
	buf := make([]byte, 0, NotePlaintextSize)
	d := n.recipient.Diversifier()
	a := n.asset.Bytes()
	buf = append(buf, plaintextLeadByte)
	buf = append(buf, d[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, n.value.Uint64())
	buf = append(buf, n.rseed[:]...)
	buf = append(buf, a[:]...)
	buf = append(buf, memo[:]...)
	return buf
}

// parsePlaintext splits a note plaintext into its parts.
func parsePlaintext(pt []byte) (keys.Diversifier, value.NoteValue, RandomSeed, asset.Base, Memo, error) {
	var (
		d     keys.Diversifier
		rseed RandomSeed
		memo  Memo
	)
	if len(pt) != NotePlaintextSize || pt[0] != plaintextLeadByte {
		return d, 0, rseed, asset.Base{}, memo, ErrInvalidPlaintext
	}
	off := 1
	copy(d[:], pt[off:off+config.DiversifierSize])
	off += config.DiversifierSize
	v := value.NoteValue(binary.LittleEndian.Uint64(pt[off : off+8]))
	off += 8
	copy(rseed[:], pt[off:off+32])
	off += 32
	a, err := asset.FromBytes(pt[off : off+ecc.PointSize])
	if err != nil {
		return d, 0, rseed, asset.Base{}, memo, fmt.Errorf("%w: %w", ErrInvalidPlaintext, err)
	}
	off += ecc.PointSize
	copy(memo[:], pt[off:])
	return d, v, rseed, a, memo, nil
}

// checkNote verifies that the decrypted note matches the public data of the
// action: the ephemeral key must come from the note's rseed and the note
// must commit to cmx.
func checkNote(n Note, epk [ecc.PointSize]byte, cmx ExtractedCommitment) error {
	expected := new(ristretto.Point).ScalarMult(n.recipient.Diversifier().Generator(), n.rseed.esk(n.rho))
	if ecc.PointBytes(expected) != epk {
		return fmt.Errorf("%w: ephemeral key mismatch", ErrDecryption)
	}
	if n.Commitment().Extract() != cmx {
		return fmt.Errorf("%w: commitment mismatch", ErrDecryption)
	}
	return nil
}

// TryDecrypt attempts to decrypt enc with an incoming viewing key. On
// success it returns the note, its recipient address and the memo. rho is
// the nullifier revealed by the same action.
func TryDecrypt(ivk keys.IncomingViewingKey, rho Rho, enc *EncryptedNote, cmx ExtractedCommitment) (Note, Memo, error) {
	epk, err := ecc.PointFromBytes(enc.EphemeralKey[:])
	if err != nil {
		return Note{}, Memo{}, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	pt, err := open(kdf(ivk.SharedSecret(epk), enc.EphemeralKey), enc.EncCiphertext[:])
	if err != nil {
		return Note{}, Memo{}, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	d, v, rseed, a, memo, err := parsePlaintext(pt)
	if err != nil {
		return Note{}, Memo{}, err
	}
	n := FromParts(ivk.Address(d), v, a, rho, rseed)
	if err := checkNote(n, enc.EphemeralKey, cmx); err != nil {
		return Note{}, Memo{}, err
	}
	return n, memo, nil
}

// TryRecover attempts to recover a note sent with the outgoing viewing key
// ovk. cv and cmx are the value commitment and extracted commitment of the
// action that carries enc.
func TryRecover(ovk keys.OutgoingViewingKey, rho Rho, enc *EncryptedNote, cv value.Commitment,
	cmx ExtractedCommitment,
) (Note, Memo, error) {
	out, err := open(ock(ovk, cv, cmx, enc.EphemeralKey), enc.OutCiphertext[:])
	if err != nil {
		return Note{}, Memo{}, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	pkd, err := ecc.PointFromBytes(out[:ecc.PointSize])
	if err != nil {
		return Note{}, Memo{}, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	esk, err := ecc.ScalarFromBytes(out[ecc.PointSize:])
	if err != nil {
		return Note{}, Memo{}, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	shared := new(ristretto.Point).ScalarMult(pkd, esk)
	pt, err := open(kdf(shared, enc.EphemeralKey), enc.EncCiphertext[:])
	if err != nil {
		return Note{}, Memo{}, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	d, v, rseed, a, memo, err := parsePlaintext(pt)
	if err != nil {
		return Note{}, Memo{}, err
	}
	addrBytes := make([]byte, 0, keys.AddressSize)
	addrBytes = append(addrBytes, d[:]...)
	addrBytes = append(addrBytes, out[:ecc.PointSize]...)
	recipient, err := keys.AddressFromBytes(addrBytes)
	if err != nil {
		return Note{}, Memo{}, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	n := FromParts(recipient, v, a, rho, rseed)
	if err := checkNote(n, enc.EphemeralKey, cmx); err != nil {
		return Note{}, Memo{}, err
	}
	return n, memo, nil
}
