package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/builder"
	"github.com/vocdoni/shielded-pool/bundle"
	"github.com/vocdoni/shielded-pool/circuit"
	"github.com/vocdoni/shielded-pool/keys"
	"github.com/vocdoni/shielded-pool/log"
	"github.com/vocdoni/shielded-pool/note"
	"github.com/vocdoni/shielded-pool/tree"
	"github.com/vocdoni/shielded-pool/util"
	"github.com/vocdoni/shielded-pool/value"
)

const (
	spendValue  = 100
	outputValue = 40

	assetSpendValue  = 50
	assetOutputValue = 30
)

func main() {
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	spends := flag.Int("spends", 1, "number of native notes to spend")
	outputs := flag.Int("outputs", 1, "number of native outputs to create")
	zsa := flag.Bool("zsa", false, "also transfer and burn an issued asset")
	seed := flag.Uint64("seed", 0, "deterministic randomness seed, 0 uses the system randomness")
	vkFile := flag.String("vk", "", "write the verifying key to this file")
	artifacts := flag.String("artifacts", circuit.BaseDir, "circuit key cache directory, empty runs a throwaway setup")
	flag.Parse()
	log.Init(*logLevel, "stderr", nil)

	var rng io.Reader = rand.Reader
	if *seed != 0 {
		rng = util.NewSeededReaderFromUint64(*seed)
	}

	start := time.Now()
	var (
		pk  *circuit.ProvingKey
		vk  *circuit.VerifyingKey
		err error
	)
	if *artifacts != "" {
		pk, vk, err = circuit.LoadOrSetup(*artifacts)
	} else {
		pk, vk, err = circuit.Setup()
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Infow("circuit setup done", "took", time.Since(start).String())
	if *vkFile != "" {
		if err := writeVerifyingKey(*vkFile, vk); err != nil {
			log.Fatal(err)
		}
	}

	summary, err := run(rng, pk, vk, *spends, *outputs, *zsa)
	if err != nil {
		log.Fatal(err)
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}

func writeVerifyingKey(path string, vk *circuit.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnw("cannot close verifying key file", "error", err)
		}
	}()
	_, err = vk.WriteTo(f)
	return err
}

type funded struct {
	note note.Note
	pos  uint32
}

// fund appends a note of v units of a for owner to the tree.
func fund(rng io.Reader, tr *tree.CommitmentTree, owner keys.Address, v value.NoteValue, a asset.Base) (funded, error) {
	nf, err := note.RandomNullifier(rng)
	if err != nil {
		return funded{}, err
	}
	n, err := note.New(owner, v, a, note.RhoFromNullifier(nf), rng)
	if err != nil {
		return funded{}, err
	}
	pos, err := tr.Append(n.Commitment().Extract())
	if err != nil {
		return funded{}, err
	}
	return funded{note: n, pos: pos}, nil
}

func run(rng io.Reader, pk *circuit.ProvingKey, vk *circuit.VerifyingKey, spends, outputs int, zsa bool,
) (*bundle.Summary, error) {
	aliceSk, err := keys.NewSpendingKey(rng)
	if err != nil {
		return nil, err
	}
	bobSk, err := keys.NewSpendingKey(rng)
	if err != nil {
		return nil, err
	}
	alice, bob := keys.NewFullViewingKey(aliceSk), keys.NewFullViewingKey(bobSk)
	aliceOvk := alice.OutgoingViewingKey(keys.External)
	bobAddr := bob.AddressAt(0, keys.External)

	tr := tree.NewCommitmentTree()
	var notes []funded
	for i := 0; i < spends; i++ {
		f, err := fund(rng, tr, alice.AddressAt(uint64(i), keys.External), spendValue, asset.Native())
		if err != nil {
			return nil, err
		}
		notes = append(notes, f)
	}
	var issued asset.Base
	flags := bundle.FlagsNativeOnly
	if zsa {
		flags = bundle.FlagsEnabled
		isk, err := asset.NewIssuanceAuthorizingKey(rng)
		if err != nil {
			return nil, err
		}
		if issued, err = asset.Derive(isk.ValidatingKey(), []byte("e2e test asset")); err != nil {
			return nil, err
		}
		f, err := fund(rng, tr, alice.AddressAt(uint64(spends), keys.External), assetSpendValue, issued)
		if err != nil {
			return nil, err
		}
		notes = append(notes, f)
	}

	b := builder.New[int64](flags, tr.Root())
	for _, f := range notes {
		path, err := tr.Witness(f.pos)
		if err != nil {
			return nil, err
		}
		if err := b.AddSpend(alice, f.note, path); err != nil {
			return nil, err
		}
	}
	for i := 0; i < outputs; i++ {
		memo, err := note.TextMemo(fmt.Sprintf("output %d", i))
		if err != nil {
			return nil, err
		}
		if err := b.AddOutput(&aliceOvk, bobAddr, outputValue, asset.Native(), &memo); err != nil {
			return nil, err
		}
	}
	if zsa {
		if err := b.AddOutput(&aliceOvk, bobAddr, assetOutputValue, issued, nil); err != nil {
			return nil, err
		}
		if err := b.AddBurn(issued, assetSpendValue-assetOutputValue); err != nil {
			return nil, err
		}
	}

	unproven, _, err := b.Build(rng)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	proven, err := unproven.CreateProof(pk, rng)
	if err != nil {
		return nil, err
	}
	log.Infow("bundle proven", "actions", proven.NumActions(), "took", time.Since(start).String())

	// the effecting data commitment stands in for a transaction sighash
	sighash := bundle.Sighash(proven.Commitment())
	authorized, err := proven.ApplySignatures(rng, sighash, []keys.SpendAuthorizingKey{keys.NewSpendAuthorizingKey(aliceSk)})
	if err != nil {
		return nil, err
	}
	if err := authorized.VerifySignatures(sighash); err != nil {
		return nil, err
	}
	if err := authorized.VerifyProof(vk); err != nil {
		return nil, err
	}

	// scan the bundle as the recipient
	ivk := bob.IncomingViewingKey(keys.External)
	received := 0
	for _, a := range authorized.Actions() {
		enc := a.EncryptedNote()
		n, memo, err := note.TryDecrypt(ivk, note.RhoFromNullifier(a.Nullifier()), &enc, a.Cmx())
		if err != nil {
			continue
		}
		received++
		log.Infow("note received", "value", n.Value(), "asset", n.Asset().String(), "memo", memo.Text())
	}
	log.Infow("bundle authorized", "valueBalance", authorized.ValueBalance(), "received", received)
	return authorized.Summary(), nil
}
