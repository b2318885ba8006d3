package circuit

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/vocdoni/shielded-pool/log"
)

// circuitVersion changes whenever the action relation changes, so stale
// keys are never picked up.
const circuitVersion = "action-v1"

var ErrArtifactHash = fmt.Errorf("artifact hash mismatch")

// BaseDir is the default directory of the key cache. Defaults to the env
// var SHIELDED_POOL_ARTIFACTS_DIR or a directory under the user cache.
var BaseDir string

func init() {
	if dir := os.Getenv("SHIELDED_POOL_ARTIFACTS_DIR"); dir != "" {
		BaseDir = dir
		return
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		BaseDir = filepath.Join(os.TempDir(), "shielded-pool-artifacts")
		return
	}
	BaseDir = filepath.Join(home, ".cache", "shielded-pool-artifacts")
}

// circuitID identifies the compiled constraint system.
func circuitID(ccs constraint.ConstraintSystem) string {
	h := sha256.New()
	h.Write([]byte(circuitVersion))
	for _, n := range []int{ccs.GetNbConstraints(), ccs.GetNbPublicVariables(), ccs.GetNbSecretVariables()} {
		h.Write(binary.LittleEndian.AppendUint64(nil, uint64(n)))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

type artifactPaths struct {
	pk, vk, sums string
}

func pathsFor(dir, id string) artifactPaths {
	base := filepath.Join(dir, circuitVersion+"-"+id)
	return artifactPaths{pk: base + ".pk", vk: base + ".vk", sums: base + ".sha256"}
}

// LoadOrSetup returns the keys of the action circuit cached in dir. When
// the cache is empty a new setup is run and its keys are stored. Cached
// keys are checked against the hashes recorded next to them.
func LoadOrSetup(dir string) (*ProvingKey, *VerifyingKey, error) {
	ccs, err := Compile()
	if err != nil {
		return nil, nil, err
	}
	paths := pathsFor(dir, circuitID(ccs))
	pk, vk, err := load(ccs, paths)
	if err != nil {
		return nil, nil, err
	}
	if pk != nil {
		log.Debugw("action circuit keys loaded", "dir", dir)
		return pk, vk, nil
	}
	if pk, vk, err = setup(ccs); err != nil {
		return nil, nil, err
	}
	if err := store(dir, paths, pk, vk); err != nil {
		return nil, nil, err
	}
	log.Infow("action circuit keys stored", "dir", dir)
	return pk, vk, nil
}

// load reads the cached keys. It returns nil keys and no error if the cache
// holds no keys for this circuit.
func load(ccs constraint.ConstraintSystem, paths artifactPaths) (*ProvingKey, *VerifyingKey, error) {
	sums, err := os.ReadFile(paths.sums)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("cannot read %s: %w", paths.sums, err)
	}
	expected := strings.Fields(string(sums))
	if len(expected) != 2 {
		return nil, nil, fmt.Errorf("%w: malformed %s", ErrArtifactHash, paths.sums)
	}
	pkBytes, err := readChecked(paths.pk, expected[0])
	if err != nil {
		return nil, nil, err
	}
	vkBytes, err := readChecked(paths.vk, expected[1])
	if err != nil {
		return nil, nil, err
	}
	pk := groth16.NewProvingKey(Curve)
	if _, err := pk.ReadFrom(bytes.NewReader(pkBytes)); err != nil {
		return nil, nil, fmt.Errorf("cannot decode proving key: %w", err)
	}
	vk, err := ReadVerifyingKey(bytes.NewReader(vkBytes))
	if err != nil {
		return nil, nil, err
	}
	return &ProvingKey{ccs: ccs, pk: pk}, vk, nil
}

func readChecked(path, expected string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	sum := sha256.Sum256(content)
	if got := hex.EncodeToString(sum[:]); got != expected {
		return nil, fmt.Errorf("%w: %s: expected %s, got %s", ErrArtifactHash, path, expected, got)
	}
	return content, nil
}

// store writes both keys and their hashes. The hashes are written last, so
// an interrupted store leaves no usable cache entry behind.
func store(dir string, paths artifactPaths, pk *ProvingKey, vk *VerifyingKey) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	var pkBuf, vkBuf bytes.Buffer
	if _, err := pk.pk.WriteTo(&pkBuf); err != nil {
		return fmt.Errorf("cannot encode proving key: %w", err)
	}
	if _, err := vk.WriteTo(&vkBuf); err != nil {
		return fmt.Errorf("cannot encode verifying key: %w", err)
	}
	pkSum, vkSum := sha256.Sum256(pkBuf.Bytes()), sha256.Sum256(vkBuf.Bytes())
	sums := hex.EncodeToString(pkSum[:]) + "\n" + hex.EncodeToString(vkSum[:]) + "\n"
	for _, f := range []struct {
		path    string
		content []byte
	}{
		{paths.pk, pkBuf.Bytes()},
		{paths.vk, vkBuf.Bytes()},
		{paths.sums, []byte(sums)},
	} {
		partial := f.path + ".partial"
		if err := os.WriteFile(partial, f.content, 0o644); err != nil {
			return fmt.Errorf("cannot write %s: %w", partial, err)
		}
		if err := os.Rename(partial, f.path); err != nil {
			return fmt.Errorf("cannot rename %s: %w", partial, err)
		}
	}
	return nil
}
