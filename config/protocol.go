package config

const (
	// MinActions is the minimum number of actions a bundle carries. Builds
	// with fewer spends and outputs are padded with dummies up to this count.
	MinActions = 2
	// MerkleDepth is the fixed depth of the note commitment tree.
	MerkleDepth = 32
	// MaxAssetDescriptionSize is the upper bound, in bytes, of the asset
	// description used to derive a non-native asset base.
	MaxAssetDescriptionSize = 512
	// MemoSize is the size of the memo field of a note plaintext.
	MemoSize = 512
	// DiversifierSize is the size of an address diversifier.
	DiversifierSize = 11
	// SpendingKeySize is the size of a raw spending key.
	SpendingKeySize = 32
	// SighashSize is the size of the message signed by spend authorization
	// and binding signatures.
	SighashSize = 32
)

// Domain separators. Every hash-to-curve, hash-to-scalar and PRF in the
// protocol is keyed by one of these so that outputs of different
// derivations never collide.
const (
	DomainValueCommitV       = "shielded-pool:cv-v" // native asset base
	DomainValueCommitR       = "shielded-pool:cv-r"
	DomainSpendAuthBase      = "shielded-pool:spendauth-g"
	DomainNullifierBase      = "shielded-pool:nf-k"
	DomainNoteCommitR        = "shielded-pool:notecommit-r"
	DomainNoteCommit         = "shielded-pool:notecommit"
	DomainDiversifyHash      = "shielded-pool:gd"
	DomainIvk                = "shielded-pool:ivk"
	DomainRedDSA             = "shielded-pool:reddsa-h"
	DomainExpandSeed         = "shielded-pool:expand"
	DomainAssetBase          = "shielded-pool:asset-base"
	DomainNoteEncryptionKDF  = "shielded-pool:kdf"
	DomainOutgoingCipherKey  = "shielded-pool:ock"
	DomainBundleCommitment   = "shielded-pool:bundle"
	DomainBundleAuthorizing  = "shielded-pool:bundle-auth"
	DomainEmptyLeaf          = "shielded-pool:empty-leaf"
)
