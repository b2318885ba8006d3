package bundle

import (
	"fmt"

	"github.com/vocdoni/shielded-pool/log"
	"github.com/vocdoni/shielded-pool/value"
)

type batchItem[V value.Balance] struct {
	bundle  *Authorized[V]
	sighash Sighash
}

// BatchValidator collects authorized bundles and validates them together.
// It is not safe for concurrent use.
type BatchValidator[V value.Balance] struct {
	items []batchItem[V]
}

// NewBatchValidator returns an empty validator.
func NewBatchValidator[V value.Balance]() *BatchValidator[V] {
	return &BatchValidator[V]{}
}

// Add queues b to be validated against sighash.
func (v *BatchValidator[V]) Add(b *Authorized[V], sighash Sighash) {
	v.items = append(v.items, batchItem[V]{bundle: b, sighash: sighash})
}

// Len returns the number of queued bundles.
func (v *BatchValidator[V]) Len() int {
	return len(v.items)
}

// Validate checks the signatures and the proof of every queued bundle and
// returns the first failure.
func (v *BatchValidator[V]) Validate(vk Verifier) error {
	for i, item := range v.items {
		if err := item.bundle.VerifySignatures(item.sighash); err != nil {
			return fmt.Errorf("bundle %d: %w", i, err)
		}
		if err := item.bundle.VerifyProof(vk); err != nil {
			return fmt.Errorf("bundle %d: %w", i, err)
		}
	}
	log.Debugw("bundle batch validated", "bundles", len(v.items))
	return nil
}
