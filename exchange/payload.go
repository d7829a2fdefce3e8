// Package exchange implements the out-of-band wire format that lets any
// subset of entities and signatures travel between parties' stores over
// file, clipboard or QR transport without a server. Import merges a
// payload idempotently and commutatively: every write is keyed by
// content hash and deduplicated at that key.
package exchange

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/enchanter-io/enchanter/digest"
	engerr "github.com/enchanter-io/enchanter/errors"
)

// Payload is one exchange document. All top-level keys are optional; an
// absent key means nothing of that kind travels in this payload.
type Payload struct {
	Transactions []digest.TransactionEntry `json:"transactions,omitempty"`
	Messages     []digest.MessageEntry     `json:"messages,omitempty"`
	Updates      []UpdateRef               `json:"updates,omitempty"`

	// Signatures maps a subdigest to the hex signature blobs gathered
	// for it. Signatures may reference entities absent from this
	// payload; they become meaningful once the entity is merged in.
	Signatures map[string][]string `json:"signatures,omitempty"`
}

// UpdateRef is the wire shape of a configuration update: the target
// configuration travels by image hash only and is resolved through the
// configuration tracker on import.
type UpdateRef struct {
	Wallet    string `json:"wallet"`
	ImageHash string `json:"imageHash"`
}

// Parse decodes and validates a payload. Validation fails closed: a
// single malformed element rejects the whole document, so a corrupt
// payload can never be partially admitted.
func Parse(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, engerr.NewValidationError("payload is not valid JSON: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every element's structural shape.
func (p *Payload) Validate() error {
	for i, tx := range p.Transactions {
		if err := tx.Validate(); err != nil {
			return engerr.NewValidationError("transaction %d: %v", i, err)
		}
	}
	for i, msg := range p.Messages {
		if err := msg.Validate(); err != nil {
			return engerr.NewValidationError("message %d: %v", i, err)
		}
	}
	for i, upd := range p.Updates {
		if !common.IsHexAddress(upd.Wallet) {
			return engerr.NewValidationError("update %d: wallet %q is not an address", i, upd.Wallet)
		}
		raw, err := hexutil.Decode(upd.ImageHash)
		if err != nil || len(raw) != common.HashLength {
			return engerr.NewValidationError("update %d: image hash %q is not a 32-byte hex value", i, upd.ImageHash)
		}
	}
	for sub, blobs := range p.Signatures {
		raw, err := hexutil.Decode(sub)
		if err != nil || len(raw) != common.HashLength {
			return engerr.NewValidationError("signature key %q is not a 32-byte hex value", sub)
		}
		for _, blob := range blobs {
			if _, err := hexutil.Decode(blob); err != nil {
				return engerr.NewValidationError("signature blob under %s is not hex", sub)
			}
		}
	}
	return nil
}

// Empty reports whether the payload carries nothing.
func (p *Payload) Empty() bool {
	return len(p.Transactions) == 0 &&
		len(p.Messages) == 0 &&
		len(p.Updates) == 0 &&
		len(p.Signatures) == 0
}

// Encode serializes the payload as one JSON document.
func (p *Payload) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, engerr.NewValidationError("failed to encode payload: %v", err)
	}
	return data, nil
}

// Filename returns the export file name convention: an ISO date and a
// colon-free time. One export is one plaintext JSON document; payloads
// carry only signatures and public proposal data, no key material.
func Filename(now time.Time) string {
	return fmt.Sprintf("enchanter-%s-%s.json",
		now.Format("2006-01-02"),
		now.Format("150405"),
	)
}
