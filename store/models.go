// Package store contains the GORM-backed SQLite models persisted by the
// coordination engine.
//
// Every entity is content-keyed: the subdigest column is a pure function
// of the entity's fields and carries a unique index, so insertion dedup
// is enforced by the storage layer rather than application pre-checks.
// Records are append-only; nothing here is ever updated in place.
package store

import (
	"gorm.io/gorm"
)

// Transaction is a proposed call bundle for a multisig wallet.
// The execution slot is (space, nonce) within the wallet contract.
type Transaction struct {
	gorm.Model
	Subdigest string `gorm:"uniqueIndex;not null"` // Content-derived identifier
	Wallet    string `gorm:"index;not null"`       // Multisig account address
	Space     string `gorm:"not null"`             // Nonce space, decimal string
	Nonce     string `gorm:"not null"`             // Nonce within the space, decimal string
	ChainID   string `gorm:"not null"`             // Target network, decimal string
	Calls     []byte `gorm:"not null"`             // Raw JSON-encoded call list
	FirstSeen int64  // Unix seconds of local first sight, anchors receipt log scans
}

// Message is a payload signed by the wallet (EIP-191 personal sign).
type Message struct {
	gorm.Model
	Subdigest string `gorm:"uniqueIndex;not null"`
	Wallet    string `gorm:"index;not null"`
	ChainID   string `gorm:"not null"`
	Raw       string `gorm:"type:text;not null"` // Signed payload as entered
	Digest    string `gorm:"not null"`           // Personal-sign hash of Raw
	FirstSeen int64
}

// Update is a proposed wallet configuration change, identified by the
// image hash of the target configuration.
type Update struct {
	gorm.Model
	Subdigest  string `gorm:"uniqueIndex;not null"`
	Wallet     string `gorm:"index;not null"`
	ImageHash  string `gorm:"not null"`
	Checkpoint uint64 `gorm:"not null"` // Version counter of the target configuration
}

// Signature is a raw signature blob attached to any entity's subdigest.
// Uniqueness is on the (subdigest, signature) pair: the same signer may
// submit distinct blobs, but byte-identical resubmission is a no-op.
type Signature struct {
	gorm.Model
	Subdigest string `gorm:"uniqueIndex:idx_subdigest_signature;index;not null"`
	Signature string `gorm:"uniqueIndex:idx_subdigest_signature;not null"` // Hex-encoded blob
}

// Wallet is a locally known multisig account with an optional name.
type Wallet struct {
	gorm.Model
	Address string `gorm:"uniqueIndex;not null"`
	Name    string
}
