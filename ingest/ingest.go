// Package ingest validates and records incoming signature blobs. A blob
// is only stored after signer recovery succeeds; malformed blobs are
// rejected with an invalid-signature error so tampering or version
// mismatches are always surfaced to the caller, never dropped silently.
package ingest

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"github.com/enchanter-io/enchanter/entitystore"
	engerr "github.com/enchanter-io/enchanter/errors"
	"github.com/enchanter-io/enchanter/walletconfig"
)

// Result reports the outcome of one ingestion.
type Result struct {
	// Accepted is false when the exact (subdigest, blob) pair was
	// already stored. A duplicate is a normal outcome, not an error.
	Accepted bool

	// Signer is the recovered signer address.
	Signer common.Address
}

// Ingestor recovers signers and writes accepted signatures to the store.
type Ingestor struct {
	store  *entitystore.Store
	logger zerolog.Logger
}

// New creates an ingestor over the given store.
func New(store *entitystore.Store, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		logger: logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest validates a signature blob against a subdigest and stores it.
// The subdigest may reference a transaction, message or update; the
// engine does not care which, and signatures arriving before their
// target entity is known locally are stored regardless.
func (i *Ingestor) Ingest(subdigest string, blob []byte) (Result, error) {
	sub, err := parseSubdigest(subdigest)
	if err != nil {
		return Result{}, err
	}

	signer, err := walletconfig.RecoverSigner(sub, blob)
	if err != nil {
		return Result{}, err
	}

	inserted, err := i.store.PutSignature(sub.Hex(), hexutil.Encode(blob))
	if err != nil {
		return Result{}, err
	}

	if inserted {
		i.logger.Info().
			Str("subdigest", sub.Hex()).
			Str("signer", signer.Hex()).
			Msg("recorded signature")
	}
	return Result{Accepted: inserted, Signer: signer}, nil
}

// IngestHex is Ingest for a hex-encoded blob, the wire representation.
func (i *Ingestor) IngestHex(subdigest, blobHex string) (Result, error) {
	blob, err := hexutil.Decode(blobHex)
	if err != nil {
		return Result{}, engerr.NewInvalidSignatureError("signature blob is not hex", err)
	}
	return i.Ingest(subdigest, blob)
}

func parseSubdigest(s string) (common.Hash, error) {
	raw, err := hexutil.Decode(s)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, engerr.NewValidationError("subdigest %q is not a 32-byte hex value", s)
	}
	return common.BytesToHash(raw), nil
}
