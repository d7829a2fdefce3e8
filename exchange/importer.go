package exchange

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/enchanter-io/enchanter/digest"
	"github.com/enchanter-io/enchanter/entitystore"
	engerr "github.com/enchanter-io/enchanter/errors"
	"github.com/enchanter-io/enchanter/ingest"
)

// UpdateResolver resolves a wire update reference into a full entry,
// filling in the target configuration's checkpoint. Implemented by the
// tracker client.
type UpdateResolver interface {
	ResolveUpdate(ctx context.Context, wallet, imageHash string) (digest.UpdateEntry, error)
}

// Counts reports how many new records each kind of merge produced,
// distinguishing "nothing new" from partial or total success.
type Counts struct {
	Transactions int
	Messages     int
	Updates      int
	Signatures   int

	// SkippedSignatures counts blobs that failed signer recovery during
	// the write stage. Shape validation cannot catch these; they are
	// skipped per-entity rather than rolling back the rest.
	SkippedSignatures int
}

// Total returns the number of newly-inserted records.
func (c Counts) Total() int {
	return c.Transactions + c.Messages + c.Updates + c.Signatures
}

// Importer merges exchange payloads into the entity store.
type Importer struct {
	store    *entitystore.Store
	ingestor *ingest.Ingestor
	resolver UpdateResolver
	logger   zerolog.Logger
}

// NewImporter creates an importer. The resolver may be nil, in which
// case payloads carrying update references are rejected.
func NewImporter(store *entitystore.Store, ingestor *ingest.Ingestor, resolver UpdateResolver, logger zerolog.Logger) *Importer {
	return &Importer{
		store:    store,
		ingestor: ingestor,
		resolver: resolver,
		logger:   logger.With().Str("component", "importer").Logger(),
	}
}

// Import validates a payload and merges it. Validation is all-or-
// nothing; the write stage is best-effort per entity, where the only
// non-fatal failures are benign duplicates and unrecoverable signature
// blobs. Storage errors abort and propagate. Re-importing the same
// payload is a no-op, and importing two payloads in either order yields
// the same store state.
func (im *Importer) Import(ctx context.Context, data []byte) (Counts, error) {
	payload, err := Parse(data)
	if err != nil {
		return Counts{}, err
	}
	return im.Merge(ctx, payload)
}

// Merge applies an already-validated payload.
func (im *Importer) Merge(ctx context.Context, payload *Payload) (Counts, error) {
	var counts Counts

	for _, tx := range payload.Transactions {
		inserted, _, err := im.store.PutTransaction(tx)
		if err != nil {
			return counts, err
		}
		if inserted {
			counts.Transactions++
		}
	}

	for _, msg := range payload.Messages {
		inserted, _, err := im.store.PutMessage(msg)
		if err != nil {
			return counts, err
		}
		if inserted {
			counts.Messages++
		}
	}

	for _, ref := range payload.Updates {
		if im.resolver == nil {
			return counts, engerr.NewIncompleteConfigError("no resolver available for configuration updates")
		}
		entry, err := im.resolver.ResolveUpdate(ctx, ref.Wallet, ref.ImageHash)
		if err != nil {
			return counts, err
		}
		inserted, _, err := im.store.PutUpdate(entry)
		if err != nil {
			return counts, err
		}
		if inserted {
			counts.Updates++
		}
	}

	for sub, blobs := range payload.Signatures {
		for _, blob := range blobs {
			res, err := im.ingestor.IngestHex(sub, blob)
			if err != nil {
				if engerr.IsInvalidSignature(err) {
					im.logger.Warn().
						Str("subdigest", sub).
						Err(err).
						Msg("skipping signature that failed recovery")
					counts.SkippedSignatures++
					continue
				}
				return counts, err
			}
			if res.Accepted {
				counts.Signatures++
			}
		}
	}

	im.logger.Info().
		Int("transactions", counts.Transactions).
		Int("messages", counts.Messages).
		Int("updates", counts.Updates).
		Int("signatures", counts.Signatures).
		Int("skipped_signatures", counts.SkippedSignatures).
		Msg("merged payload")
	return counts, nil
}
