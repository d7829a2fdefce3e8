// Package entitystore persists the engine's content-keyed entities:
// transaction bundles, messages, configuration updates, signatures and
// known wallets. Every insert is idempotent on the entity's subdigest
// (or (subdigest, signature) pair): the unique index at the storage
// layer makes concurrent duplicate inserts a correctness-safe no-op
// rather than a race.
package entitystore

import (
	"encoding/json"
	"time"

	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/enchanter-io/enchanter/db"
	"github.com/enchanter-io/enchanter/digest"
	engerr "github.com/enchanter-io/enchanter/errors"
	"github.com/enchanter-io/enchanter/store"
)

// Store provides database access for coordination entities.
type Store struct {
	db       *gorm.DB
	notifier *Notifier
	logger   zerolog.Logger
}

// NewStore creates a new entity store over an opened database.
func NewStore(database *db.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:       database.Client(),
		notifier: NewNotifier(logger),
		logger:   logger.With().Str("component", "entity_store").Logger(),
	}
}

// Subscribe registers for change events of one kind (or KindAll).
func (s *Store) Subscribe(kind Kind) (SubscriberID, <-chan ChangeEvent) {
	return s.notifier.Subscribe(kind)
}

// Unsubscribe removes a prior subscription.
func (s *Store) Unsubscribe(kind Kind, id SubscriberID) {
	s.notifier.Unsubscribe(kind, id)
}

// create runs an insert and classifies its outcome: (true, nil) on first
// insert, (false, nil) on a duplicate-key hit, storage error otherwise.
// Duplicate detection relies on the unique index and gorm's error
// translation, never on a read-before-write.
func (s *Store) create(record any, what string) (bool, error) {
	err := s.db.Create(record).Error
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return false, engerr.NewStorageError(what, errors.Wrap(err, "insert failed"))
}

// PutTransaction inserts a transaction bundle, computing its subdigest.
// Returns the subdigest and whether a new record was written.
func (s *Store) PutTransaction(entry digest.TransactionEntry) (bool, string, error) {
	sub, err := entry.Subdigest()
	if err != nil {
		return false, "", err
	}

	calls, err := json.Marshal(entry.Transactions)
	if err != nil {
		return false, "", engerr.NewStorageError("failed to encode calls", err)
	}

	record := store.Transaction{
		Subdigest: sub.Hex(),
		Wallet:    entry.Wallet,
		Space:     entry.Space,
		Nonce:     entry.Nonce,
		ChainID:   entry.ChainID,
		Calls:     calls,
		FirstSeen: time.Now().Unix(),
	}
	inserted, err := s.create(&record, "transaction insert")
	if err != nil {
		return false, "", err
	}
	if inserted {
		s.logger.Info().Str("subdigest", sub.Hex()).Str("wallet", entry.Wallet).Msg("stored new transaction")
		s.notifier.Publish(KindTransaction, sub.Hex())
	}
	return inserted, sub.Hex(), nil
}

// GetTransaction returns a stored transaction bundle by subdigest.
func (s *Store) GetTransaction(subdigest string) (*digest.TransactionEntry, error) {
	var record store.Transaction
	if err := s.db.Where("subdigest = ?", subdigest).First(&record).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engerr.NewNotFoundError("transaction %s not found", subdigest)
		}
		return nil, engerr.NewStorageError("transaction lookup failed", err)
	}
	return transactionEntry(&record)
}

// TransactionFirstSeen returns the local first-seen time of a
// transaction, used to anchor receipt log scans.
func (s *Store) TransactionFirstSeen(subdigest string) (time.Time, error) {
	var record store.Transaction
	if err := s.db.Where("subdigest = ?", subdigest).First(&record).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, engerr.NewNotFoundError("transaction %s not found", subdigest)
		}
		return time.Time{}, engerr.NewStorageError("transaction lookup failed", err)
	}
	return time.Unix(record.FirstSeen, 0), nil
}

// ListTransactions returns a wallet's transactions, most recently
// inserted first. Ordering reflects local insertion, not causal order.
func (s *Store) ListTransactions(wallet string) ([]digest.TransactionEntry, error) {
	var records []store.Transaction
	if err := s.db.Where("wallet = ?", wallet).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, engerr.NewStorageError("transaction list failed", err)
	}
	entries := make([]digest.TransactionEntry, 0, len(records))
	for i := range records {
		entry, err := transactionEntry(&records[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func transactionEntry(record *store.Transaction) (*digest.TransactionEntry, error) {
	var calls []digest.Call
	if err := json.Unmarshal(record.Calls, &calls); err != nil {
		return nil, engerr.NewStorageError("corrupt call encoding", err)
	}
	return &digest.TransactionEntry{
		Wallet:       record.Wallet,
		Space:        record.Space,
		Nonce:        record.Nonce,
		ChainID:      record.ChainID,
		Transactions: calls,
	}, nil
}

// PutMessage inserts a message, computing its digest and subdigest.
func (s *Store) PutMessage(entry digest.MessageEntry) (bool, string, error) {
	sub, err := entry.Subdigest()
	if err != nil {
		return false, "", err
	}

	record := store.Message{
		Subdigest: sub.Hex(),
		Wallet:    entry.Wallet,
		ChainID:   entry.ChainID,
		Raw:       entry.Raw,
		Digest:    entry.Digest().Hex(),
		FirstSeen: time.Now().Unix(),
	}
	inserted, err := s.create(&record, "message insert")
	if err != nil {
		return false, "", err
	}
	if inserted {
		s.logger.Info().Str("subdigest", sub.Hex()).Str("wallet", entry.Wallet).Msg("stored new message")
		s.notifier.Publish(KindMessage, sub.Hex())
	}
	return inserted, sub.Hex(), nil
}

// GetMessage returns a stored message by subdigest.
func (s *Store) GetMessage(subdigest string) (*digest.MessageEntry, error) {
	var record store.Message
	if err := s.db.Where("subdigest = ?", subdigest).First(&record).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engerr.NewNotFoundError("message %s not found", subdigest)
		}
		return nil, engerr.NewStorageError("message lookup failed", err)
	}
	return &digest.MessageEntry{
		Wallet:  record.Wallet,
		ChainID: record.ChainID,
		Raw:     record.Raw,
	}, nil
}

// MessageFirstSeen returns the local first-seen time of a message.
func (s *Store) MessageFirstSeen(subdigest string) (time.Time, error) {
	var record store.Message
	if err := s.db.Where("subdigest = ?", subdigest).First(&record).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, engerr.NewNotFoundError("message %s not found", subdigest)
		}
		return time.Time{}, engerr.NewStorageError("message lookup failed", err)
	}
	return time.Unix(record.FirstSeen, 0), nil
}

// ListMessages returns a wallet's messages, most recently inserted first.
func (s *Store) ListMessages(wallet string) ([]digest.MessageEntry, error) {
	var records []store.Message
	if err := s.db.Where("wallet = ?", wallet).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, engerr.NewStorageError("message list failed", err)
	}
	entries := make([]digest.MessageEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, digest.MessageEntry{
			Wallet:  record.Wallet,
			ChainID: record.ChainID,
			Raw:     record.Raw,
		})
	}
	return entries, nil
}

// PutUpdate inserts a fully-resolved configuration update.
func (s *Store) PutUpdate(entry digest.UpdateEntry) (bool, string, error) {
	sub, err := entry.Subdigest()
	if err != nil {
		return false, "", err
	}

	record := store.Update{
		Subdigest:  sub.Hex(),
		Wallet:     entry.Wallet,
		ImageHash:  entry.ImageHash,
		Checkpoint: entry.Checkpoint,
	}
	inserted, err := s.create(&record, "update insert")
	if err != nil {
		return false, "", err
	}
	if inserted {
		s.logger.Info().
			Str("subdigest", sub.Hex()).
			Str("wallet", entry.Wallet).
			Uint64("checkpoint", entry.Checkpoint).
			Msg("stored new configuration update")
		s.notifier.Publish(KindUpdate, sub.Hex())
	}
	return inserted, sub.Hex(), nil
}

// GetUpdate returns a stored configuration update by subdigest.
func (s *Store) GetUpdate(subdigest string) (*digest.UpdateEntry, error) {
	var record store.Update
	if err := s.db.Where("subdigest = ?", subdigest).First(&record).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engerr.NewNotFoundError("update %s not found", subdigest)
		}
		return nil, engerr.NewStorageError("update lookup failed", err)
	}
	return &digest.UpdateEntry{
		Wallet:     record.Wallet,
		ImageHash:  record.ImageHash,
		Checkpoint: record.Checkpoint,
	}, nil
}

// ListUpdates returns a wallet's updates, most recently inserted first.
func (s *Store) ListUpdates(wallet string) ([]digest.UpdateEntry, error) {
	var records []store.Update
	if err := s.db.Where("wallet = ?", wallet).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, engerr.NewStorageError("update list failed", err)
	}
	entries := make([]digest.UpdateEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, digest.UpdateEntry{
			Wallet:     record.Wallet,
			ImageHash:  record.ImageHash,
			Checkpoint: record.Checkpoint,
		})
	}
	return entries, nil
}

// PutSignature inserts a raw signature blob for a subdigest. Callers are
// expected to have validated the blob via signer recovery first; this
// method only enforces (subdigest, signature) uniqueness.
func (s *Store) PutSignature(subdigest, signature string) (bool, error) {
	record := store.Signature{
		Subdigest: subdigest,
		Signature: signature,
	}
	inserted, err := s.create(&record, "signature insert")
	if err != nil {
		return false, err
	}
	if inserted {
		s.notifier.Publish(KindSignature, subdigest)
	}
	return inserted, nil
}

// ListSignatures returns all signature blobs attached to a subdigest, in
// insertion order.
func (s *Store) ListSignatures(subdigest string) ([]string, error) {
	var records []store.Signature
	if err := s.db.Where("subdigest = ?", subdigest).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, engerr.NewStorageError("signature list failed", err)
	}
	blobs := make([]string, 0, len(records))
	for _, record := range records {
		blobs = append(blobs, record.Signature)
	}
	return blobs, nil
}

// PutWallet records a locally known wallet address.
func (s *Store) PutWallet(address, name string) (bool, error) {
	record := store.Wallet{
		Address: address,
		Name:    name,
	}
	inserted, err := s.create(&record, "wallet insert")
	if err != nil {
		return false, err
	}
	if inserted {
		s.notifier.Publish(KindWallet, address)
	}
	return inserted, nil
}

// RenameWallet sets the display name of a known wallet.
func (s *Store) RenameWallet(address, name string) error {
	result := s.db.Model(&store.Wallet{}).
		Where("address = ?", address).
		Update("name", name)
	if result.Error != nil {
		return engerr.NewStorageError("wallet rename failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return engerr.NewNotFoundError("wallet %s not found", address)
	}
	s.notifier.Publish(KindWallet, address)
	return nil
}

// ListWallets returns all locally known wallets, most recent first.
func (s *Store) ListWallets() ([]store.Wallet, error) {
	var records []store.Wallet
	if err := s.db.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, engerr.NewStorageError("wallet list failed", err)
	}
	return records, nil
}
