package entitystore

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enchanter-io/enchanter/db"
	"github.com/enchanter-io/enchanter/digest"
	engerr "github.com/enchanter-io/enchanter/errors"
)

func setupTestStore(t *testing.T) *Store {
	database, err := db.OpenInMemoryDB()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return NewStore(database, zerolog.Nop())
}

func testTransaction() digest.TransactionEntry {
	return digest.TransactionEntry{
		Wallet:  "0x1111111111111111111111111111111111111111",
		Space:   "0",
		Nonce:   "1",
		ChainID: "1",
		Transactions: []digest.Call{
			{To: "0x2222222222222222222222222222222222222222", Value: "1"},
		},
	}
}

func TestPutTransactionIdempotent(t *testing.T) {
	s := setupTestStore(t)
	entry := testTransaction()

	inserted, sub, err := s.PutTransaction(entry)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, sub)

	inserted, sub2, err := s.PutTransaction(entry)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, sub, sub2)

	txs, err := s.ListTransactions(entry.Wallet)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestGetTransactionRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	entry := testTransaction()

	_, sub, err := s.PutTransaction(entry)
	require.NoError(t, err)

	got, err := s.GetTransaction(sub)
	require.NoError(t, err)
	assert.Equal(t, entry, *got)

	gotSub, err := got.Subdigest()
	require.NoError(t, err)
	assert.Equal(t, sub, gotSub.Hex())
}

func TestGetTransactionNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetTransaction("0xdeadbeef")
	require.Error(t, err)
	assert.True(t, engerr.IsNotFound(err))
}

func TestPutTransactionRejectsMalformed(t *testing.T) {
	s := setupTestStore(t)
	entry := testTransaction()
	entry.Wallet = "not-an-address"

	_, _, err := s.PutTransaction(entry)
	require.Error(t, err)
	assert.True(t, engerr.IsValidation(err))
}

func TestMessageLifecycle(t *testing.T) {
	s := setupTestStore(t)
	entry := digest.MessageEntry{
		Wallet:  "0x1111111111111111111111111111111111111111",
		ChainID: "1",
		Raw:     "approve the thing",
	}

	inserted, sub, err := s.PutMessage(entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, _, err = s.PutMessage(entry)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.GetMessage(sub)
	require.NoError(t, err)
	assert.Equal(t, entry, *got)

	msgs, err := s.ListMessages(entry.Wallet)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestUpdateLifecycle(t *testing.T) {
	s := setupTestStore(t)
	entry := digest.UpdateEntry{
		Wallet:     "0x1111111111111111111111111111111111111111",
		ImageHash:  "0x5555555555555555555555555555555555555555555555555555555555555555",
		Checkpoint: 7,
	}

	inserted, sub, err := s.PutUpdate(entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, _, err = s.PutUpdate(entry)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.GetUpdate(sub)
	require.NoError(t, err)
	assert.Equal(t, entry, *got)
}

func TestSignatureUniquenessOnPair(t *testing.T) {
	s := setupTestStore(t)
	sub := "0x6666666666666666666666666666666666666666666666666666666666666666"

	inserted, err := s.PutSignature(sub, "0xaaaa")
	require.NoError(t, err)
	assert.True(t, inserted)

	// byte-identical resubmission is a no-op
	inserted, err = s.PutSignature(sub, "0xaaaa")
	require.NoError(t, err)
	assert.False(t, inserted)

	// a different blob for the same subdigest is a new record
	inserted, err = s.PutSignature(sub, "0xbbbb")
	require.NoError(t, err)
	assert.True(t, inserted)

	sigs, err := s.ListSignatures(sub)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaaaa", "0xbbbb"}, sigs)
}

func TestSignaturesBeforeEntityAreKept(t *testing.T) {
	s := setupTestStore(t)
	entry := testTransaction()
	sub, err := entry.Subdigest()
	require.NoError(t, err)

	// signature arrives first, its target action later
	inserted, err := s.PutSignature(sub.Hex(), "0xcccc")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, _, err = s.PutTransaction(entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	sigs, err := s.ListSignatures(sub.Hex())
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}

func TestFirstSeenRecorded(t *testing.T) {
	s := setupTestStore(t)
	before := time.Now().Add(-time.Second)

	_, txSub, err := s.PutTransaction(testTransaction())
	require.NoError(t, err)

	txSeen, err := s.TransactionFirstSeen(txSub)
	require.NoError(t, err)
	assert.True(t, txSeen.After(before))
	assert.True(t, txSeen.Before(time.Now().Add(time.Second)))

	// a duplicate put keeps the original timestamp
	_, _, err = s.PutTransaction(testTransaction())
	require.NoError(t, err)
	again, err := s.TransactionFirstSeen(txSub)
	require.NoError(t, err)
	assert.Equal(t, txSeen, again)

	_, msgSub, err := s.PutMessage(digest.MessageEntry{
		Wallet:  "0x1111111111111111111111111111111111111111",
		ChainID: "1",
		Raw:     "approve the thing",
	})
	require.NoError(t, err)

	msgSeen, err := s.MessageFirstSeen(msgSub)
	require.NoError(t, err)
	assert.True(t, msgSeen.After(before))

	_, err = s.TransactionFirstSeen("0xdeadbeef")
	assert.True(t, engerr.IsNotFound(err))
	_, err = s.MessageFirstSeen("0xdeadbeef")
	assert.True(t, engerr.IsNotFound(err))
}

func TestWalletRegistry(t *testing.T) {
	s := setupTestStore(t)

	inserted, err := s.PutWallet("0x1111111111111111111111111111111111111111", "treasury")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.PutWallet("0x1111111111111111111111111111111111111111", "other")
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, s.RenameWallet("0x1111111111111111111111111111111111111111", "ops"))

	err = s.RenameWallet("0x9999999999999999999999999999999999999999", "nope")
	require.Error(t, err)
	assert.True(t, engerr.IsNotFound(err))

	wallets, err := s.ListWallets()
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "ops", wallets[0].Name)
}

func TestChangeNotifications(t *testing.T) {
	s := setupTestStore(t)

	_, txCh := s.Subscribe(KindTransaction)
	_, allCh := s.Subscribe(KindAll)

	_, sub, err := s.PutTransaction(testTransaction())
	require.NoError(t, err)

	select {
	case evt := <-txCh:
		assert.Equal(t, KindTransaction, evt.Kind)
		assert.Equal(t, sub, evt.Subdigest)
	case <-time.After(time.Second):
		t.Fatal("no change event delivered to kind subscriber")
	}

	select {
	case evt := <-allCh:
		assert.Equal(t, KindTransaction, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("no change event delivered to all-kinds subscriber")
	}

	// duplicate insert emits nothing
	_, _, err = s.PutTransaction(testTransaction())
	require.NoError(t, err)
	select {
	case <-txCh:
		t.Fatal("duplicate insert must not emit a change event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := setupTestStore(t)

	id, ch := s.Subscribe(KindMessage)
	s.Unsubscribe(KindMessage, id)

	_, ok := <-ch
	assert.False(t, ok)
}
