package exchange

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enchanter-io/enchanter/db"
	"github.com/enchanter-io/enchanter/digest"
	"github.com/enchanter-io/enchanter/entitystore"
	engerr "github.com/enchanter-io/enchanter/errors"
	"github.com/enchanter-io/enchanter/ingest"
	"github.com/enchanter-io/enchanter/walletconfig"
)

const testWallet = "0x1111111111111111111111111111111111111111"

type fixture struct {
	store    *entitystore.Store
	importer *Importer
	exporter *Exporter
}

func setupFixture(t *testing.T, resolver UpdateResolver) *fixture {
	t.Helper()
	database, err := db.OpenInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	st := entitystore.NewStore(database, zerolog.Nop())
	ing := ingest.New(st, zerolog.Nop())
	return &fixture{
		store:    st,
		importer: NewImporter(st, ing, resolver, zerolog.Nop()),
		exporter: NewExporter(st),
	}
}

func testEntry() digest.TransactionEntry {
	return digest.TransactionEntry{
		Wallet:  testWallet,
		Space:   "0",
		Nonce:   "3",
		ChainID: "1",
		Transactions: []digest.Call{
			{To: "0x2222222222222222222222222222222222222222", Value: "1000"},
		},
	}
}

func signEntry(t *testing.T, key *ecdsa.PrivateKey, entry digest.TransactionEntry) (string, string) {
	t.Helper()
	sub, err := entry.Subdigest()
	require.NoError(t, err)
	sig, err := crypto.Sign(sub.Bytes(), key)
	require.NoError(t, err)
	sig[64] += 27
	blob := append(sig, walletconfig.SigTypeEIP712)
	return sub.Hex(), hexutil.Encode(blob)
}

func TestImportEntityWithSignature(t *testing.T) {
	f := setupFixture(t, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	entry := testEntry()
	sub, blob := signEntry(t, key, entry)

	payload := &Payload{
		Transactions: []digest.TransactionEntry{entry},
		Signatures:   map[string][]string{sub: {blob}},
	}
	data, err := payload.Encode()
	require.NoError(t, err)

	counts, err := f.importer.Import(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Transactions)
	assert.Equal(t, 1, counts.Signatures)
	assert.Equal(t, 2, counts.Total())

	stored, err := f.store.GetTransaction(sub)
	require.NoError(t, err)
	assert.Equal(t, entry.Wallet, stored.Wallet)

	sigs, err := f.store.ListSignatures(sub)
	require.NoError(t, err)
	assert.Equal(t, []string{blob}, sigs)
}

func TestImportIsIdempotent(t *testing.T) {
	f := setupFixture(t, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	entry := testEntry()
	sub, blob := signEntry(t, key, entry)
	payload := &Payload{
		Transactions: []digest.TransactionEntry{entry},
		Signatures:   map[string][]string{sub: {blob}},
	}

	counts, err := f.importer.Merge(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total())

	counts, err = f.importer.Merge(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total())

	sigs, err := f.store.ListSignatures(sub)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}

func TestImportIsCommutative(t *testing.T) {
	k1, err := crypto.GenerateKey()
	require.NoError(t, err)
	k2, err := crypto.GenerateKey()
	require.NoError(t, err)

	entry := testEntry()
	sub, blob1 := signEntry(t, k1, entry)
	_, blob2 := signEntry(t, k2, entry)

	a := &Payload{
		Transactions: []digest.TransactionEntry{entry},
		Signatures:   map[string][]string{sub: {blob1}},
	}
	b := &Payload{
		Signatures: map[string][]string{sub: {blob2}},
	}

	ab := setupFixture(t, nil)
	_, err = ab.importer.Merge(context.Background(), a)
	require.NoError(t, err)
	_, err = ab.importer.Merge(context.Background(), b)
	require.NoError(t, err)

	ba := setupFixture(t, nil)
	_, err = ba.importer.Merge(context.Background(), b)
	require.NoError(t, err)
	_, err = ba.importer.Merge(context.Background(), a)
	require.NoError(t, err)

	sigsAB, err := ab.store.ListSignatures(sub)
	require.NoError(t, err)
	sigsBA, err := ba.store.ListSignatures(sub)
	require.NoError(t, err)
	assert.ElementsMatch(t, sigsAB, sigsBA)
	assert.Len(t, sigsAB, 2)

	txAB, err := ab.store.GetTransaction(sub)
	require.NoError(t, err)
	txBA, err := ba.store.GetTransaction(sub)
	require.NoError(t, err)
	assert.Equal(t, txAB, txBA)
}

func TestSignaturesBeforeEntityAreKept(t *testing.T) {
	f := setupFixture(t, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	entry := testEntry()
	sub, blob := signEntry(t, key, entry)

	counts, err := f.importer.Merge(context.Background(), &Payload{
		Signatures: map[string][]string{sub: {blob}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Signatures)

	_, err = f.store.GetTransaction(sub)
	assert.True(t, engerr.IsNotFound(err))

	counts, err = f.importer.Merge(context.Background(), &Payload{
		Transactions: []digest.TransactionEntry{entry},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Transactions)

	sigs, err := f.store.ListSignatures(sub)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}

func TestParseFailsClosed(t *testing.T) {
	good := testEntry()
	bad := testEntry()
	bad.Wallet = "nonsense"

	data, err := json.Marshal(Payload{Transactions: []digest.TransactionEntry{good, bad}})
	require.NoError(t, err)

	_, parseErr := Parse(data)
	assert.True(t, engerr.IsValidation(parseErr))

	f := setupFixture(t, nil)
	counts, importErr := f.importer.Import(context.Background(), data)
	assert.Error(t, importErr)
	assert.Equal(t, 0, counts.Total())

	// nothing was admitted, not even the well-formed entry
	sub, err := good.Subdigest()
	require.NoError(t, err)
	_, err = f.store.GetTransaction(sub.Hex())
	assert.True(t, engerr.IsNotFound(err))
}

func TestParseRejectsBadDocuments(t *testing.T) {
	for name, doc := range map[string]string{
		"not json":          "{{{",
		"bad signature key": `{"signatures":{"0x11":["0x22"]}}`,
		"non-hex blob":      `{"signatures":{"0x1111111111111111111111111111111111111111111111111111111111111111":["zz"]}}`,
		"bad update wallet": `{"updates":[{"wallet":"x","imageHash":"0x1111111111111111111111111111111111111111111111111111111111111111"}]}`,
		"short image hash":  `{"updates":[{"wallet":"0x1111111111111111111111111111111111111111","imageHash":"0x11"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.True(t, engerr.IsValidation(err))
		})
	}
}

func TestImportSkipsUnrecoverableBlobs(t *testing.T) {
	f := setupFixture(t, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	entry := testEntry()
	sub, blob := signEntry(t, key, entry)

	counts, err := f.importer.Merge(context.Background(), &Payload{
		Signatures: map[string][]string{sub: {"0x0badc0de", blob}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Signatures)
	assert.Equal(t, 1, counts.SkippedSignatures)

	sigs, err := f.store.ListSignatures(sub)
	require.NoError(t, err)
	assert.Equal(t, []string{blob}, sigs)
}

type staticResolver struct {
	checkpoint uint64
	err        error
}

func (r *staticResolver) ResolveUpdate(_ context.Context, wallet, imageHash string) (digest.UpdateEntry, error) {
	if r.err != nil {
		return digest.UpdateEntry{}, r.err
	}
	return digest.UpdateEntry{Wallet: wallet, ImageHash: imageHash, Checkpoint: r.checkpoint}, nil
}

func TestImportResolvesUpdates(t *testing.T) {
	f := setupFixture(t, &staticResolver{checkpoint: 4})

	imageHash := "0x3333333333333333333333333333333333333333333333333333333333333333"
	counts, err := f.importer.Merge(context.Background(), &Payload{
		Updates: []UpdateRef{{Wallet: testWallet, ImageHash: imageHash}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Updates)

	entry := digest.UpdateEntry{Wallet: testWallet, ImageHash: imageHash, Checkpoint: 4}
	sub, err := entry.Subdigest()
	require.NoError(t, err)

	stored, err := f.store.GetUpdate(sub.Hex())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stored.Checkpoint)
}

func TestImportUpdateWithoutResolverFails(t *testing.T) {
	f := setupFixture(t, nil)
	_, err := f.importer.Merge(context.Background(), &Payload{
		Updates: []UpdateRef{{
			Wallet:    testWallet,
			ImageHash: "0x3333333333333333333333333333333333333333333333333333333333333333",
		}},
	})
	assert.True(t, engerr.IsIncompleteConfig(err))
}

func TestImportUpdateResolutionFailurePropagates(t *testing.T) {
	resolver := &staticResolver{err: engerr.NewIncompleteConfigError("image hash unknown to tracker")}
	f := setupFixture(t, resolver)

	_, err := f.importer.Merge(context.Background(), &Payload{
		Updates: []UpdateRef{{
			Wallet:    testWallet,
			ImageHash: "0x3333333333333333333333333333333333333333333333333333333333333333",
		}},
	})
	assert.True(t, engerr.IsIncompleteConfig(err))
}

func TestExportTransactionRoundTrip(t *testing.T) {
	f := setupFixture(t, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	entry := testEntry()
	sub, blob := signEntry(t, key, entry)
	_, err = f.importer.Merge(context.Background(), &Payload{
		Transactions: []digest.TransactionEntry{entry},
		Signatures:   map[string][]string{sub: {blob}},
	})
	require.NoError(t, err)

	exported, err := f.exporter.ExportTransaction(sub)
	require.NoError(t, err)
	data, err := exported.Encode()
	require.NoError(t, err)

	other := setupFixture(t, nil)
	counts, err := other.importer.Import(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total())

	stored, err := other.store.GetTransaction(sub)
	require.NoError(t, err)
	assert.Equal(t, entry.Transactions, stored.Transactions)
}

func TestExportUpdateTravelsAsReference(t *testing.T) {
	f := setupFixture(t, &staticResolver{checkpoint: 2})

	imageHash := "0x4444444444444444444444444444444444444444444444444444444444444444"
	_, err := f.importer.Merge(context.Background(), &Payload{
		Updates: []UpdateRef{{Wallet: testWallet, ImageHash: imageHash}},
	})
	require.NoError(t, err)

	entry := digest.UpdateEntry{Wallet: testWallet, ImageHash: imageHash, Checkpoint: 2}
	sub, err := entry.Subdigest()
	require.NoError(t, err)

	exported, err := f.exporter.ExportUpdate(sub.Hex())
	require.NoError(t, err)
	require.Len(t, exported.Updates, 1)
	assert.Equal(t, imageHash, exported.Updates[0].ImageHash)
	assert.Empty(t, exported.Signatures)
}

func TestExportUnknownSubdigest(t *testing.T) {
	f := setupFixture(t, nil)
	_, err := f.exporter.ExportTransaction("0x5555555555555555555555555555555555555555555555555555555555555555")
	assert.True(t, engerr.IsNotFound(err))
}

func TestEmptyPayload(t *testing.T) {
	p, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, p.Empty())

	f := setupFixture(t, nil)
	counts, err := f.importer.Merge(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total())
}

func TestFilenameConvention(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 30, 45, 0, time.UTC)
	assert.Equal(t, "enchanter-2024-05-17-093045.json", Filename(now))
	assert.NotContains(t, Filename(now), ":")
}
