package exchange

import (
	"github.com/enchanter-io/enchanter/digest"
	"github.com/enchanter-io/enchanter/entitystore"
)

// Exporter bundles one entity with all of its gathered signatures into
// the wire format, the inverse of one slice of import.
type Exporter struct {
	store *entitystore.Store
}

// NewExporter creates an exporter over the given store.
func NewExporter(store *entitystore.Store) *Exporter {
	return &Exporter{store: store}
}

// ExportTransaction bundles a stored transaction and its signatures.
func (e *Exporter) ExportTransaction(subdigest string) (*Payload, error) {
	entry, err := e.store.GetTransaction(subdigest)
	if err != nil {
		return nil, err
	}
	payload := &Payload{
		Transactions: []digest.TransactionEntry{*entry},
	}
	return e.attachSignatures(payload, subdigest)
}

// ExportMessage bundles a stored message and its signatures.
func (e *Exporter) ExportMessage(subdigest string) (*Payload, error) {
	entry, err := e.store.GetMessage(subdigest)
	if err != nil {
		return nil, err
	}
	payload := &Payload{
		Messages: []digest.MessageEntry{*entry},
	}
	return e.attachSignatures(payload, subdigest)
}

// ExportUpdate bundles a stored configuration update and its signatures.
// The update travels as a wire reference; the importer re-resolves the
// checkpoint through the tracker.
func (e *Exporter) ExportUpdate(subdigest string) (*Payload, error) {
	entry, err := e.store.GetUpdate(subdigest)
	if err != nil {
		return nil, err
	}
	payload := &Payload{
		Updates: []UpdateRef{{Wallet: entry.Wallet, ImageHash: entry.ImageHash}},
	}
	return e.attachSignatures(payload, subdigest)
}

func (e *Exporter) attachSignatures(payload *Payload, subdigest string) (*Payload, error) {
	sigs, err := e.store.ListSignatures(subdigest)
	if err != nil {
		return nil, err
	}
	if len(sigs) > 0 {
		payload.Signatures = map[string][]string{subdigest: sigs}
	}
	return payload, nil
}
