package digest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	engerr "github.com/enchanter-io/enchanter/errors"
)

// Call is one call within a transaction bundle. All numeric fields are
// decimal or 0x-hex strings so the JSON wire shape stays loss-free for
// uint256 values.
type Call struct {
	To            string `json:"to"`
	Value         string `json:"value,omitempty"`
	Data          string `json:"data,omitempty"`
	GasLimit      string `json:"gasLimit,omitempty"`
	DelegateCall  bool   `json:"delegateCall,omitempty"`
	RevertOnError bool   `json:"revertOnError,omitempty"`
}

// Validate checks the structural shape of a call.
func (c Call) Validate() error {
	if !common.IsHexAddress(c.To) {
		return engerr.NewValidationError("call target %q is not an address", c.To)
	}
	if c.Value != "" {
		if _, err := ParseBig(c.Value); err != nil {
			return err
		}
	}
	if c.GasLimit != "" {
		if _, err := ParseBig(c.GasLimit); err != nil {
			return err
		}
	}
	if c.Data != "" {
		if _, err := hexutil.Decode(c.Data); err != nil {
			return engerr.NewValidationError("call data %q is not hex: %v", c.Data, err)
		}
	}
	return nil
}

func (c Call) packed() (packedCall, error) {
	if err := c.Validate(); err != nil {
		return packedCall{}, err
	}
	value := new(big.Int)
	if c.Value != "" {
		value, _ = ParseBig(c.Value)
	}
	gasLimit := new(big.Int)
	if c.GasLimit != "" {
		gasLimit, _ = ParseBig(c.GasLimit)
	}
	var data []byte
	if c.Data != "" {
		data, _ = hexutil.Decode(c.Data)
	}
	return packedCall{
		DelegateCall:  c.DelegateCall,
		RevertOnError: c.RevertOnError,
		GasLimit:      gasLimit,
		Target:        common.HexToAddress(c.To),
		Value:         value,
		Data:          data,
	}, nil
}

// TransactionEntry is a proposed call bundle for a multisig wallet.
// Its subdigest is a pure function of all fields below.
type TransactionEntry struct {
	Wallet       string `json:"wallet"`
	Space        string `json:"space"`
	Nonce        string `json:"nonce"`
	ChainID      string `json:"chainId"`
	Transactions []Call `json:"transactions"`
}

// Validate checks the structural shape of the entry.
func (e TransactionEntry) Validate() error {
	if !common.IsHexAddress(e.Wallet) {
		return engerr.NewValidationError("wallet %q is not an address", e.Wallet)
	}
	if _, err := EncodeNonce(e.Space, e.Nonce); err != nil {
		return err
	}
	if _, err := ParseBig(e.ChainID); err != nil {
		return err
	}
	if len(e.Transactions) == 0 {
		return engerr.NewValidationError("transaction bundle has no calls")
	}
	for _, c := range e.Transactions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Digest hashes the encoded nonce together with the call bundle.
func (e TransactionEntry) Digest() (common.Hash, error) {
	nonce, err := EncodeNonce(e.Space, e.Nonce)
	if err != nil {
		return common.Hash{}, err
	}
	packed := make([]packedCall, 0, len(e.Transactions))
	for _, c := range e.Transactions {
		p, err := c.packed()
		if err != nil {
			return common.Hash{}, err
		}
		packed = append(packed, p)
	}
	encoded, err := metaTxArgs.Pack(nonce, packed)
	if err != nil {
		return common.Hash{}, engerr.NewValidationError("failed to encode call bundle: %v", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// Subdigest binds the bundle digest to the entry's chain and wallet.
func (e TransactionEntry) Subdigest() (common.Hash, error) {
	d, err := e.Digest()
	if err != nil {
		return common.Hash{}, err
	}
	chainID, err := ParseBig(e.ChainID)
	if err != nil {
		return common.Hash{}, err
	}
	return Subdigest(d, chainID, common.HexToAddress(e.Wallet)), nil
}

// MessageEntry is a payload to be signed by the wallet.
type MessageEntry struct {
	Wallet  string `json:"wallet"`
	ChainID string `json:"chainId"`
	Raw     string `json:"raw"`
}

// Validate checks the structural shape of the entry.
func (e MessageEntry) Validate() error {
	if !common.IsHexAddress(e.Wallet) {
		return engerr.NewValidationError("wallet %q is not an address", e.Wallet)
	}
	if _, err := ParseBig(e.ChainID); err != nil {
		return err
	}
	if e.Raw == "" {
		return engerr.NewValidationError("message payload is empty")
	}
	return nil
}

// Digest returns the personal-sign hash of the raw payload.
func (e MessageEntry) Digest() common.Hash {
	return MessageDigest(e.Raw)
}

// Subdigest binds the message digest to the entry's chain and wallet.
func (e MessageEntry) Subdigest() (common.Hash, error) {
	if err := e.Validate(); err != nil {
		return common.Hash{}, err
	}
	chainID, _ := ParseBig(e.ChainID)
	return Subdigest(e.Digest(), chainID, common.HexToAddress(e.Wallet)), nil
}

// UpdateEntry is a fully-resolved configuration update proposal.
// Updates are signed chain-agnostically, so the subdigest binds the
// struct hash at chain id zero.
type UpdateEntry struct {
	Wallet     string `json:"wallet"`
	ImageHash  string `json:"imageHash"`
	Checkpoint uint64 `json:"checkpoint"`
}

// Validate checks the structural shape of the entry.
func (e UpdateEntry) Validate() error {
	if !common.IsHexAddress(e.Wallet) {
		return engerr.NewValidationError("wallet %q is not an address", e.Wallet)
	}
	raw, err := hexutil.Decode(e.ImageHash)
	if err != nil || len(raw) != common.HashLength {
		return engerr.NewValidationError("image hash %q is not a 32-byte hex value", e.ImageHash)
	}
	return nil
}

// Subdigest binds the SetImageHash struct hash to the wallet at chain id
// zero.
func (e UpdateEntry) Subdigest() (common.Hash, error) {
	if err := e.Validate(); err != nil {
		return common.Hash{}, err
	}
	structHash := SetImageHashDigest(common.HexToHash(e.ImageHash))
	return Subdigest(structHash, new(big.Int), common.HexToAddress(e.Wallet)), nil
}
