// Package digest implements the content addressing shared by every
// entity the engine coordinates. Each entity kind hashes its fields into
// a 32-byte digest, then binds the digest to a chain id and wallet
// address to produce the subdigest that serves as the global
// deduplication and correlation key.
//
// The three entity kinds use distinct hash-input prefixes (meta
// transaction encoding, EIP-191 personal sign, SetImageHash struct hash
// bound at chain id zero), so their subdigest spaces never collide even
// if underlying bytes coincide.
package digest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	engerr "github.com/enchanter-io/enchanter/errors"
)

var (
	uint256Type abi.Type
	callsType   abi.Type
	metaTxArgs  abi.Arguments

	// setImageHashPrefix is the type hash of the configuration update
	// struct: keccak256("SetImageHash(bytes32 imageHash)").
	setImageHashPrefix = crypto.Keccak256Hash([]byte("SetImageHash(bytes32 imageHash)"))
)

func init() {
	var err error
	uint256Type, err = abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	callsType, err = abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "delegateCall", Type: "bool"},
		{Name: "revertOnError", Type: "bool"},
		{Name: "gasLimit", Type: "uint256"},
		{Name: "target", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "data", Type: "bytes"},
	})
	if err != nil {
		panic(err)
	}
	metaTxArgs = abi.Arguments{{Type: uint256Type}, {Type: callsType}}
}

// packedCall mirrors the on-chain meta transaction tuple layout.
type packedCall struct {
	DelegateCall  bool
	RevertOnError bool
	GasLimit      *big.Int
	Target        common.Address
	Value         *big.Int
	Data          []byte
}

// ParseBig parses a decimal or 0x-hex numeric string into a non-negative
// big integer.
func ParseBig(s string) (*big.Int, error) {
	if s == "" {
		return nil, engerr.NewValidationError("empty numeric value")
	}
	base := 10
	digits := s
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		base = 16
		digits = s[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, engerr.NewValidationError("malformed numeric value %q", s)
	}
	if v.Sign() < 0 {
		return nil, engerr.NewValidationError("negative numeric value %q", s)
	}
	return v, nil
}

// EncodeNonce combines a nonce space and a nonce into the single uint256
// slot coordinate used by the wallet contract: space << 96 | nonce.
// The space must fit in 160 bits and the nonce in 96 bits; out-of-range
// values fail fast instead of silently wrapping.
func EncodeNonce(space, nonce string) (*big.Int, error) {
	s, err := ParseBig(space)
	if err != nil {
		return nil, err
	}
	n, err := ParseBig(nonce)
	if err != nil {
		return nil, err
	}
	if s.BitLen() > 160 {
		return nil, engerr.NewValidationError("nonce space %s exceeds 160 bits", space)
	}
	if n.BitLen() > 96 {
		return nil, engerr.NewValidationError("nonce %s exceeds 96 bits", nonce)
	}
	return new(big.Int).Or(new(big.Int).Lsh(s, 96), n), nil
}

// Subdigest binds a digest to a chain id and wallet address:
// keccak256("\x19\x01" ‖ uint256(chainId) ‖ wallet ‖ digest).
func Subdigest(d common.Hash, chainID *big.Int, wallet common.Address) common.Hash {
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		common.LeftPadBytes(chainID.Bytes(), 32),
		wallet.Bytes(),
		d.Bytes(),
	)
}

// MessageDigest returns the EIP-191 personal-sign hash of a raw payload.
func MessageDigest(raw string) common.Hash {
	return common.BytesToHash(accounts.TextHash([]byte(raw)))
}

// SetImageHashDigest returns the struct hash of a configuration update
// targeting the given image hash.
func SetImageHashDigest(imageHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(setImageHashPrefix.Bytes(), imageHash.Bytes())
}
