// Package walletconfig models multisig wallet configurations: the signer
// set with per-signer weights, the execution threshold, and the
// checkpoint version counter. It also carries the cryptographic coder
// for configurations (image hashing and signer recovery) consumed by the
// rest of the engine through these functions alone.
package walletconfig

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	engerr "github.com/enchanter-io/enchanter/errors"
)

// Signer is one configuration member with its voting weight.
type Signer struct {
	Address string `json:"address"`
	Weight  uint32 `json:"weight"`
}

// Config is a full wallet configuration.
//
// Signer addresses are assumed unique within one configuration; the
// behavior of duplicate addresses with differing weights is undefined at
// this boundary and the engine takes the first occurrence per address.
type Config struct {
	Threshold  uint32   `json:"threshold"`
	Checkpoint uint64   `json:"checkpoint"`
	Signers    []Signer `json:"signers"`
}

// Validate checks the structural shape of the configuration.
func (c *Config) Validate() error {
	if c.Threshold == 0 {
		return engerr.NewValidationError("configuration threshold is zero")
	}
	if len(c.Signers) == 0 {
		return engerr.NewValidationError("configuration has no signers")
	}
	for _, s := range c.Signers {
		if !common.IsHexAddress(s.Address) {
			return engerr.NewValidationError("signer %q is not an address", s.Address)
		}
	}
	return nil
}

// SignersOf returns the signer set of a configuration.
func SignersOf(c *Config) []Signer {
	return c.Signers
}

// ThresholdOf returns the execution threshold of a configuration.
func ThresholdOf(c *Config) uint32 {
	return c.Threshold
}

// CheckpointOf returns the checkpoint version of a configuration.
func CheckpointOf(c *Config) uint64 {
	return c.Checkpoint
}

// ImageHash computes the content hash identifying a full configuration:
// a keccak fold over (threshold, signers...) bound to the checkpoint.
func ImageHash(c *Config) common.Hash {
	ih := crypto.Keccak256Hash(pad32(uint64(c.Threshold)))
	for _, s := range c.Signers {
		ih = crypto.Keccak256Hash(
			ih.Bytes(),
			pad32(uint64(s.Weight)),
			common.LeftPadBytes(common.HexToAddress(s.Address).Bytes(), 32),
		)
	}
	return crypto.Keccak256Hash(ih.Bytes(), pad32(c.Checkpoint))
}

// WeightOf returns the weight of the first configuration entry matching
// the address, or zero if the address is not a member.
func (c *Config) WeightOf(addr common.Address) uint32 {
	for _, s := range c.Signers {
		if common.HexToAddress(s.Address) == addr {
			return s.Weight
		}
	}
	return 0
}

func pad32(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}
