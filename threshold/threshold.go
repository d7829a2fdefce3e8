// Package threshold evaluates accumulated signing weight against a
// wallet configuration. Evaluation is a pure function over the current
// signature set: signer recovery is re-derived from each blob rather
// than trusted from storage, so a hostile or buggy import can never
// inflate weight.
package threshold

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/enchanter-io/enchanter/walletconfig"
)

// Evaluation is the weighted-threshold verdict for one subdigest.
type Evaluation struct {
	// SignerWeights maps each recovered configuration member to its weight.
	SignerWeights map[common.Address]uint32

	// TotalWeight is the summed weight of recovered members.
	TotalWeight uint64

	// Threshold is the configuration's required weight.
	Threshold uint64

	// Progress is floor(TotalWeight / Threshold * 100), unbounded above 100.
	Progress uint64

	// Eligible is true once TotalWeight >= Threshold.
	Eligible bool

	// Unrecognized lists recovered signers absent from the
	// configuration. Their signatures are retained but carry no weight;
	// surfaced for user warning.
	Unrecognized []common.Address
}

// Evaluate combines a configuration with the signature blobs gathered
// for a subdigest. Weight is per-signer, not per-signature: when several
// blobs recover to the same address the first one wins. Blobs that fail
// recovery contribute nothing. A zero-threshold configuration (rejected
// by Config.Validate) can never become eligible.
func Evaluate(cfg *walletconfig.Config, subdigest common.Hash, blobs [][]byte) Evaluation {
	eval := Evaluation{
		SignerWeights: make(map[common.Address]uint32),
		Threshold:     uint64(cfg.Threshold),
	}

	seen := make(map[common.Address]bool)
	for _, blob := range blobs {
		signer, err := walletconfig.RecoverSigner(subdigest, blob)
		if err != nil {
			continue
		}
		if seen[signer] {
			continue
		}
		seen[signer] = true

		weight := cfg.WeightOf(signer)
		if weight == 0 && !isMember(cfg, signer) {
			eval.Unrecognized = append(eval.Unrecognized, signer)
			continue
		}
		eval.SignerWeights[signer] = weight
		eval.TotalWeight += uint64(weight)
	}

	if eval.Threshold > 0 {
		eval.Progress = eval.TotalWeight * 100 / eval.Threshold
	}
	eval.Eligible = eval.Threshold > 0 && eval.TotalWeight >= eval.Threshold
	return eval
}

// EvaluateHex is Evaluate over hex-encoded blobs, the store and wire
// representation. Undecodable blobs contribute nothing.
func EvaluateHex(cfg *walletconfig.Config, subdigest common.Hash, blobsHex []string) Evaluation {
	blobs := make([][]byte, 0, len(blobsHex))
	for _, h := range blobsHex {
		blob, err := hexutil.Decode(h)
		if err != nil {
			continue
		}
		blobs = append(blobs, blob)
	}
	return Evaluate(cfg, subdigest, blobs)
}

func isMember(cfg *walletconfig.Config, addr common.Address) bool {
	for _, s := range cfg.Signers {
		if common.HexToAddress(s.Address) == addr {
			return true
		}
	}
	return false
}
