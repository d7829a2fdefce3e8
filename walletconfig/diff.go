package walletconfig

import (
	"github.com/ethereum/go-ethereum/common"
)

// Diff describes the delta between two configurations for human review
// before an update is signed. It is advisory only and has no effect on
// threshold evaluation.
type Diff struct {
	AddedSigners     []Signer
	RemovedSigners   []Signer
	ThresholdChanged bool
	FromThreshold    uint32
	ToThreshold      uint32
}

// Compare treats each signer set as a multiset of (address, weight)
// pairs. An entry present in from but not in to is removed; present in
// to but not in from is added. Entries with an unparseable address are
// skipped on the added side, defensive against hand-edited input.
func Compare(from, to *Config) Diff {
	d := Diff{
		FromThreshold:    from.Threshold,
		ToThreshold:      to.Threshold,
		ThresholdChanged: from.Threshold != to.Threshold,
	}

	remaining := make([]Signer, len(to.Signers))
	copy(remaining, to.Signers)
	for _, old := range from.Signers {
		idx := indexOf(remaining, old)
		if idx == -1 {
			d.RemovedSigners = append(d.RemovedSigners, old)
		} else {
			remaining = append(remaining[:idx], remaining[idx+1:]...)
		}
	}

	prior := make([]Signer, len(from.Signers))
	copy(prior, from.Signers)
	for _, fresh := range to.Signers {
		if !common.IsHexAddress(fresh.Address) {
			continue
		}
		idx := indexOf(prior, fresh)
		if idx == -1 {
			d.AddedSigners = append(d.AddedSigners, fresh)
		} else {
			prior = append(prior[:idx], prior[idx+1:]...)
		}
	}

	return d
}

func indexOf(entries []Signer, target Signer) int {
	for i, e := range entries {
		if sameAddress(e.Address, target.Address) && e.Weight == target.Weight {
			return i
		}
	}
	return -1
}

func sameAddress(a, b string) bool {
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return a == b
}
