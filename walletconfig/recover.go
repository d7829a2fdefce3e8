package walletconfig

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	engerr "github.com/enchanter-io/enchanter/errors"
)

// Signature blob layout: r (32) ‖ s (32) ‖ v (1) ‖ type (1). The
// trailing type byte selects how the subdigest was presented to the
// signing key.
const (
	sigBlobLength = 66

	// SigTypeEIP712 signs the subdigest bytes directly.
	SigTypeEIP712 byte = 0x01

	// SigTypeEthSign signs the personal-sign hash of the subdigest bytes.
	SigTypeEthSign byte = 0x02
)

// RecoverSigner recovers the signer address from a subdigest and a raw
// signature blob. Malformed blobs and unrecoverable signatures fail with
// an invalid-signature error and must never be stored.
func RecoverSigner(subdigest common.Hash, blob []byte) (common.Address, error) {
	if len(blob) != sigBlobLength {
		return common.Address{}, engerr.NewInvalidSignatureError("signature blob is not 66 bytes", nil)
	}

	sig := make([]byte, 65)
	copy(sig, blob[:65])
	// Wallets emit v as 27/28; secp256k1 recovery wants 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, engerr.NewInvalidSignatureError("invalid recovery id", nil)
	}

	var hash common.Hash
	switch blob[65] {
	case SigTypeEIP712:
		hash = subdigest
	case SigTypeEthSign:
		hash = common.BytesToHash(accounts.TextHash(subdigest.Bytes()))
	default:
		return common.Address{}, engerr.NewInvalidSignatureError("unknown signature type byte", nil)
	}

	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, engerr.NewInvalidSignatureError("signer recovery failed", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
