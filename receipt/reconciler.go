// Package receipt classifies the real-world fate of a proposed
// transaction bundle by cross-referencing on-chain nonce state and the
// wallet's execution/failure event logs.
//
// Checks are caller-triggered only: there is no background poller, and a
// refresh issued while a prior one is outstanding supersedes the older
// result (last-write-wins on the observable status).
package receipt

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/enchanter-io/enchanter/chain"
	"github.com/enchanter-io/enchanter/digest"
)

// Block estimation for converting a local first-seen time into a scan
// window. The margin absorbs clock skew and bundles that circulated
// among other parties before being imported locally.
const (
	avgBlockSeconds  = 12
	scanMarginBlocks = 7200
)

// Status is the classified fate of a transaction bundle.
type Status string

const (
	// StatusLoading means no check has completed yet.
	StatusLoading Status = "loading"

	// StatusPending means the bundle's nonce slot is still unconsumed
	// (or the wallet contract is not deployed yet).
	StatusPending Status = "pending"

	// StatusExecuted means the bundle executed; Result carries the
	// transaction hash.
	StatusExecuted Status = "executed"

	// StatusFailed means the bundle's dispatch was mined but the bundle
	// reverted.
	StatusFailed Status = "failed"

	// StatusReplaced means the nonce slot was consumed by a different
	// bundle, e.g. a competing proposal for the same slot.
	StatusReplaced Status = "replaced"

	// StatusUnknown means a chain read failed; Result retains the error
	// and a manual refresh re-runs the whole check.
	StatusUnknown Status = "unknown"
)

// Terminal reports whether a status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusFailed || s == StatusReplaced
}

// Result is the outcome of one status check.
type Result struct {
	Status Status

	// TxHash is the dispatching transaction, set for executed and
	// failed bundles.
	TxHash common.Hash

	// Err is retained for display when Status is unknown. An error
	// never resolves to a terminal state.
	Err error
}

// Reconciler runs status checks against a chain oracle. It is safe to
// invoke concurrently; each subdigest keeps only its newest result.
type Reconciler struct {
	oracle   chain.Oracle
	lookback uint64
	logger   zerolog.Logger

	mu     sync.Mutex
	gen    map[string]uint64
	latest map[string]Result
}

// NewReconciler creates a reconciler. lookback bounds the event-log scan
// window below the chain head; bundles executed further back than the
// window may classify as replaced, a deliberate precision/cost
// trade-off.
func NewReconciler(oracle chain.Oracle, lookback uint64, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		oracle:   oracle,
		lookback: lookback,
		logger:   logger.With().Str("component", "receipt").Logger(),
		gen:      make(map[string]uint64),
		latest:   make(map[string]Result),
	}
}

// Status returns the newest observed result for a subdigest, or a
// loading result if no check has completed.
func (r *Reconciler) Status(subdigest string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.latest[subdigest]; ok {
		return res
	}
	return Result{Status: StatusLoading}
}

// Refresh re-runs the whole classification for a bundle and records the
// result unless a newer refresh finished in the meantime. The event-log
// scan covers the full configured lookback below the chain head.
func (r *Reconciler) Refresh(ctx context.Context, entry digest.TransactionEntry) Result {
	return r.refresh(ctx, entry, r.lookback)
}

// RefreshSince is Refresh anchored at the bundle's local first-seen
// time: the scan window starts near the estimated block of first sight
// (plus a safety margin) rather than the full lookback, so recently
// proposed bundles scan far fewer blocks. The window never exceeds the
// configured lookback.
func (r *Reconciler) RefreshSince(ctx context.Context, entry digest.TransactionEntry, firstSeen time.Time) Result {
	return r.refresh(ctx, entry, scanWindow(r.lookback, firstSeen))
}

func scanWindow(lookback uint64, firstSeen time.Time) uint64 {
	if firstSeen.IsZero() {
		return lookback
	}
	elapsed := time.Since(firstSeen)
	if elapsed < 0 {
		elapsed = 0
	}
	estimated := uint64(elapsed/time.Second)/avgBlockSeconds + scanMarginBlocks
	if estimated < lookback {
		return estimated
	}
	return lookback
}

func (r *Reconciler) refresh(ctx context.Context, entry digest.TransactionEntry, window uint64) Result {
	sub, err := entry.Subdigest()
	if err != nil {
		return Result{Status: StatusUnknown, Err: err}
	}
	key := sub.Hex()

	r.mu.Lock()
	r.gen[key]++
	myGen := r.gen[key]
	r.mu.Unlock()

	result := r.check(ctx, entry, sub, window)

	r.mu.Lock()
	if r.gen[key] == myGen {
		r.latest[key] = result
	}
	r.mu.Unlock()

	r.logger.Debug().
		Str("subdigest", key).
		Str("status", string(result.Status)).
		Msg("refreshed execution status")
	return result
}

func (r *Reconciler) check(ctx context.Context, entry digest.TransactionEntry, sub common.Hash, window uint64) Result {
	wallet := common.HexToAddress(entry.Wallet)

	code, err := r.oracle.Bytecode(ctx, wallet)
	if err != nil {
		return Result{Status: StatusUnknown, Err: err}
	}
	// An undeployed wallet cannot have executed anything.
	if len(code) == 0 {
		return Result{Status: StatusPending}
	}

	space, err := digest.ParseBig(entry.Space)
	if err != nil {
		return Result{Status: StatusUnknown, Err: err}
	}
	expected, err := digest.ParseBig(entry.Nonce)
	if err != nil {
		return Result{Status: StatusUnknown, Err: err}
	}

	current, err := r.oracle.ReadNonce(ctx, wallet, space)
	if err != nil {
		return Result{Status: StatusUnknown, Err: err}
	}
	if current.Cmp(expected) == 0 {
		return Result{Status: StatusPending}
	}

	// The slot was consumed: either by this bundle (executed or failed
	// event carries its subdigest) or by a competing one (no event).
	latest, err := r.oracle.LatestBlock(ctx)
	if err != nil {
		return Result{Status: StatusUnknown, Err: err}
	}
	fromBlock := uint64(0)
	if latest > window {
		fromBlock = latest - window
	}

	executed, err := r.oracle.FilterWalletLogs(ctx, wallet, chain.TxExecutedTopic, sub, fromBlock, latest)
	if err != nil {
		return Result{Status: StatusUnknown, Err: err}
	}
	if len(executed) > 0 {
		return Result{Status: StatusExecuted, TxHash: executed[0].TxHash}
	}

	failed, err := r.oracle.FilterWalletLogs(ctx, wallet, chain.TxFailedTopic, sub, fromBlock, latest)
	if err != nil {
		return Result{Status: StatusUnknown, Err: err}
	}
	if len(failed) > 0 {
		return Result{Status: StatusFailed, TxHash: failed[0].TxHash}
	}

	return Result{Status: StatusReplaced}
}
