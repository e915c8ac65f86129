package delegation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/gridlabs/grid-api/internal/audit"
	"github.com/gridlabs/grid-api/internal/logger"
)

// OpKind identifies one delegation step. Each kind has its own tracker;
// the re-entrancy guard is per kind, so unrelated operations never block
// each other.
type OpKind string

const (
	OpMintOperatorWallet OpKind = "mint_operator_wallet"
	OpSetAccessListNote  OpKind = "set_access_list_note"
	OpSetSignersNote     OpKind = "set_signers_note"
	OpPaymasterApproval  OpKind = "paymaster_approval"
)

// TrackerState is the confirmation state machine position.
type TrackerState string

const (
	TrackerIdle      TrackerState = "idle"
	TrackerSubmitted TrackerState = "submitted"
	TrackerConfirmed TrackerState = "confirmed"
)

// ErrOperationInFlight rejects a second submission of the same operation
// kind while one is pending.
var ErrOperationInFlight = errors.New("operation already in flight")

// ReceiptWaiter blocks until a transaction has a receipt.
type ReceiptWaiter func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

// Tracker bridges submission, receipt confirmation and the delayed
// re-verification for one operation kind. Failures are not retried; the
// tracker returns to idle and the caller must re-invoke. There is no
// receipt timeout: a transaction cannot be withdrawn once broadcast, and
// declaring it failed early risks double submission.
type Tracker struct {
	kind        OpKind
	entryName   string
	settleDelay time.Duration
	wait        ReceiptWaiter
	onSettle    func()
	recorder    audit.Recorder
	logger      *zap.Logger

	mu     sync.Mutex
	state  TrackerState
	txHash common.Hash
}

// NewTracker creates an idle tracker. onSettle is invoked exactly once
// per confirmed transaction, after the settle delay.
func NewTracker(kind OpKind, entryName string, settleDelay time.Duration, wait ReceiptWaiter, onSettle func(), recorder audit.Recorder) *Tracker {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Tracker{
		kind:        kind,
		entryName:   entryName,
		settleDelay: settleDelay,
		wait:        wait,
		onSettle:    onSettle,
		recorder:    recorder,
		logger:      logger.Log,
		state:       TrackerIdle,
	}
}

// State returns the current position and, when submitted or confirmed,
// the transaction hash.
func (t *Tracker) State() (TrackerState, common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.txHash
}

// Settling reports whether the tracker is inside the post-confirmation
// settle window. External refresh triggers arriving in this window are
// coalesced into the single scheduled re-derivation.
func (t *Tracker) Settling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == TrackerConfirmed
}

// Begin reserves the tracker for a submission. It must be called before
// any chain write; a non-idle tracker rejects with ErrOperationInFlight.
func (t *Tracker) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TrackerIdle {
		return fmt.Errorf("%s: %w (tx %s)", t.kind, ErrOperationInFlight, t.txHash.Hex())
	}
	t.state = TrackerSubmitted
	t.txHash = common.Hash{}
	return nil
}

// Abort releases a reservation after a failed submission. The failure is
// immediate (no transaction exists), distinct from a revert.
func (t *Tracker) Abort(ctx context.Context, submitErr error) {
	t.mu.Lock()
	t.state = TrackerIdle
	t.txHash = common.Hash{}
	t.mu.Unlock()

	t.logger.Error("Transaction submission failed",
		zap.String("op_kind", string(t.kind)),
		zap.String("entry", t.entryName),
		zap.Error(submitErr),
	)
	t.record(ctx, audit.EventSubmitFailed, common.Hash{}, submitErr.Error())
}

// Watch records the broadcast transaction and follows it to its receipt
// in the background. On success it holds the settle delay, then resets to
// idle and triggers exactly one re-derivation. On revert it logs the hash
// and resets without notifying; the pre-transaction status still stands.
func (t *Tracker) Watch(ctx context.Context, txHash common.Hash) {
	t.mu.Lock()
	t.txHash = txHash
	t.mu.Unlock()

	t.record(ctx, audit.EventSubmitted, txHash, "")

	go t.follow(ctx, txHash)
}

func (t *Tracker) follow(ctx context.Context, txHash common.Hash) {
	receipt, err := t.wait(ctx, txHash)
	if err != nil {
		t.logger.Error("Stopped waiting for confirmation",
			zap.String("op_kind", string(t.kind)),
			zap.String("entry", t.entryName),
			zap.String("tx_hash", txHash.Hex()),
			zap.Error(err),
		)
		t.reset()
		return
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		t.logger.Error("Transaction reverted",
			zap.String("op_kind", string(t.kind)),
			zap.String("entry", t.entryName),
			zap.String("tx_hash", txHash.Hex()),
			zap.Uint64("block", receipt.BlockNumber.Uint64()),
		)
		t.record(ctx, audit.EventReverted, txHash, "")
		t.reset()
		return
	}

	t.mu.Lock()
	t.state = TrackerConfirmed
	t.mu.Unlock()

	t.logger.Info("Transaction confirmed",
		zap.String("op_kind", string(t.kind)),
		zap.String("entry", t.entryName),
		zap.String("tx_hash", txHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	t.record(ctx, audit.EventConfirmed, txHash, "")

	// The registry read path may lag the canonical chain state. Reading
	// immediately risks re-observing the pre-transaction state and
	// regressing the derived status, so re-derivation is held for the
	// settle delay. This reduces flicker; it does not eliminate the race.
	timer := time.NewTimer(t.settleDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		t.reset()
		return
	}

	t.reset()
	if t.onSettle != nil {
		t.onSettle()
	}
}

func (t *Tracker) reset() {
	t.mu.Lock()
	t.state = TrackerIdle
	t.txHash = common.Hash{}
	t.mu.Unlock()
}

func (t *Tracker) record(ctx context.Context, event audit.Event, txHash common.Hash, detail string) {
	record := audit.Record{
		EntryName: t.entryName,
		OpKind:    string(t.kind),
		Event:     event,
		Detail:    detail,
	}
	if txHash != (common.Hash{}) {
		record.TxHash = txHash.Hex()
	}
	if err := t.recorder.Record(ctx, record); err != nil {
		t.logger.Warn("Failed to write audit record",
			zap.String("op_kind", string(t.kind)),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}
