package delegation

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/gridlabs/grid-api/internal/audit"
	"github.com/gridlabs/grid-api/internal/chain"
	"github.com/gridlabs/grid-api/internal/custody"
	"github.com/gridlabs/grid-api/internal/logger"
	"github.com/gridlabs/grid-api/internal/registry"
)

// ServiceConfig wires the delegation service's collaborators and
// deployment constants.
type ServiceConfig struct {
	Reader    chain.Reader
	Submitter chain.Submitter
	Session   *custody.Session
	Recorder  audit.Recorder

	RegistryAddress           common.Address
	Implementation            common.Address
	DeprecatedImplementations []common.Address
	PaymasterAddress          common.Address
	USDCTokenAddress          common.Address

	SettleDelay time.Duration

	MinOperatorEthWei  *big.Int
	MinOperatorUSDC    *big.Int
	MinHotWalletEthWei *big.Int
}

// Service is the facade the HTTP surface consumes: status snapshots plus
// the orchestrated delegation operations. Distinct owner entries get
// independent engines and may be advanced concurrently; within one entry
// the per-kind trackers serialize each operation kind.
type Service struct {
	cfg      ServiceConfig
	gatherer *Gatherer
	deriver  *Deriver
	watchCtx context.Context
	logger   *zap.Logger

	mu      sync.Mutex
	engines map[string]*engine
}

// engine is the per-owner-entry state: trackers, orchestrator, paymaster
// manager and the latest derived snapshot.
type engine struct {
	orchestrator *Orchestrator
	paymaster    *PaymasterManager
	trackers     map[OpKind]*Tracker

	mu     sync.RWMutex
	latest *Snapshot
}

// NewService creates the delegation service. watchCtx bounds background
// confirmation watching; cancel it on shutdown.
func NewService(watchCtx context.Context, cfg ServiceConfig) *Service {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.Recorder == nil {
		cfg.Recorder = audit.NopRecorder{}
	}

	return &Service{
		cfg:      cfg,
		gatherer: NewGatherer(cfg.Reader, cfg.Session, cfg.USDCTokenAddress, cfg.PaymasterAddress),
		deriver: &Deriver{
			ExpectedImplementation:    cfg.Implementation,
			DeprecatedImplementations: cfg.DeprecatedImplementations,
			MinOperatorEthWei:         cfg.MinOperatorEthWei,
			MinOperatorUSDC:           cfg.MinOperatorUSDC,
			MinHotWalletEthWei:        cfg.MinHotWalletEthWei,
		},
		watchCtx: watchCtx,
		logger:   logger.Log,
		engines:  make(map[string]*engine),
	}
}

func (s *Service) engine(entryName string) *engine {
	entryName = registry.Normalize(entryName)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[entryName]; ok {
		return e
	}

	e := &engine{trackers: make(map[OpKind]*Tracker)}
	onSettle := func() {
		// Exactly one re-derivation per settled operation, on the
		// process-lifetime context so request cancellation cannot lose it.
		if _, err := s.refresh(s.watchCtx, entryName, e); err != nil {
			s.logger.Warn("Post-settle status refresh failed",
				zap.String("entry", entryName),
				zap.Error(err),
			)
		}
	}
	for _, kind := range []OpKind{OpMintOperatorWallet, OpSetAccessListNote, OpSetSignersNote, OpPaymasterApproval} {
		e.trackers[kind] = NewTracker(kind, entryName, s.cfg.SettleDelay, s.cfg.Submitter.WaitMined, onSettle, s.cfg.Recorder)
	}
	e.orchestrator = NewOrchestrator(s.watchCtx, s.cfg.Submitter, s.cfg.RegistryAddress, s.cfg.Implementation, e.trackers)
	e.paymaster = NewPaymasterManager(e.orchestrator, s.cfg.PaymasterAddress, s.cfg.USDCTokenAddress)

	s.engines[entryName] = e
	return e
}

// Status returns the current snapshot for an owner entry, re-deriving
// from fresh chain reads. Manual refreshes arriving inside a settle
// window are coalesced: the scheduled post-settle re-derivation stands in
// for them and the cached snapshot is returned instead.
func (s *Service) Status(ctx context.Context, entryName string) (*Snapshot, error) {
	if err := registry.ValidateEntryName(entryName); err != nil {
		return nil, err
	}
	e := s.engine(entryName)

	if snap := e.cachedIfSettling(); snap != nil {
		return snap, nil
	}
	return s.refresh(ctx, registry.Normalize(entryName), e)
}

func (e *engine) cachedIfSettling() *Snapshot {
	settling := false
	for _, t := range e.trackers {
		if t.Settling() {
			settling = true
			break
		}
	}
	if !settling {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

func (s *Service) refresh(ctx context.Context, entryName string, e *engine) (*Snapshot, error) {
	inputs := s.gatherer.Gather(ctx, entryName)
	snap := s.deriver.Derive(inputs)

	e.mu.Lock()
	e.latest = snap
	e.mu.Unlock()

	s.logger.Debug("Delegation status derived",
		zap.String("entry", entryName),
		zap.String("identity", string(snap.Identity.State)),
		zap.String("delegation", string(snap.Delegation.State)),
	)
	return snap, nil
}

// OperationStatus is the tracker view for one operation kind.
type OperationStatus struct {
	Kind   OpKind       `json:"kind"`
	State  TrackerState `json:"state"`
	TxHash string       `json:"tx_hash,omitempty"`
}

// Operations returns the tracker state for every operation kind of an
// entry, for "still pending" affordances. The name is validated first so
// arbitrary path segments cannot grow the engine map.
func (s *Service) Operations(entryName string) ([]OperationStatus, error) {
	if err := registry.ValidateEntryName(entryName); err != nil {
		return nil, err
	}
	e := s.engine(entryName)
	out := make([]OperationStatus, 0, len(e.trackers))
	for _, kind := range []OpKind{OpMintOperatorWallet, OpSetAccessListNote, OpSetSignersNote, OpPaymasterApproval} {
		state, txHash := e.trackers[kind].State()
		op := OperationStatus{Kind: kind, State: state}
		if txHash != (common.Hash{}) {
			op.TxHash = txHash.Hex()
		}
		out = append(out, op)
	}
	return out, nil
}

// MintOperatorWallet derives a fresh snapshot and attempts the mint.
func (s *Service) MintOperatorWallet(ctx context.Context, entryName string) (common.Hash, error) {
	snap, e, err := s.freshSnapshot(ctx, entryName)
	if err != nil {
		return common.Hash{}, err
	}
	return e.orchestrator.MintOperatorWallet(ctx, snap)
}

// SetAccessListNote derives a fresh snapshot and attempts the note write.
func (s *Service) SetAccessListNote(ctx context.Context, entryName string) (common.Hash, error) {
	snap, e, err := s.freshSnapshot(ctx, entryName)
	if err != nil {
		return common.Hash{}, err
	}
	return e.orchestrator.SetAccessListNote(ctx, snap)
}

// SetSignersNote derives a fresh snapshot and writes the full signer set.
func (s *Service) SetSignersNote(ctx context.Context, entryName string, signers []common.Address) (common.Hash, error) {
	snap, e, err := s.freshSnapshot(ctx, entryName)
	if err != nil {
		return common.Hash{}, err
	}
	return e.orchestrator.SetSignersNote(ctx, snap, signers)
}

// ApprovePaymaster derives a fresh snapshot and grants the allowance.
func (s *Service) ApprovePaymaster(ctx context.Context, entryName string, amount *big.Int) (common.Hash, error) {
	snap, e, err := s.freshSnapshot(ctx, entryName)
	if err != nil {
		return common.Hash{}, err
	}
	return e.paymaster.Approve(ctx, snap, amount)
}

// RevokePaymaster derives a fresh snapshot and zeroes the allowance.
func (s *Service) RevokePaymaster(ctx context.Context, entryName string) (common.Hash, error) {
	snap, e, err := s.freshSnapshot(ctx, entryName)
	if err != nil {
		return common.Hash{}, err
	}
	return e.paymaster.Revoke(ctx, snap)
}

// freshSnapshot always re-derives before an operation so preconditions
// are checked against current chain state, not a stale cache.
func (s *Service) freshSnapshot(ctx context.Context, entryName string) (*Snapshot, *engine, error) {
	if err := registry.ValidateEntryName(entryName); err != nil {
		return nil, nil, err
	}
	e := s.engine(entryName)
	snap, err := s.refresh(ctx, registry.Normalize(entryName), e)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive current status: %w", err)
	}
	return snap, e, nil
}
