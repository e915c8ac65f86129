package delegation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/gridlabs/grid-api/internal/chain"
	"github.com/gridlabs/grid-api/internal/custody"
	"github.com/gridlabs/grid-api/internal/registry"
)

// NoteRead is one raw note lookup result. Err is a read failure, which is
// different from (and ranked above) the note simply being unset.
type NoteRead struct {
	Present bool
	Value   []byte
	Err     error
}

// BalanceRead is one balance or allowance read result.
type BalanceRead struct {
	Value *big.Int
	Err   error
}

// StatusInputs are all the facts Derive consumes: raw chain reads plus
// wallet-custody facts. Gathering them performs I/O; Derive itself never
// does.
type StatusInputs struct {
	OwnerEntryName    string
	OperatorEntryName string

	OwnerEntry    chain.EntryRead
	OwnerEntryErr error

	OperatorEntry    chain.EntryRead
	OperatorEntryErr error

	OperatorImplementation    common.Address
	OperatorImplementationErr error

	AccessListNote NoteRead
	SignersNote    NoteRead

	ActiveHotWallet    *common.Address
	ActiveHotWalletErr error

	OperatorEth  BalanceRead
	OperatorUSDC BalanceRead
	HotWalletEth BalanceRead

	PaymasterAllowance BalanceRead
}

// Gatherer collects StatusInputs from the chain reader and the custody
// session. The independent reads after entry resolution run concurrently
// and are joined before derivation.
type Gatherer struct {
	reader           chain.Reader
	session          *custody.Session
	usdcToken        common.Address
	paymasterAddress common.Address
}

// NewGatherer creates a gatherer for one deployment's token and paymaster
// addresses.
func NewGatherer(reader chain.Reader, session *custody.Session, usdcToken, paymasterAddress common.Address) *Gatherer {
	return &Gatherer{
		reader:           reader,
		session:          session,
		usdcToken:        usdcToken,
		paymasterAddress: paymasterAddress,
	}
}

// Gather resolves both entries, then fans out the dependent reads. Read
// failures land in the per-field error slots rather than aborting: Derive
// ranks them, and a failure on one read must not hide the others.
func (g *Gatherer) Gather(ctx context.Context, ownerEntryName string) *StatusInputs {
	ownerEntryName = registry.Normalize(ownerEntryName)
	inputs := &StatusInputs{
		OwnerEntryName:    ownerEntryName,
		OperatorEntryName: registry.OperatorEntryName(ownerEntryName),
	}

	// Entry resolution first; everything else hangs off the TBA addresses.
	var group errgroup.Group
	group.Go(func() error {
		inputs.OwnerEntry, inputs.OwnerEntryErr = g.reader.Entry(ctx, inputs.OwnerEntryName)
		return nil
	})
	group.Go(func() error {
		inputs.OperatorEntry, inputs.OperatorEntryErr = g.reader.Entry(ctx, inputs.OperatorEntryName)
		return nil
	})
	group.Go(func() error {
		inputs.ActiveHotWallet, inputs.ActiveHotWalletErr = g.session.ActiveWalletAddress(ctx)
		return nil
	})
	_ = group.Wait()

	if inputs.OperatorEntryErr != nil || !inputs.OperatorEntry.Found {
		return inputs
	}

	operatorTBA := inputs.OperatorEntry.TBA

	var reads errgroup.Group
	reads.Go(func() error {
		inputs.OperatorImplementation, inputs.OperatorImplementationErr = g.reader.Implementation(ctx, operatorTBA)
		return nil
	})
	reads.Go(func() error {
		value, present, err := g.reader.Note(ctx, inputs.OperatorEntryName, registry.AccessListNoteKey)
		inputs.AccessListNote = NoteRead{Present: present, Value: value, Err: err}
		return nil
	})
	reads.Go(func() error {
		value, present, err := g.reader.Note(ctx, inputs.OperatorEntryName, registry.SignersNoteKey)
		inputs.SignersNote = NoteRead{Present: present, Value: value, Err: err}
		return nil
	})
	reads.Go(func() error {
		balance, err := g.reader.EthBalance(ctx, operatorTBA)
		inputs.OperatorEth = BalanceRead{Value: balance, Err: err}
		return nil
	})
	reads.Go(func() error {
		balance, err := g.reader.TokenBalance(ctx, g.usdcToken, operatorTBA)
		inputs.OperatorUSDC = BalanceRead{Value: balance, Err: err}
		return nil
	})
	reads.Go(func() error {
		allowance, err := g.reader.Allowance(ctx, g.usdcToken, operatorTBA, g.paymasterAddress)
		inputs.PaymasterAllowance = BalanceRead{Value: allowance, Err: err}
		return nil
	})
	reads.Go(func() error {
		if inputs.ActiveHotWallet == nil {
			return nil
		}
		balance, err := g.reader.EthBalance(ctx, *inputs.ActiveHotWallet)
		inputs.HotWalletEth = BalanceRead{Value: balance, Err: err}
		return nil
	})
	_ = reads.Wait()

	return inputs
}
