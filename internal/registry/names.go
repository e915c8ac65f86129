package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidEntryName reports a caller-supplied name that cannot be a
// registry entry. It is a client mistake, not an upstream failure, and
// the HTTP layer maps it accordingly.
var ErrInvalidEntryName = errors.New("invalid entry name")

// Note keys published under an operator wallet's registry entry. The
// access-list note holds the namehash of the signers note's full path,
// which is what binds an operator wallet to one specific signers list.
const (
	AccessListNoteKey = "~access-list"
	SignersNoteKey    = "~grid-beta-signers"

	// OperatorSubLabel is the label minted under an owner entry for the
	// delegation root, e.g. grid-wallet.alice.grid.
	OperatorSubLabel = "grid-wallet"
)

// Normalize lowercases a registry name and strips surrounding whitespace
// and a trailing dot. The registry stores names case-folded.
func Normalize(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// ValidateEntryName checks that a name is a plausible dot-delimited
// registry name with non-empty labels.
func ValidateEntryName(name string) error {
	name = Normalize(name)
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidEntryName)
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return fmt.Errorf("%w: %q contains an empty label", ErrInvalidEntryName, name)
		}
	}
	return nil
}

// OperatorEntryName returns the full name of the operator wallet entry
// minted under the given owner entry.
func OperatorEntryName(ownerEntryName string) string {
	return OperatorSubLabel + "." + Normalize(ownerEntryName)
}

// SignersNotePath returns the full note path whose namehash the
// access-list note must carry for the given entry.
func SignersNotePath(entryName string) string {
	return SignersNoteKey + "." + Normalize(entryName)
}

// Namehash computes the hierarchical name hash of a dot-delimited name:
// the keccak fold of each label hash from the root down, with the empty
// name hashing to 32 zero bytes.
func Namehash(name string) common.Hash {
	node := make([]byte, 32)
	name = Normalize(name)
	if name == "" {
		return common.BytesToHash(node)
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256(node, labelHash)
	}
	return common.BytesToHash(node)
}
