package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	addressArrayType = mustNewType("address[]")

	signersArguments = abi.Arguments{{Type: addressArrayType}}
)

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic("invalid abi type " + t + ": " + err.Error())
	}
	return typ
}

// EncodeAccessListValue produces the value stored in the access-list note
// for an entry: the namehash of the signers note's full path under that
// entry.
func EncodeAccessListValue(entryName string) []byte {
	node := Namehash(SignersNotePath(entryName))
	return node.Bytes()
}

// DecodeAccessListValue validates an access-list note value. The value
// must be exactly one 32-byte namehash.
func DecodeAccessListValue(value []byte) (common.Hash, error) {
	if len(value) != common.HashLength {
		return common.Hash{}, fmt.Errorf("access-list note value must be 32 bytes, got %d", len(value))
	}
	return common.BytesToHash(value), nil
}

// EncodeSignersValue ABI-encodes the authorized hot wallet addresses for
// the signers note. The stored set is always the full list; there is no
// additive update on-chain.
func EncodeSignersValue(signers []common.Address) ([]byte, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("signers list is empty")
	}
	value, err := signersArguments.Pack(signers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signers list: %w", err)
	}
	return value, nil
}

// DecodeSignersValue decodes a signers note value back into the
// authorized address list.
func DecodeSignersValue(value []byte) ([]common.Address, error) {
	decoded, err := signersArguments.Unpack(value)
	if err != nil {
		return nil, fmt.Errorf("signers note value is not an encoded address array: %w", err)
	}
	signers, ok := decoded[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("signers note value decoded to unexpected type %T", decoded[0])
	}
	return signers, nil
}

// SignersContain reports whether addr is a member of the signers set.
// Addresses compare case-insensitively (checksum differences are not
// membership differences).
func SignersContain(signers []common.Address, addr common.Address) bool {
	for _, s := range signers {
		if s == addr {
			return true
		}
	}
	return false
}
