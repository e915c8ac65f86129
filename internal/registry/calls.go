package registry

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Calldata builders for the three contract surfaces the engine touches:
// the name registry (mint/note and the read calls), token-bound accounts
// (execute) and ERC-20 tokens (approve/balanceOf/allowance).

const (
	// CallOperation is the TBA execute operation code for a plain call.
	CallOperation uint8 = 0
)

var (
	addressType = mustNewType("address")
	bytesType   = mustNewType("bytes")
	bytes32Type = mustNewType("bytes32")
	uint256Type = mustNewType("uint256")
	uint8Type   = mustNewType("uint8")

	mintArguments = abi.Arguments{
		{Type: addressType}, // owner
		{Type: bytesType},   // node (label bytes)
		{Type: bytesType},   // initData
		{Type: addressType}, // implementation
	}
	noteArguments = abi.Arguments{
		{Type: bytesType}, // key
		{Type: bytesType}, // value
	}
	executeArguments = abi.Arguments{
		{Type: addressType}, // target
		{Type: uint256Type}, // value
		{Type: bytesType},   // data
		{Type: uint8Type},   // operation
	}
	approveArguments = abi.Arguments{
		{Type: addressType}, // spender
		{Type: uint256Type}, // amount
	}
	singleAddressArguments = abi.Arguments{{Type: addressType}}
	singleBytes32Arguments = abi.Arguments{{Type: bytes32Type}}
	singleBytesArguments   = abi.Arguments{{Type: bytesType}}
	singleUint256Arguments = abi.Arguments{{Type: uint256Type}}
	ownerSpenderArguments  = abi.Arguments{
		{Type: addressType},
		{Type: addressType},
	}
	nodeKeyArguments = abi.Arguments{
		{Type: bytes32Type},
		{Type: bytesType},
	}

	mintSelector      = selector("mint(address,bytes,bytes,address)")
	noteSelector      = selector("note(bytes,bytes)")
	executeSelector   = selector("execute(address,uint256,bytes,uint8)")
	approveSelector   = selector("approve(address,uint256)")
	balanceOfSelector = selector("balanceOf(address)")
	allowanceSelector = selector("allowance(address,address)")

	ownerOfSelector          = selector("ownerOf(bytes32)")
	accountOfSelector        = selector("accountOf(bytes32)")
	noteOfSelector           = selector("noteOf(bytes32,bytes)")
	implementationOfSelector = selector("implementationOf(address)")
)

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func pack(sel []byte, args abi.Arguments, values ...interface{}) ([]byte, error) {
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("abi pack failed: %w", err)
	}
	return append(append([]byte{}, sel...), packed...), nil
}

// PackMint builds registry mint calldata for a new sub-entry.
func PackMint(owner common.Address, label string, initData []byte, implementation common.Address) ([]byte, error) {
	if initData == nil {
		initData = []byte{}
	}
	return pack(mintSelector, mintArguments, owner, []byte(Normalize(label)), initData, implementation)
}

// PackNote builds registry note calldata for a key/value record.
func PackNote(key string, value []byte) ([]byte, error) {
	return pack(noteSelector, noteArguments, []byte(key), value)
}

// PackExecute wraps inner calldata in a TBA execute call. Operation 0 is
// a plain call.
func PackExecute(target common.Address, value *big.Int, data []byte, operation uint8) ([]byte, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	return pack(executeSelector, executeArguments, target, value, data, operation)
}

// PackApprove builds ERC-20 approve calldata. A zero amount revokes.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return pack(approveSelector, approveArguments, spender, amount)
}

// PackBalanceOf builds ERC-20 balanceOf calldata.
func PackBalanceOf(account common.Address) ([]byte, error) {
	return pack(balanceOfSelector, singleAddressArguments, account)
}

// PackAllowance builds ERC-20 allowance calldata.
func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return pack(allowanceSelector, ownerSpenderArguments, owner, spender)
}

// PackOwnerOf builds the registry ownership read for a node.
func PackOwnerOf(node common.Hash) ([]byte, error) {
	return pack(ownerOfSelector, singleBytes32Arguments, node)
}

// PackAccountOf builds the registry token-bound-account read for a node.
func PackAccountOf(node common.Hash) ([]byte, error) {
	return pack(accountOfSelector, singleBytes32Arguments, node)
}

// PackNoteOf builds the registry note read for a node and key.
func PackNoteOf(node common.Hash, key string) ([]byte, error) {
	return pack(noteOfSelector, nodeKeyArguments, node, []byte(key))
}

// PackImplementationOf builds the registry implementation read for a TBA.
func PackImplementationOf(tba common.Address) ([]byte, error) {
	return pack(implementationOfSelector, singleAddressArguments, tba)
}

// UnpackAddress decodes a single-address return value.
func UnpackAddress(output []byte) (common.Address, error) {
	decoded, err := singleAddressArguments.Unpack(output)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode address return: %w", err)
	}
	addr, ok := decoded[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("address return decoded to unexpected type %T", decoded[0])
	}
	return addr, nil
}

// UnpackBytes decodes a single-bytes return value.
func UnpackBytes(output []byte) ([]byte, error) {
	decoded, err := singleBytesArguments.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bytes return: %w", err)
	}
	value, ok := decoded[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("bytes return decoded to unexpected type %T", decoded[0])
	}
	return value, nil
}

// UnpackUint256 decodes a single-uint256 return value.
func UnpackUint256(output []byte) (*big.Int, error) {
	decoded, err := singleUint256Arguments.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("failed to decode uint256 return: %w", err)
	}
	value, ok := decoded[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("uint256 return decoded to unexpected type %T", decoded[0])
	}
	return value, nil
}
