package registry_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gridlabs/grid-api/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessListValueLinksSignersPath(t *testing.T) {
	entryName := "grid-wallet.alice.grid"

	value := registry.EncodeAccessListValue(entryName)
	require.Len(t, value, 32)

	decoded, err := registry.DecodeAccessListValue(value)
	require.NoError(t, err)

	// The stored value must be exactly the namehash of the signers note's
	// full path, which is the cryptographic link between the two notes.
	assert.Equal(t, registry.Namehash("~grid-beta-signers."+entryName), decoded)
}

func TestDecodeAccessListValueRejectsWrongLength(t *testing.T) {
	tests := []struct {
		name  string
		value []byte
	}{
		{name: "empty", value: []byte{}},
		{name: "truncated", value: make([]byte, 31)},
		{name: "oversized", value: make([]byte, 33)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.DecodeAccessListValue(tt.value)
			assert.Error(t, err)
		})
	}
}

func TestSignersValueRoundTrip(t *testing.T) {
	signers := []common.Address{
		common.HexToAddress("0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"),
		common.HexToAddress("0xBBbBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbbbBbB"),
	}

	value, err := registry.EncodeSignersValue(signers)
	require.NoError(t, err)

	decoded, err := registry.DecodeSignersValue(value)
	require.NoError(t, err)
	assert.Equal(t, signers, decoded)
}

func TestEncodeSignersValueRejectsEmptyList(t *testing.T) {
	_, err := registry.EncodeSignersValue(nil)
	assert.Error(t, err)
}

func TestDecodeSignersValueRejectsGarbage(t *testing.T) {
	_, err := registry.DecodeSignersValue([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestSignersContain(t *testing.T) {
	w1 := common.HexToAddress("0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	w2 := common.HexToAddress("0xBBbBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbbbBbB")

	assert.True(t, registry.SignersContain([]common.Address{w1, w2}, w1))
	assert.False(t, registry.SignersContain([]common.Address{w1}, w2))
	assert.False(t, registry.SignersContain(nil, w1))
}

func TestErc20Selectors(t *testing.T) {
	// Standard EIP-20 selectors; a mismatch here means every approval and
	// balance read the engine issues is garbage.
	approve, err := registry.PackBalanceOf(common.Address{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x70, 0xa0, 0x82, 0x31}, approve[:4])

	allowance, err := registry.PackAllowance(common.Address{}, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xdd, 0x62, 0xed, 0x3e}, allowance[:4])

	approval, err := registry.PackApprove(common.Address{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, approval[:4])
}
