package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/pkg/xkey"
)

func testState(t *testing.T) *chantypes.ChannelState {
	asset := common.HexToAddress("0x1111111111111111111111111111111111111111")
	alice := chantypes.Identifier("alice")
	bob := chantypes.Identifier("bob")
	bal := chantypes.ZeroBalance(alice, bob)
	bal.Amount[0] = big.NewInt(100)
	bal.Amount[1] = big.NewInt(200)

	return &chantypes.ChannelState{
		ChannelAddress:     common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Nonce:              1,
		AssetIDs:           []common.Address{asset},
		Balances:           []chantypes.Balance{bal},
		ProcessedDepositsA: []*big.Int{big.NewInt(0)},
		ProcessedDepositsB: []*big.Int{big.NewInt(0)},
		DefundNonces:       []uint64{0},
		Timeout:            0,
	}
}

func TestHashState_Deterministic(t *testing.T) {
	s := testState(t)
	h1 := HashState(s)
	h2 := HashState(s.Clone())
	assert.Equal(t, h1, h2)
}

func TestHashState_ChangesWithNonce(t *testing.T) {
	s := testState(t)
	h1 := HashState(s)
	s.Nonce = 2
	h2 := HashState(s)
	assert.NotEqual(t, h1, h2)
}

func TestHashState_IndependentOfNetworkContext(t *testing.T) {
	s := testState(t)
	h1 := HashState(s)
	s.Network = chantypes.NetworkContext{ChainID: 1}
	h2 := HashState(s)
	assert.Equal(t, h1, h2)
}

func TestSignAndVerify(t *testing.T) {
	acc, err := xkey.NewAccount("0101010101010101010101010101010101010101010101010101010101010101"[:64])
	require.NoError(t, err)

	s := testState(t)
	sig, err := Sign(acc, s)
	require.NoError(t, err)

	ok, err := Verify(acc.PublicKey(), s, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	other, err := xkey.NewAccount("0202020202020202020202020202020202020202020202020202020202020202"[:64])
	require.NoError(t, err)
	ok, err = Verify(other.PublicKey(), s, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}
