package validator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/pkg/xkey"
)

// fakeReader is a minimal chain.Reader test double. Tests set only the
// closures their scenario needs; an unset closure panics if called,
// surfacing an unexpectedly-exercised code path instead of returning a
// silently wrong zero value.
type fakeReader struct {
	code                  func(common.Address) ([]byte, error)
	totalDepositsAlice    func(common.Address, common.Address) (*big.Int, error)
	totalDepositsBob      func(common.Address, common.Address) (*big.Int, error)
	channelAddress        func(common.Address, common.Address, common.Address) (common.Address, error)
	onchainBalance        func(common.Address, common.Address) (*big.Int, error)
	create                func([]byte, chantypes.Balance, common.Address, common.Address) (bool, error)
	resolve                func(chantypes.TransferID, common.Address, []byte) (chantypes.Balance, error)
	registeredByDefinition func(common.Address, common.Address) (*chain.RegisteredTransfer, error)
}

func (f *fakeReader) GetCode(a common.Address) ([]byte, error) { return f.code(a) }
func (f *fakeReader) GetTotalDepositsAlice(c, a common.Address) (*big.Int, error) {
	return f.totalDepositsAlice(c, a)
}
func (f *fakeReader) GetTotalDepositsBob(c, a common.Address) (*big.Int, error) {
	return f.totalDepositsBob(c, a)
}
func (f *fakeReader) GetChannelAddress(alice, bob, factory common.Address) (common.Address, error) {
	return f.channelAddress(alice, bob, factory)
}
func (f *fakeReader) GetRegisteredTransferByName(name string, registry common.Address) (*chain.RegisteredTransfer, error) {
	panic("not used in this test")
}
func (f *fakeReader) GetRegisteredTransferByDefinition(def, registry common.Address) (*chain.RegisteredTransfer, error) {
	return f.registeredByDefinition(def, registry)
}
func (f *fakeReader) GetRegisteredTransfers(registry common.Address) ([]*chain.RegisteredTransfer, error) {
	panic("not used in this test")
}
func (f *fakeReader) Create(state []byte, bal chantypes.Balance, def, registry common.Address) (bool, error) {
	return f.create(state, bal, def, registry)
}
func (f *fakeReader) Resolve(id chantypes.TransferID, def common.Address, resolver []byte) (chantypes.Balance, error) {
	return f.resolve(id, def, resolver)
}
func (f *fakeReader) GetChannelDispute(channel common.Address) (*chain.ChannelDispute, bool, error) {
	return nil, false, nil
}
func (f *fakeReader) GetOnchainBalance(asset, holder common.Address) (*big.Int, error) {
	return f.onchainBalance(asset, holder)
}
func (f *fakeReader) GetWithdrawalTransactionRecord(commitment [32]byte, channel common.Address) (bool, error) {
	return false, nil
}

func testAccounts(t *testing.T) (alice, bob *xkey.Account) {
	alice, err := xkey.NewAccount("0101010101010101010101010101010101010101010101010101010101010101"[:64])
	require.NoError(t, err)
	bob, err = xkey.NewAccount("0202020202020202020202020202020202020202020202020202020202020202"[:64])
	require.NoError(t, err)
	return alice, bob
}

func setupChannel(t *testing.T, reader chain.Reader, alice, bob *xkey.Account) *chantypes.ChannelState {
	deps := Deps{Reader: reader, External: AllowAll{}}
	params := SetupParams{
		Alice:   chantypes.Identifier(alice.Identifier()),
		Bob:     chantypes.Identifier(bob.Identifier()),
		Network: chantypes.NetworkContext{ChainID: 1},
		Timeout: 1000,
	}
	res, err := ValidateOutbound(deps, alice, nil, nil, params)
	require.NoError(t, err)

	// bob co-signs.
	inRes, err := ValidateInbound(deps, nil, nil, res.Update)
	require.NoError(t, err)
	sig, err := chain.Sign(bob, inRes.NextState)
	require.NoError(t, err)
	inRes.Update.BobSignature = sig.Bytes()
	return inRes.NextState
}

func TestSetup_ProducesDeterministicChannelAddress(t *testing.T) {
	alice, bob := testAccounts(t)
	channelAddr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	reader := &fakeReader{
		channelAddress: func(a, b, f common.Address) (common.Address, error) { return channelAddr, nil },
	}
	state := setupChannel(t, reader, alice, bob)
	assert.Equal(t, channelAddr, state.ChannelAddress)
	assert.Equal(t, uint64(1), state.Nonce)
	assert.Equal(t, chantypes.Identifier(alice.Identifier()), state.AliceID)
	assert.Equal(t, chantypes.Identifier(bob.Identifier()), state.BobID)
}

func TestSetup_RejectsExistingChannel(t *testing.T) {
	alice, _ := testAccounts(t)
	existing := &chantypes.ChannelState{ChannelAddress: common.HexToAddress("0x1")}
	reader := &fakeReader{}
	deps := Deps{Reader: reader, External: AllowAll{}}
	_, err := ValidateOutbound(deps, alice, existing, nil, SetupParams{Alice: "a", Bob: "b", Timeout: 1})
	assert.Error(t, err)
}

func channelAsset() common.Address {
	return common.HexToAddress("0x4444444444444444444444444444444444444444")
}

func TestDeposit_CreditsBobBeforeDeployment(t *testing.T) {
	alice, bob := testAccounts(t)
	asset := channelAsset()
	reader := &fakeReader{
		channelAddress: func(a, b, f common.Address) (common.Address, error) {
			return common.HexToAddress("0x5555555555555555555555555555555555555555"), nil
		},
		code:           func(common.Address) ([]byte, error) { return nil, nil },
		onchainBalance: func(common.Address, common.Address) (*big.Int, error) { return big.NewInt(500), nil },
	}
	state := setupChannel(t, reader, alice, bob)

	deps := Deps{Reader: reader, External: AllowAll{}}
	res, err := ValidateOutbound(deps, bob, state, nil, DepositParams{AssetID: asset})
	require.NoError(t, err)

	idx := res.NextState.AssetIndex(asset)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, big.NewInt(0).String(), res.NextState.Balances[idx].Amount[0].String())
	assert.Equal(t, big.NewInt(500).String(), res.NextState.Balances[idx].Amount[1].String())
}

func TestDeposit_SplitsByParticipantOnceDeployed(t *testing.T) {
	alice, bob := testAccounts(t)
	asset := channelAsset()
	reader := &fakeReader{
		channelAddress: func(a, b, f common.Address) (common.Address, error) {
			return common.HexToAddress("0x5555555555555555555555555555555555555555"), nil
		},
		code: func(common.Address) ([]byte, error) { return []byte{0x60, 0x80}, nil },
		totalDepositsAlice: func(common.Address, common.Address) (*big.Int, error) { return big.NewInt(100), nil },
		totalDepositsBob:   func(common.Address, common.Address) (*big.Int, error) { return big.NewInt(50), nil },
	}
	state := setupChannel(t, reader, alice, bob)

	deps := Deps{Reader: reader, External: AllowAll{}}
	res, err := ValidateOutbound(deps, alice, state, nil, DepositParams{AssetID: asset})
	require.NoError(t, err)

	idx := res.NextState.AssetIndex(asset)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "100", res.NextState.Balances[idx].Amount[0].String())
	assert.Equal(t, "50", res.NextState.Balances[idx].Amount[1].String())
}

func depositedChannel(t *testing.T, alice, bob *xkey.Account, asset common.Address, aliceAmt, bobAmt int64) (*chantypes.ChannelState, *fakeReader) {
	reader := &fakeReader{
		channelAddress: func(a, b, f common.Address) (common.Address, error) {
			return common.HexToAddress("0x5555555555555555555555555555555555555555"), nil
		},
		code:               func(common.Address) ([]byte, error) { return []byte{0x60}, nil },
		totalDepositsAlice: func(common.Address, common.Address) (*big.Int, error) { return big.NewInt(aliceAmt), nil },
		totalDepositsBob:   func(common.Address, common.Address) (*big.Int, error) { return big.NewInt(bobAmt), nil },
	}
	state := setupChannel(t, reader, alice, bob)
	deps := Deps{Reader: reader, External: AllowAll{}}
	res, err := ValidateOutbound(deps, alice, state, nil, DepositParams{AssetID: asset})
	require.NoError(t, err)
	return res.NextState, reader
}

func TestCreate_LocksFundsFromInitiator(t *testing.T) {
	alice, bob := testAccounts(t)
	asset := channelAsset()
	state, reader := depositedChannel(t, alice, bob, asset, 100, 200)
	reader.create = func([]byte, chantypes.Balance, common.Address, common.Address) (bool, error) { return true, nil }
	reader.registeredByDefinition = func(common.Address, common.Address) (*chain.RegisteredTransfer, error) {
		return &chain.RegisteredTransfer{StateEncoding: "uint256", ResolverEncoding: "bytes"}, nil
	}

	deps := Deps{Reader: reader, External: AllowAll{}}
	var transferID chantypes.TransferID
	transferID[0] = 0xAB
	res, err := ValidateOutbound(deps, alice, state, nil, CreateParams{
		TransferID:           transferID,
		AssetID:              asset,
		Amount:               big.NewInt(40),
		TransferDefinition:   common.HexToAddress("0x6"),
		TransferTimeout:      10,
		TransferInitialState: []byte("initial"),
		TransferEncodings:    [2]string{"uint256", "bytes"},
	})
	require.NoError(t, err)

	idx := res.NextState.AssetIndex(asset)
	assert.Equal(t, "60", res.NextState.Balances[idx].Amount[0].String())
	assert.Equal(t, "200", res.NextState.Balances[idx].Amount[1].String())
	require.Len(t, res.ActiveTransfers, 1)
	assert.True(t, res.ActiveTransfers[0].Active())
	assert.NotEqual(t, [32]byte{}, res.NextState.MerkleRoot)
}

func TestCreate_RejectsInsufficientBalance(t *testing.T) {
	alice, bob := testAccounts(t)
	asset := channelAsset()
	state, reader := depositedChannel(t, alice, bob, asset, 10, 200)
	reader.create = func([]byte, chantypes.Balance, common.Address, common.Address) (bool, error) { return true, nil }
	reader.registeredByDefinition = func(common.Address, common.Address) (*chain.RegisteredTransfer, error) {
		return &chain.RegisteredTransfer{StateEncoding: "uint256", ResolverEncoding: "bytes"}, nil
	}

	deps := Deps{Reader: reader, External: AllowAll{}}
	var transferID chantypes.TransferID
	transferID[0] = 0xCD
	_, err := ValidateOutbound(deps, alice, state, nil, CreateParams{
		TransferID:           transferID,
		AssetID:              asset,
		Amount:               big.NewInt(40),
		TransferDefinition:   common.HexToAddress("0x6"),
		TransferInitialState: []byte("initial"),
		TransferEncodings:    [2]string{"uint256", "bytes"},
	})
	assert.Error(t, err)
}

func createdTransferChannel(t *testing.T, alice, bob *xkey.Account) (*chantypes.ChannelState, []*chantypes.Transfer, *fakeReader, chantypes.TransferID) {
	asset := channelAsset()
	state, reader := depositedChannel(t, alice, bob, asset, 100, 200)
	reader.create = func([]byte, chantypes.Balance, common.Address, common.Address) (bool, error) { return true, nil }
	reader.registeredByDefinition = func(common.Address, common.Address) (*chain.RegisteredTransfer, error) {
		return &chain.RegisteredTransfer{StateEncoding: "uint256", ResolverEncoding: "bytes"}, nil
	}

	deps := Deps{Reader: reader, External: AllowAll{}}
	var transferID chantypes.TransferID
	transferID[0] = 0xEF
	res, err := ValidateOutbound(deps, alice, state, nil, CreateParams{
		TransferID:           transferID,
		AssetID:              asset,
		Amount:               big.NewInt(40),
		TransferDefinition:   common.HexToAddress("0x6"),
		TransferInitialState: []byte("initial"),
		TransferEncodings:    [2]string{"uint256", "bytes"},
	})
	require.NoError(t, err)
	return res.NextState, res.ActiveTransfers, reader, transferID
}

func TestResolve_CooperativeCancelRefundsInitiator(t *testing.T) {
	alice, bob := testAccounts(t)
	state, active, reader, transferID := createdTransferChannel(t, alice, bob)

	deps := Deps{Reader: reader, External: AllowAll{}}
	res, err := ValidateOutbound(deps, bob, state, active, ResolveParams{TransferID: transferID})
	require.NoError(t, err)

	asset := channelAsset()
	idx := res.NextState.AssetIndex(asset)
	assert.Equal(t, "100", res.NextState.Balances[idx].Amount[0].String())
	assert.Equal(t, "200", res.NextState.Balances[idx].Amount[1].String())
	assert.Empty(t, res.ActiveTransfers)
	assert.False(t, res.Transfer.Active())
}

func TestResolve_RejectsNonConservingResolution(t *testing.T) {
	alice, bob := testAccounts(t)
	state, active, reader, transferID := createdTransferChannel(t, alice, bob)
	reader.resolve = func(chantypes.TransferID, common.Address, []byte) (chantypes.Balance, error) {
		bal := chantypes.ZeroBalance(state.AliceID, state.BobID)
		bal.Amount[0] = big.NewInt(999)
		return bal, nil
	}

	deps := Deps{Reader: reader, External: AllowAll{}}
	_, err := ValidateOutbound(deps, bob, state, active, ResolveParams{TransferID: transferID, Resolver: []byte("resolver")})
	assert.Error(t, err)
}

func TestInbound_IgnoresForgedTopLevelBalance(t *testing.T) {
	// ValidateInbound never trusts update.Balance — it re-derives the
	// next state from update's typed Details and the chain's own
	// figures, so a forged top-level Balance field has no effect on
	// the result: it neither causes a spurious rejection nor survives
	// into the returned state.
	alice, bob := testAccounts(t)
	asset := channelAsset()
	state, reader := depositedChannel(t, alice, bob, asset, 100, 200)
	reader.totalDepositsAlice = func(common.Address, common.Address) (*big.Int, error) { return big.NewInt(150), nil }

	deps := Deps{Reader: reader, External: AllowAll{}}
	res, err := ValidateOutbound(deps, alice, state, nil, DepositParams{AssetID: asset})
	require.NoError(t, err)

	forged := res.Update
	forged.Balance.Amount[0] = big.NewInt(999999)

	inRes, err := ValidateInbound(deps, state, nil, forged)
	require.NoError(t, err)
	idx := inRes.NextState.AssetIndex(asset)
	assert.Equal(t, "150", inRes.NextState.Balances[idx].Amount[0].String())
}

func TestWithdraw_DeductsBalanceAndIncrementsDefundNonce(t *testing.T) {
	alice, bob := testAccounts(t)
	asset := channelAsset()
	state, _ := depositedChannel(t, alice, bob, asset, 100, 200)

	commitment, next, err := ValidateWithdraw(state, state.AliceID, WithdrawParams{
		AssetID:   asset,
		Amount:    big.NewInt(30),
		Recipient: alice.Address(),
	})
	require.NoError(t, err)

	idx := next.AssetIndex(asset)
	assert.Equal(t, "70", next.Balances[idx].Amount[0].String())
	assert.Equal(t, uint64(0), commitment.Nonce)
	assert.Equal(t, uint64(1), next.DefundNonces[idx])

	sig, err := SignWithdrawCommitment(alice, commitment)
	require.NoError(t, err)
	ok, err := VerifyWithdrawCommitment(alice.PublicKey(), commitment, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}
