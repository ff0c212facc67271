package engine

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/events"
	"github.com/kyokan/statechannel/internal/messagingtest"
	"github.com/kyokan/statechannel/internal/store"
	"github.com/kyokan/statechannel/internal/validator"
	"github.com/kyokan/statechannel/pkg/xkey"
)

// memStore is a hand-written store.Store test double, following the
// fakeReader pattern from internal/validator/validator_test.go: plain
// in-memory maps guarded by a mutex rather than a mocking framework, so
// the concurrency tests below exercise a real lock, not a permissive
// stub.
type memStore struct {
	mu        sync.Mutex
	channels  map[common.Address]*chantypes.ChannelState
	transfers map[chantypes.TransferID]*chantypes.Transfer
	withdraws map[chantypes.TransferID]*chantypes.WithdrawCommitment
}

func newMemStore() *memStore {
	return &memStore{
		channels:  make(map[common.Address]*chantypes.ChannelState),
		transfers: make(map[chantypes.TransferID]*chantypes.Transfer),
		withdraws: make(map[chantypes.TransferID]*chantypes.WithdrawCommitment),
	}
}

func (s *memStore) GetChannelState(channel common.Address) (*chantypes.ChannelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.channels[channel]
	if !ok {
		return nil, nil
	}
	return st.Clone(), nil
}

func (s *memStore) GetChannelStateByParticipants(aliceID, bobID chantypes.Identifier, chainID uint64) (*chantypes.ChannelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.channels {
		if st.AliceID == aliceID && st.BobID == bobID && st.Network.ChainID == chainID {
			return st.Clone(), nil
		}
	}
	return nil, nil
}

func (s *memStore) SaveChannelState(state *chantypes.ChannelState, transfer *chantypes.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[state.ChannelAddress] = state.Clone()
	if transfer != nil {
		t := *transfer
		s.transfers[transfer.TransferID] = &t
	}
	return nil
}

func (s *memStore) SaveChannelStateAndTransfers(state *chantypes.ChannelState, active []*chantypes.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[state.ChannelAddress] = state.Clone()
	for id, t := range s.transfers {
		if t.ChannelAddress == state.ChannelAddress {
			t.Resolved = true
			s.transfers[id] = t
		}
	}
	for _, t := range active {
		c := *t
		s.transfers[t.TransferID] = &c
	}
	return nil
}

func (s *memStore) GetActiveTransfers(channel common.Address) ([]*chantypes.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*chantypes.Transfer
	for _, t := range s.transfers {
		if t.ChannelAddress == channel && t.Active() {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memStore) GetTransferState(id chantypes.TransferID) (*chantypes.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (s *memStore) GetTransfers(filter store.TransferFilter) ([]*chantypes.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*chantypes.Transfer
	for _, t := range s.transfers {
		if filter.Channel != (common.Address{}) && t.ChannelAddress != filter.Channel {
			continue
		}
		if filter.Active != nil && t.Active() != *filter.Active {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func (s *memStore) SaveWithdrawalCommitment(transferID chantypes.TransferID, commitment *chantypes.WithdrawCommitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdraws[transferID] = commitment
	return nil
}

func (s *memStore) GetWithdrawalCommitment(transferID chantypes.TransferID) (*chantypes.WithdrawCommitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdraws[transferID], nil
}

func (s *memStore) GetWithdrawalCommitmentByTransactionHash(hash common.Hash) (*chantypes.WithdrawCommitment, error) {
	return nil, nil
}

func (s *memStore) SaveTransactionResponse(rec *store.TransactionRecord) error { return nil }
func (s *memStore) SaveTransactionReceipt(txHash common.Hash, gasUsed uint64) error {
	return nil
}
func (s *memStore) SaveTransactionFailure(txHash common.Hash, reason string) error { return nil }

// fakeReader mirrors internal/validator's test double; it is redefined
// here rather than exported from that package since engine tests need a
// few extra knobs (a settable onchain balance value) the validator tests
// don't.
type fakeReader struct {
	channelAddr common.Address
	deployed    bool
	totalAlice  *big.Int
	totalBob    *big.Int
	onchainBal  *big.Int
	createOK    bool
	resolveFn   func(chantypes.TransferID, common.Address, []byte) (chantypes.Balance, error)
}

func (f *fakeReader) GetCode(common.Address) ([]byte, error) {
	if f.deployed {
		return []byte{0x60}, nil
	}
	return nil, nil
}
func (f *fakeReader) GetTotalDepositsAlice(common.Address, common.Address) (*big.Int, error) {
	return f.totalAlice, nil
}
func (f *fakeReader) GetTotalDepositsBob(common.Address, common.Address) (*big.Int, error) {
	return f.totalBob, nil
}
func (f *fakeReader) GetChannelAddress(alice, bob, factory common.Address) (common.Address, error) {
	return f.channelAddr, nil
}
func (f *fakeReader) GetRegisteredTransferByName(name string, registry common.Address) (*chain.RegisteredTransfer, error) {
	panic("not used in engine tests")
}
func (f *fakeReader) GetRegisteredTransferByDefinition(def, registry common.Address) (*chain.RegisteredTransfer, error) {
	return &chain.RegisteredTransfer{DefinitionAddress: def, StateEncoding: "uint256", ResolverEncoding: "bytes"}, nil
}
func (f *fakeReader) GetRegisteredTransfers(registry common.Address) ([]*chain.RegisteredTransfer, error) {
	panic("not used in engine tests")
}
func (f *fakeReader) Create(state []byte, bal chantypes.Balance, def, registry common.Address) (bool, error) {
	return f.createOK, nil
}
func (f *fakeReader) Resolve(id chantypes.TransferID, def common.Address, resolver []byte) (chantypes.Balance, error) {
	return f.resolveFn(id, def, resolver)
}
func (f *fakeReader) GetChannelDispute(common.Address) (*chain.ChannelDispute, bool, error) {
	return nil, false, nil
}
func (f *fakeReader) GetOnchainBalance(asset, holder common.Address) (*big.Int, error) {
	return f.onchainBal, nil
}
func (f *fakeReader) GetWithdrawalTransactionRecord(commitment [32]byte, channel common.Address) (bool, error) {
	return false, nil
}

func testHarness(t *testing.T, reader chain.Reader) (aliceEngine, bobEngine *Engine, aliceID, bobID chantypes.Identifier) {
	alice, err := xkey.NewAccount("1111111111111111111111111111111111111111111111111111111111111111"[:64])
	require.NoError(t, err)
	bob, err := xkey.NewAccount("2222222222222222222222222222222222222222222222222222222222222222"[:64])
	require.NoError(t, err)

	loop := messagingtest.NewLoopback()
	aliceID = chantypes.Identifier(alice.Identifier())
	bobID = chantypes.Identifier(bob.Identifier())

	aliceEngine = New(Config{
		Signer:         alice,
		Store:          newMemStore(),
		Messenger:      loop.For(aliceID),
		Events:         events.NewBus(),
		Deps:           validator.Deps{Reader: reader},
		RequestTimeout: time.Second,
	})
	bobEngine = New(Config{
		Signer:         bob,
		Store:          newMemStore(),
		Messenger:      loop.For(bobID),
		Events:         events.NewBus(),
		Deps:           validator.Deps{Reader: reader},
		RequestTimeout: time.Second,
	})
	loop.Register(aliceID, aliceEngine)
	loop.Register(bobID, bobEngine)
	return aliceEngine, bobEngine, aliceID, bobID
}

func TestEngine_SetupDepositCreateResolveRoundTrip(t *testing.T) {
	channelAddr := common.HexToAddress("0x9999999999999999999999999999999999999999")
	asset := common.HexToAddress("0x1212121212121212121212121212121212121212")
	reader := &fakeReader{
		channelAddr: channelAddr,
		deployed:    false,
		onchainBal:  big.NewInt(1000),
		createOK:    true,
	}

	aliceEngine, bobEngine, _, bobID := testHarness(t, reader)
	ctx := context.Background()

	state, err := aliceEngine.Setup(ctx, bobID, chantypes.NetworkContext{ChainID: 1}, 1000, nil)
	require.NoError(t, err)
	assert.Equal(t, channelAddr, state.ChannelAddress)
	assert.Equal(t, uint64(1), state.Nonce)

	bobState, err := bobEngine.store.GetChannelState(channelAddr)
	require.NoError(t, err)
	require.NotNil(t, bobState)
	assert.Equal(t, uint64(1), bobState.Nonce)

	state, err = aliceEngine.Deposit(ctx, channelAddr, asset, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), state.Nonce)
	idx := state.AssetIndex(asset)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "1000", state.Balances[idx].Amount[1].String())

	// The channel is undeployed, so the prior deposit credited its full
	// amount to Bob (spec.md §4.1.3's pre-deployment policy) — Bob is the
	// one with balance to lock into a transfer.
	var transferID chantypes.TransferID
	transferID[0] = 0x01
	state, err = bobEngine.CreateTransfer(ctx, channelAddr, validator.CreateParams{
		TransferID:           transferID,
		AssetID:              asset,
		Amount:               big.NewInt(100),
		TransferDefinition:   common.HexToAddress("0xaa"),
		TransferTimeout:      500,
		TransferInitialState: []byte("state"),
		TransferEncodings:    [2]string{"uint256", "bytes"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), state.Nonce)

	state, err = aliceEngine.ResolveTransfer(ctx, channelAddr, validator.ResolveParams{TransferID: transferID})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), state.Nonce)
	idx = state.AssetIndex(asset)
	assert.Equal(t, "1000", state.Balances[idx].Amount[1].String())

	activeAlice, err := aliceEngine.store.GetActiveTransfers(channelAddr)
	require.NoError(t, err)
	assert.Empty(t, activeAlice)
}

func TestEngine_StaleUpdateSyncsThenRetries(t *testing.T) {
	channelAddr := common.HexToAddress("0x8888888888888888888888888888888888888888")
	asset := common.HexToAddress("0x1313131313131313131313131313131313131313")
	reader := &fakeReader{
		channelAddr: channelAddr,
		deployed:    false,
		onchainBal:  big.NewInt(1000),
	}

	aliceEngine, bobEngine, _, bobID := testHarness(t, reader)
	ctx := context.Background()

	_, err := aliceEngine.Setup(ctx, bobID, chantypes.NetworkContext{ChainID: 1}, 1000, nil)
	require.NoError(t, err)

	// Bob advances the channel (a deposit) without alice's knowledge,
	// then alice's local copy is rolled back to simulate her missing
	// that round entirely (e.g. a crash before her ack-side save).
	staleState, err := aliceEngine.store.GetChannelState(channelAddr)
	require.NoError(t, err)

	_, err = bobEngine.Deposit(ctx, channelAddr, asset, nil)
	require.NoError(t, err)

	require.NoError(t, aliceEngine.store.SaveChannelState(staleState, nil))

	asset2 := common.HexToAddress("0x1414141414141414141414141414141414141414")
	state, err := aliceEngine.Deposit(ctx, channelAddr, asset2, nil)
	require.NoError(t, err)
	// nonce 2 was bob's deposit (synced in), nonce 3 is alice's own.
	assert.Equal(t, uint64(3), state.Nonce)
}

func TestEngine_RestoreNeededWhenFarBehind(t *testing.T) {
	channelAddr := common.HexToAddress("0x7777777777777777777777777777777777777777")
	assets := []common.Address{
		common.HexToAddress("0x1515151515151515151515151515151515151515"),
		common.HexToAddress("0x1525151515151515151515151515151515151515"),
		common.HexToAddress("0x1535151515151515151515151515151515151515"),
	}
	reader := &fakeReader{
		channelAddr: channelAddr,
		deployed:    false,
		onchainBal:  big.NewInt(1000),
	}

	aliceEngine, bobEngine, _, bobID := testHarness(t, reader)
	ctx := context.Background()

	_, err := aliceEngine.Setup(ctx, bobID, chantypes.NetworkContext{ChainID: 1}, 1000, nil)
	require.NoError(t, err)

	staleState, err := aliceEngine.store.GetChannelState(channelAddr)
	require.NoError(t, err)

	for _, asset := range assets {
		_, err = bobEngine.Deposit(ctx, channelAddr, asset, nil)
		require.NoError(t, err)
	}

	require.NoError(t, aliceEngine.store.SaveChannelState(staleState, nil))

	_, err = aliceEngine.Deposit(ctx, channelAddr, assets[0], nil)
	assert.Error(t, err)
}

func TestEngine_CreateRejectedWhenOnChainPredicateFails(t *testing.T) {
	channelAddr := common.HexToAddress("0x6666666666666666666666666666666666666666")
	asset := common.HexToAddress("0x1616161616161616161616161616161616161616")
	reader := &fakeReader{
		channelAddr: channelAddr,
		deployed:    false,
		onchainBal:  big.NewInt(1000),
		createOK:    false,
	}

	aliceEngine, bobEngine, _, bobID := testHarness(t, reader)
	ctx := context.Background()

	_, err := aliceEngine.Setup(ctx, bobID, chantypes.NetworkContext{ChainID: 1}, 1000, nil)
	require.NoError(t, err)
	_, err = aliceEngine.Deposit(ctx, channelAddr, asset, nil)
	require.NoError(t, err)

	// Bob holds the deposited balance (undeployed-channel policy), so
	// his is the proposal the failing on-chain predicate should reject.
	var transferID chantypes.TransferID
	transferID[0] = 0x02
	_, err = bobEngine.CreateTransfer(ctx, channelAddr, validator.CreateParams{
		TransferID:           transferID,
		AssetID:              asset,
		Amount:               big.NewInt(10),
		TransferDefinition:   common.HexToAddress("0xbb"),
		TransferInitialState: []byte("state"),
		TransferEncodings:    [2]string{"uint256", "bytes"},
	})
	assert.Error(t, err)
}

func TestEngine_ResolveRejectedOnNonConservingResolution(t *testing.T) {
	channelAddr := common.HexToAddress("0x5656565656565656565656565656565656565656")
	asset := common.HexToAddress("0x1717171717171717171717171717171717171717")
	reader := &fakeReader{
		channelAddr: channelAddr,
		deployed:    false,
		onchainBal:  big.NewInt(1000),
		createOK:    true,
	}

	aliceEngine, bobEngine, _, bobID := testHarness(t, reader)
	ctx := context.Background()

	_, err := aliceEngine.Setup(ctx, bobID, chantypes.NetworkContext{ChainID: 1}, 1000, nil)
	require.NoError(t, err)
	_, err = aliceEngine.Deposit(ctx, channelAddr, asset, nil)
	require.NoError(t, err)

	var transferID chantypes.TransferID
	transferID[0] = 0x03
	_, err = bobEngine.CreateTransfer(ctx, channelAddr, validator.CreateParams{
		TransferID:           transferID,
		AssetID:              asset,
		Amount:               big.NewInt(50),
		TransferDefinition:   common.HexToAddress("0xcc"),
		TransferInitialState: []byte("state"),
		TransferEncodings:    [2]string{"uint256", "bytes"},
	})
	require.NoError(t, err)

	state, err := aliceEngine.store.GetChannelState(channelAddr)
	require.NoError(t, err)
	reader.resolveFn = func(chantypes.TransferID, common.Address, []byte) (chantypes.Balance, error) {
		bal := chantypes.ZeroBalance(state.AliceID, state.BobID)
		bal.Amount[0] = big.NewInt(999)
		return bal, nil
	}

	_, err = bobEngine.ResolveTransfer(ctx, channelAddr, validator.ResolveParams{
		TransferID: transferID,
		Resolver:   []byte("resolver"),
	})
	assert.Error(t, err)
}

func TestEngine_ConcurrentProposalsOnSameChannelSerialize(t *testing.T) {
	channelAddr := common.HexToAddress("0x4545454545454545454545454545454545454545")
	assetA := common.HexToAddress("0x1818181818181818181818181818181818181818")
	assetB := common.HexToAddress("0x1919191919191919191919191919191919191919")
	reader := &fakeReader{
		channelAddr: channelAddr,
		deployed:    false,
		onchainBal:  big.NewInt(1000),
	}

	aliceEngine, _, _, bobID := testHarness(t, reader)
	ctx := context.Background()

	_, err := aliceEngine.Setup(ctx, bobID, chantypes.NetworkContext{ChainID: 1}, 1000, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = aliceEngine.Deposit(ctx, channelAddr, assetA, nil)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = aliceEngine.Deposit(ctx, channelAddr, assetB, nil)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	final, err := aliceEngine.store.GetChannelState(channelAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), final.Nonce)
}

func TestEngine_WithdrawRoundTrip(t *testing.T) {
	channelAddr := common.HexToAddress("0x3434343434343434343434343434343434343434")
	asset := common.HexToAddress("0x2020202020202020202020202020202020202020")
	reader := &fakeReader{
		channelAddr: channelAddr,
		deployed:    false,
		onchainBal:  big.NewInt(1000),
	}

	aliceEngine, bobEngine, _, bobID := testHarness(t, reader)
	ctx := context.Background()

	_, err := aliceEngine.Setup(ctx, bobID, chantypes.NetworkContext{ChainID: 1}, 1000, nil)
	require.NoError(t, err)
	_, err = aliceEngine.Deposit(ctx, channelAddr, asset, nil)
	require.NoError(t, err)

	// Bob holds the deposited balance (undeployed-channel policy).
	commitment, err := bobEngine.Withdraw(ctx, channelAddr, asset, big.NewInt(200), common.HexToAddress("0xdead"))
	require.NoError(t, err)
	assert.True(t, len(commitment.AliceSignature) > 0)
	assert.True(t, len(commitment.BobSignature) > 0)

	state, err := aliceEngine.store.GetChannelState(channelAddr)
	require.NoError(t, err)
	idx := state.AssetIndex(asset)
	assert.Equal(t, "800", state.Balances[idx].Amount[1].String())
}

func TestSweeper_ResolvesTimedOutTransfer(t *testing.T) {
	channelAddr := common.HexToAddress("0x3535353535353535353535353535353535353535")
	asset := common.HexToAddress("0x2121212121212121212121212121212121212121")
	reader := &fakeReader{
		channelAddr: channelAddr,
		deployed:    false,
		onchainBal:  big.NewInt(1000),
		createOK:    true,
	}

	aliceEngine, bobEngine, _, bobID := testHarness(t, reader)
	ctx := context.Background()

	_, err := aliceEngine.Setup(ctx, bobID, chantypes.NetworkContext{ChainID: 1}, 1000, nil)
	require.NoError(t, err)
	_, err = aliceEngine.Deposit(ctx, channelAddr, asset, nil)
	require.NoError(t, err)

	// Bob holds the deposited balance (undeployed-channel policy).
	var transferID chantypes.TransferID
	transferID[0] = 0x09
	_, err = bobEngine.CreateTransfer(ctx, channelAddr, validator.CreateParams{
		TransferID:           transferID,
		AssetID:              asset,
		Amount:               big.NewInt(30),
		TransferDefinition:   common.HexToAddress("0xee"),
		TransferTimeout:      1,
		TransferInitialState: []byte("state"),
		TransferEncodings:    [2]string{"uint256", "bytes"},
	})
	require.NoError(t, err)

	sweeper := NewSweeper(aliceEngine, time.Hour)
	sweeper.now = func() time.Time { return time.Unix(1000, 0) }
	sweeper.sweepOnce()

	active, err := aliceEngine.store.GetActiveTransfers(channelAddr)
	require.NoError(t, err)
	assert.Empty(t, active)
}
