package chain

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/internal/events"
)

type orderingWriter struct {
	mu    sync.Mutex
	order []string
}

func (w *orderingWriter) Dispute(common.Address, *chantypes.ChannelState, []byte) (common.Hash, error) {
	return common.Hash{}, nil
}
func (w *orderingWriter) Deploy(common.Address, common.Address, common.Address) (common.Hash, error) {
	return common.Hash{}, nil
}
func (w *orderingWriter) Deposit(channel common.Address, asset common.Address, amount *big.Int) (common.Hash, error) {
	w.mu.Lock()
	w.order = append(w.order, amount.String())
	w.mu.Unlock()
	return common.Hash{}, nil
}
func (w *orderingWriter) Withdraw(*chantypes.WithdrawCommitment) (common.Hash, error) {
	return common.Hash{}, nil
}
func (w *orderingWriter) Approve(common.Address, common.Address, *big.Int) (common.Hash, error) {
	return common.Hash{}, nil
}

func TestQueuedWriter_SerializesSameSigner(t *testing.T) {
	inner := &orderingWriter{}
	bus := events.NewBus()
	q := NewQueuedWriter(inner, NewTxQueue(bus))
	channel := common.HexToAddress("0x1")

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := q.Deposit(channel, common.Address{}, big.NewInt(int64(n)))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, inner.order, 5)
}

type failingWriter struct {
	calls int
}

func (w *failingWriter) Dispute(common.Address, *chantypes.ChannelState, []byte) (common.Hash, error) {
	return common.Hash{}, nil
}
func (w *failingWriter) Deploy(common.Address, common.Address, common.Address) (common.Hash, error) {
	w.calls++
	return common.Hash{}, errs.TransientErr(nil, "rpc down")
}
func (w *failingWriter) Deposit(common.Address, common.Address, *big.Int) (common.Hash, error) {
	return common.Hash{}, nil
}
func (w *failingWriter) Withdraw(*chantypes.WithdrawCommitment) (common.Hash, error) {
	return common.Hash{}, nil
}
func (w *failingWriter) Approve(common.Address, common.Address, *big.Int) (common.Hash, error) {
	return common.Hash{}, nil
}

func TestQueuedWriter_PublishesFailureAfterRetriesExhausted(t *testing.T) {
	inner := &failingWriter{}
	bus := events.NewBus()
	ch := bus.Subscribe(4)
	q := NewQueuedWriter(inner, NewTxQueue(bus))

	_, err := q.Deploy(common.Address{}, common.HexToAddress("0xa"), common.HexToAddress("0xb"))
	require.Error(t, err)
	assert.Equal(t, DefaultWriteRetries+1, inner.calls)

	select {
	case e := <-ch:
		assert.Equal(t, events.TransactionFailed, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a TransactionFailed event")
	}
}
