package chain

import (
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
)

// DefaultRetries is the bounded retry count for chain reads (spec.md §7).
const DefaultRetries = 5

// DefaultBackoff is the base of the exponential backoff between read
// retries; attempt N sleeps DefaultBackoff * 2^N.
const DefaultBackoff = 100 * time.Millisecond

// Retrier wraps a Reader in the bounded-retry policy from spec.md §7. This
// is a real bounded loop, unlike the malformed `for(attempt=1;attempt++;
// attempt<retries)` construct in the system this spec was distilled from,
// which increments before testing and never terminates on its own; see
// DESIGN.md.
type Retrier struct {
	inner   Reader
	retries int
	backoff time.Duration
	sleep   func(time.Duration)
}

func NewRetrier(inner Reader) *Retrier {
	return NewRetrierWithRetries(inner, DefaultRetries)
}

// NewRetrierWithRetries lets callers override spec.md §7's default bound
// (5 for chain reads), e.g. from the engine's --chain-retries flag.
func NewRetrierWithRetries(inner Reader, retries int) *Retrier {
	return &Retrier{
		inner:   inner,
		retries: retries,
		backoff: DefaultBackoff,
		sleep:   time.Sleep,
	}
}

func withRetry[T any](r *Retrier, ctx map[string]interface{}, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < r.retries; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !errs.Is(err, errs.Transient) {
			return zero, err
		}
		if attempt < r.retries-1 {
			r.sleep(time.Duration(float64(r.backoff) * math.Pow(2, float64(attempt))))
		}
	}
	ctx["attempts"] = r.retries
	return zero, errs.TransientErr(ctx, "chain read exhausted %d retries: %v", r.retries, lastErr)
}

func (r *Retrier) GetCode(address common.Address) ([]byte, error) {
	return withRetry(r, map[string]interface{}{"op": "getCode", "address": address.Hex()}, func() ([]byte, error) {
		return r.inner.GetCode(address)
	})
}

func (r *Retrier) GetTotalDepositsAlice(channel, asset common.Address) (*big.Int, error) {
	return withRetry(r, map[string]interface{}{"op": "getTotalDepositsAlice", "channel": channel.Hex()}, func() (*big.Int, error) {
		return r.inner.GetTotalDepositsAlice(channel, asset)
	})
}

func (r *Retrier) GetTotalDepositsBob(channel, asset common.Address) (*big.Int, error) {
	return withRetry(r, map[string]interface{}{"op": "getTotalDepositsBob", "channel": channel.Hex()}, func() (*big.Int, error) {
		return r.inner.GetTotalDepositsBob(channel, asset)
	})
}

func (r *Retrier) GetChannelAddress(alice, bob, factory common.Address) (common.Address, error) {
	return withRetry(r, map[string]interface{}{"op": "getChannelAddress"}, func() (common.Address, error) {
		return r.inner.GetChannelAddress(alice, bob, factory)
	})
}

func (r *Retrier) GetRegisteredTransferByName(name string, registry common.Address) (*RegisteredTransfer, error) {
	return withRetry(r, map[string]interface{}{"op": "getRegisteredTransferByName", "name": name}, func() (*RegisteredTransfer, error) {
		return r.inner.GetRegisteredTransferByName(name, registry)
	})
}

func (r *Retrier) GetRegisteredTransferByDefinition(definition, registry common.Address) (*RegisteredTransfer, error) {
	return withRetry(r, map[string]interface{}{"op": "getRegisteredTransferByDefinition", "definition": definition.Hex()}, func() (*RegisteredTransfer, error) {
		return r.inner.GetRegisteredTransferByDefinition(definition, registry)
	})
}

func (r *Retrier) GetRegisteredTransfers(registry common.Address) ([]*RegisteredTransfer, error) {
	return withRetry(r, map[string]interface{}{"op": "getRegisteredTransfers"}, func() ([]*RegisteredTransfer, error) {
		return r.inner.GetRegisteredTransfers(registry)
	})
}

func (r *Retrier) Create(initialState []byte, balance chantypes.Balance, definition, registry common.Address) (bool, error) {
	return withRetry(r, map[string]interface{}{"op": "create", "definition": definition.Hex()}, func() (bool, error) {
		return r.inner.Create(initialState, balance, definition, registry)
	})
}

func (r *Retrier) Resolve(transferID chantypes.TransferID, definition common.Address, resolver []byte) (chantypes.Balance, error) {
	return withRetry(r, map[string]interface{}{"op": "resolve", "definition": definition.Hex()}, func() (chantypes.Balance, error) {
		return r.inner.Resolve(transferID, definition, resolver)
	})
}

func (r *Retrier) GetChannelDispute(channel common.Address) (*ChannelDispute, bool, error) {
	type result struct {
		dispute *ChannelDispute
		ok      bool
	}
	res, err := withRetry(r, map[string]interface{}{"op": "getChannelDispute", "channel": channel.Hex()}, func() (result, error) {
		d, ok, err := r.inner.GetChannelDispute(channel)
		return result{d, ok}, err
	})
	return res.dispute, res.ok, err
}

func (r *Retrier) GetOnchainBalance(asset, holder common.Address) (*big.Int, error) {
	return withRetry(r, map[string]interface{}{"op": "getOnchainBalance", "holder": holder.Hex()}, func() (*big.Int, error) {
		return r.inner.GetOnchainBalance(asset, holder)
	})
}

func (r *Retrier) GetWithdrawalTransactionRecord(commitment [32]byte, channel common.Address) (bool, error) {
	return withRetry(r, map[string]interface{}{"op": "getWithdrawalTransactionRecord", "channel": channel.Hex()}, func() (bool, error) {
		return r.inner.GetWithdrawalTransactionRecord(commitment, channel)
	})
}
