package validator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/pkg/xkey"
)

// WithdrawParams proposes a direct on-chain withdrawal of off-chain
// channel balance, authorized by a bilaterally-signed WithdrawCommitment
// rather than by advancing the channel's update sequence (spec.md
// §4.1.5's WithdrawCommitment, whose flow the distilled spec names but
// does not spell out). Unlike a ChannelUpdate, a withdrawal does not
// consume a channel nonce — DefundNonces tracks its own per-asset replay
// counter so concurrent withdrawal proposals for different assets never
// collide.
type WithdrawParams struct {
	AssetID   common.Address
	Amount    *big.Int
	Recipient common.Address
	CallTo    common.Address
	CallData  []byte
}

// ValidateWithdraw deducts amount from the withdrawing participant's
// off-chain balance and builds the commitment whose signature(s)
// authorize the channel contract to pay it out. It never touches
// ProcessedDeposits: that counter is the channel's monotonic on-chain
// deposit ledger, used only to detect future deposits, while Balances is
// the current spendable amount a withdrawal draws down directly.
func ValidateWithdraw(prev *chantypes.ChannelState, fromID chantypes.Identifier, p WithdrawParams) (*chantypes.WithdrawCommitment, *chantypes.ChannelState, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, nil, errs.ValidationErr(nil, "withdraw amount must be positive")
	}
	if fromID != prev.AliceID && fromID != prev.BobID {
		return nil, nil, errs.ValidationErr(nil, "withdrawer is not a channel participant")
	}

	idx := prev.AssetIndex(p.AssetID)
	if idx < 0 {
		return nil, nil, errs.ValidationErr(map[string]interface{}{"asset": p.AssetID.Hex()}, "asset has never been deposited on this channel")
	}

	slot := 0
	if fromID == prev.BobID {
		slot = 1
	}

	next := prev.Clone()
	remaining := new(big.Int).Sub(next.Balances[idx].Amount[slot], p.Amount)
	if remaining.Sign() < 0 {
		return nil, nil, errs.ValidationErr(map[string]interface{}{
			"balance": next.Balances[idx].Amount[slot].String(),
			"amount":  p.Amount.String(),
		}, "insufficient balance to withdraw")
	}
	next.Balances[idx].Amount[slot] = remaining

	nonce := next.DefundNonces[idx]
	next.DefundNonces[idx] = nonce + 1

	commitment := &chantypes.WithdrawCommitment{
		ChannelAddress: next.ChannelAddress,
		Alice:          next.Alice,
		Bob:            next.Bob,
		Recipient:      p.Recipient,
		AssetID:        p.AssetID,
		Amount:         new(big.Int).Set(p.Amount),
		Nonce:          nonce,
		CallTo:         p.CallTo,
		CallData:       p.CallData,
	}

	if err := next.CheckInvariants(); err != nil {
		return nil, nil, errs.FatalErr(nil, "invariant violation: %v", err)
	}

	return commitment, next, nil
}

// SignWithdrawCommitment signs w's commitment hash with acc and returns
// the signature, which the caller places into w.AliceSignature or
// w.BobSignature according to acc's role.
func SignWithdrawCommitment(acc *xkey.Account, w *chantypes.WithdrawCommitment) (xkey.Signature, error) {
	return acc.SignDigest(chain.HashWithdrawCommitment(w))
}

// VerifyWithdrawCommitment checks that sig is a valid signature over w's
// commitment hash by the holder of pub.
func VerifyWithdrawCommitment(pub *xkey.PublicKey, w *chantypes.WithdrawCommitment, sig xkey.Signature) (bool, error) {
	return xkey.VerifySignature(chain.HashWithdrawCommitment(w), sig, pub)
}
