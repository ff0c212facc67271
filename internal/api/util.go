package api

import (
	"github.com/go-errors/errors"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/pkg/xkey"
)

func errInvalidAmount(amount string) error {
	return errors.New("cannot parse amount as base-10 integer: " + amount)
}

func randomTransferID() (chantypes.TransferID, error) {
	b, err := xkey.Rand32()
	if err != nil {
		return chantypes.TransferID{}, err
	}
	return chantypes.TransferID(b), nil
}
