package chantypes

import "errors"

var (
	errMismatchedArrayLengths = errors.New("chantypes: balances/processedDeposits/defundNonces/assetIds length mismatch")
	errDuplicateAssetID       = errors.New("chantypes: duplicate asset id")
)
