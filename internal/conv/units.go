package conv

import (
	"errors"
	"math/big"
)

// WeiPerEther scales a wei amount for display in the unit on-chain logs
// and RPC arguments are usually quoted in, replacing the teacher's
// BTC-denominated SatoshiToWei/WeiToSatoshi pair (this module's assets
// are ERC20-style, not satoshis).
var WeiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func WeiToEther(wei *big.Int) *big.Float {
	return new(big.Float).Quo(new(big.Float).SetInt(wei), new(big.Float).SetInt(WeiPerEther))
}

func StringToBig(num string) (*big.Int, error) {
	out, success := big.NewInt(0).SetString(num, 10)

	if !success {
		return nil, errors.New("cannot convert " + num + " to bigint")
	}

	return out, nil
}
