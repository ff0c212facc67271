package xkey

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is a local signing key: a channel participant's long-term ETH
// key, used both to sign channel commitments and to derive the
// participant's Identifier/Address.
type Account struct {
	key *ecdsa.PrivateKey
}

func NewAccount(keyHex string) (*Account, error) {
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, err
	}
	return &Account{key: key}, nil
}

// SignDigest signs a 32-byte digest (e.g. a channel commitment hash) and
// returns a recoverable signature.
func (a *Account) SignDigest(digest [32]byte) (Signature, error) {
	sig, err := crypto.Sign(digest[:], a.key)
	if err != nil {
		return nil, err
	}
	return Signature(sig), nil
}

func (a *Account) PublicKey() *PublicKey {
	pub, err := PublicFromOtherPublic(a.key.Public())
	if err != nil {
		// a.key was parsed by crypto.HexToECDSA, which always yields
		// a key on the secp256k1 curve.
		panic(err)
	}
	return pub
}

func (a *Account) Address() common.Address {
	return a.PublicKey().Address()
}

func (a *Account) Identifier() string {
	return a.PublicKey().Identifier()
}

// BTCEC re-derives this account's private key as a btcec.PrivateKey, for
// use with libraries (brontide) that speak that type rather than
// *ecdsa.PrivateKey. Mirrors PublicKey.BTCEC.
func (a *Account) BTCEC() *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(a.key.D.Bytes())
	return priv
}

// Transactor builds a *bind.TransactOpts signed by this account, grounded
// on the teacher's internal/wallet/key_manager.go NewTransactor. gasLimit
// of 0 leaves gas estimation to the node.
func (a *Account) Transactor(chainID *big.Int, gasLimit uint64) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(a.key, chainID)
	if err != nil {
		return nil, err
	}
	if gasLimit > 0 {
		opts.GasLimit = gasLimit
	}
	return opts, nil
}
