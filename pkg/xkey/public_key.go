// Package xkey wraps the secp256k1 keypairs used both for ETH-style
// channel-commitment signing and for the p2p transport's long-term
// identity, grounded on the teacher's pkg/crypto package.
package xkey

import (
	"crypto/ecdsa"
	gocrypto "crypto"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-errors/errors"
)

// PublicKey wraps an ECDSA public key on the secp256k1 curve.
type PublicKey struct {
	backing *ecdsa.PublicKey
}

func RandomPublicKey() (*PublicKey, error) {
	priv, err := ecdsa.GenerateKey(btcec.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return PublicFromOtherPublic(priv.Public())
}

func PublicFromCompressedHex(hex string) (*PublicKey, error) {
	b, err := hexutil.Decode(hex)
	if err != nil {
		return nil, err
	}
	backing, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{backing: backing.ToECDSA()}, nil
}

func PublicFromOtherPublic(pub gocrypto.PublicKey) (*PublicKey, error) {
	backing, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an ECDSA public key")
	}
	return &PublicKey{backing: backing}, nil
}

func PublicFromBTCEC(pub *btcec.PublicKey) (*PublicKey, error) {
	return &PublicKey{backing: pub.ToECDSA()}, nil
}

// Address is the keccak-derived 20-byte account address for this key.
func (p *PublicKey) Address() common.Address {
	pubBytes := elliptic.Marshal(btcec.S256(), p.backing.X, p.backing.Y)
	addrBytes := crypto.Keccak256(pubBytes[1:])[12:]
	return common.BytesToAddress(addrBytes)
}

// Identifier is the long-term public identifier: the compressed-hex
// encoding of the key.
func (p *PublicKey) Identifier() string {
	return p.CompressedHex()
}

func (p *PublicKey) CompressedHex() string {
	return hexutil.Encode(crypto.CompressPubkey(p.backing))
}

// BTCEC re-parses the key as a btcec.PublicKey, for use with libraries
// (brontide, connmgr) that speak that type rather than *ecdsa.PublicKey.
func (p *PublicKey) BTCEC() *btcec.PublicKey {
	pub, err := btcec.ParsePubKey(crypto.CompressPubkey(p.backing))
	if err != nil {
		// p.backing was validated at construction time (ParsePubKey,
		// ToECDSA or ecdsa.GenerateKey), so re-parsing its own
		// compressed form cannot fail.
		panic(err)
	}
	return pub
}

func (p *PublicKey) ECDSA() *ecdsa.PublicKey {
	return p.backing
}

func (p *PublicKey) Bytes() []byte {
	return elliptic.Marshal(btcec.S256(), p.backing.X, p.backing.Y)
}

func (p *PublicKey) Equal(other *PublicKey) bool {
	if other == nil {
		return false
	}
	return p.backing.X.Cmp(other.backing.X) == 0 && p.backing.Y.Cmp(other.backing.Y) == 0
}
