package xkey

import (
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature is a 65-byte secp256k1 ECDSA recoverable signature over a
// keccak hash, the same format go-ethereum's crypto.Sign/SigToPub use.
type Signature []byte

func (s Signature) Bytes() []byte {
	return s
}

// VerifySignature recovers the signer from a 32-byte digest and a
// signature and compares it against expected.
func VerifySignature(digest [32]byte, sig Signature, expected *PublicKey) (bool, error) {
	actualPub, err := crypto.SigToPub(digest[:], sig.Bytes())
	if err != nil {
		return false, err
	}
	pub, err := PublicFromOtherPublic(actualPub)
	if err != nil {
		return false, err
	}
	return pub.Equal(expected), nil
}
