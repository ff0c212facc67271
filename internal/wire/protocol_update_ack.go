package wire

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/lnwire"
)

// ProtocolUpdateAck is returned by the recipient of a ProtocolUpdate once
// it has validated, applied and countersigned it. Signature is the
// recipient's signature over the same commitment hash the proposer
// signed; the proposer verifies it against its own locally-derived next
// state before persisting (spec.md §4.2).
type ProtocolUpdateAck struct {
	ChannelAddress common.Address
	Nonce          uint64
	Signature      []byte
}

func (m *ProtocolUpdateAck) MsgType() lnwire.MessageType {
	return MsgProtocolUpdateAck
}

func (m *ProtocolUpdateAck) MaxPayloadLength(uint32) uint32 {
	return 65535
}

func (m *ProtocolUpdateAck) Decode(r io.Reader, pver uint32) error {
	var addr [20]byte
	if _, err := io.ReadFull(r, addr[:]); err != nil {
		return err
	}
	m.ChannelAddress = common.BytesToAddress(addr[:])

	var nonce [8]byte
	if _, err := io.ReadFull(r, nonce[:]); err != nil {
		return err
	}
	m.Nonce = new(big.Int).SetBytes(nonce[:]).Uint64()

	var sigLen [2]byte
	if _, err := io.ReadFull(r, sigLen[:]); err != nil {
		return err
	}
	m.Signature = make([]byte, uint16(sigLen[0])<<8|uint16(sigLen[1]))
	if _, err := io.ReadFull(r, m.Signature); err != nil {
		return err
	}
	return nil
}

func (m *ProtocolUpdateAck) Encode(w io.Writer, pver uint32) error {
	if _, err := w.Write(m.ChannelAddress.Bytes()); err != nil {
		return err
	}
	var nonce [8]byte
	big.NewInt(0).SetUint64(m.Nonce).FillBytes(nonce[:])
	if _, err := w.Write(nonce[:]); err != nil {
		return err
	}
	sigLen := [2]byte{byte(len(m.Signature) >> 8), byte(len(m.Signature))}
	if _, err := w.Write(sigLen[:]); err != nil {
		return err
	}
	_, err := w.Write(m.Signature)
	return err
}
