// Package wire defines the three messages the update protocol exchanges
// over the p2p transport (spec.md §6): a proposed or countersigned
// ChannelUpdate, an acknowledgement, and a structured protocol error.
// Each is an lnwire.Message-shaped struct (MsgType/Encode/Decode),
// grounded on the teacher's pkg/wire/message.go framing and
// pkg/wire/open_channel.go's per-field Decode/Encode pair. The teacher's
// element readers/writers are tailored to LN's fixed HTLC/channel-open
// fields; ChannelUpdate's nested per-asset arrays and typed Details
// structs don't fit that shape, so ProtocolUpdate and ProtocolError carry
// a length-prefixed JSON payload (the same encoding
// internal/store/codec.go already uses to persist these same types).
// ProtocolUpdateAck, whose fields are all fixed-size apart from its
// length-prefixed signature, uses a fixed binary layout instead.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/lnwire"
)

const (
	MsgProtocolUpdate    lnwire.MessageType = 40000
	MsgProtocolUpdateAck lnwire.MessageType = 40001
	MsgProtocolError     lnwire.MessageType = 40002
)

// MsgWithdrawCommitment and MsgWithdrawCommitmentAck are declared in
// withdraw_commitment.go alongside the message types they tag.

// MakeEmptyMessage constructs a zero-valued message for msgType so
// ReadMessage can decode into it. Mirrors the teacher's
// makeEmptyMessage switch.
func MakeEmptyMessage(msgType lnwire.MessageType) (lnwire.Message, error) {
	switch msgType {
	case MsgProtocolUpdate:
		return &ProtocolUpdate{}, nil
	case MsgProtocolUpdateAck:
		return &ProtocolUpdateAck{}, nil
	case MsgProtocolError:
		return &ProtocolError{}, nil
	case MsgWithdrawCommitment:
		return &WithdrawCommitment{}, nil
	case MsgWithdrawCommitmentAck:
		return &WithdrawCommitmentAck{}, nil
	default:
		return nil, errors.New("unknown message type")
	}
}

// writeJSONPayload writes v as a 4-byte-length-prefixed JSON blob.
func writeJSONPayload(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(payload)))
	if _, err := w.Write(l[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// readJSONPayload reads a 4-byte-length-prefixed JSON blob into v.
func readJSONPayload(r io.Reader, v interface{}) error {
	var l [4]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(l[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

// MsgPrefix tags every frame on the wire, mirroring the teacher's
// pkg/wire.MsgPrefix framing constant.
const MsgPrefix = 0xbeef

// WriteMessage writes msg prefixed with MsgPrefix, exactly as the
// teacher's pkg/wire.WriteMessage does for lnwire.Message values.
func WriteMessage(w io.Writer, msg lnwire.Message) (int, error) {
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(MsgPrefix))
	n, err := w.Write(prefix[:])
	if err != nil {
		return n, err
	}
	written, err := lnwire.WriteMessage(w, msg, 0)
	return n + written, err
}

// ReadMessage reads and decodes a single prefixed frame.
func ReadMessage(r io.Reader) (lnwire.Message, error) {
	var pfx [2]byte
	if _, err := io.ReadFull(r, pfx[:]); err != nil {
		return nil, err
	}
	if binary.BigEndian.Uint16(pfx[:]) != MsgPrefix {
		return nil, errors.New("invalid message prefix")
	}

	var mType [2]byte
	if _, err := io.ReadFull(r, mType[:]); err != nil {
		return nil, err
	}
	msgType := lnwire.MessageType(binary.BigEndian.Uint16(mType[:]))

	msg, err := MakeEmptyMessage(msgType)
	if err != nil {
		return nil, err
	}
	if err := msg.Decode(r, 0); err != nil {
		return nil, err
	}
	return msg, nil
}
