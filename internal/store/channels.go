package store

import (
	"database/sql"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// PostgresChannels persists ChannelState rows keyed by channel address,
// grounded on the teacher's PostgresChannels (internal/db/channels.go) —
// same Save/FindById shape, generalized to the richer domain type and to
// the atomic multi-row save spec.md §6 requires.
type PostgresChannels struct {
	db *sql.DB
}

func (p *PostgresChannels) GetChannelState(channel common.Address) (*chantypes.ChannelState, error) {
	row := p.db.QueryRow(`SELECT state FROM channel_states WHERE channel_address = $1`, channel.Hex())
	state, err := scanChannelStateRow(row)
	if err != nil {
		return nil, storeErr("GetChannelState", err)
	}
	return state, nil
}

func (p *PostgresChannels) GetChannelStateByParticipants(aliceID, bobID chantypes.Identifier, chainID uint64) (*chantypes.ChannelState, error) {
	row := p.db.QueryRow(`
		SELECT state FROM channel_states
		WHERE alice_id = $1 AND bob_id = $2 AND chain_id = $3
	`, string(aliceID), string(bobID), chainID)
	state, err := scanChannelStateRow(row)
	if err != nil {
		return nil, storeErr("GetChannelStateByParticipants", err)
	}
	return state, nil
}

func (p *PostgresChannels) SaveChannelState(state *chantypes.ChannelState, transfer *chantypes.Transfer) error {
	err := withTx(p.db, func(tx *sql.Tx) error {
		if err := upsertChannelState(tx, state); err != nil {
			return err
		}
		if transfer != nil {
			return upsertTransfer(tx, transfer)
		}
		return nil
	})
	return storeErr("SaveChannelState", err)
}

// SaveChannelStateAndTransfers atomically replaces the channel's active
// transfer set: every currently-active row for this channel is first
// marked inactive (never deleted, so resolved transfers stay queryable
// by GetTransfers) and then the given transfers are upserted back as
// active, so a stale active transfer never survives a resync that
// dropped it from the merkle tree.
func (p *PostgresChannels) SaveChannelStateAndTransfers(state *chantypes.ChannelState, active []*chantypes.Transfer) error {
	err := withTx(p.db, func(tx *sql.Tx) error {
		if err := upsertChannelState(tx, state); err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE transfers SET active = false WHERE channel_address = $1 AND active`, state.ChannelAddress.Hex()); err != nil {
			return err
		}
		for _, t := range active {
			if err := upsertTransfer(tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	return storeErr("SaveChannelStateAndTransfers", err)
}

func upsertChannelState(tx *sql.Tx, state *chantypes.ChannelState) error {
	encoded, err := encodeChannelState(state)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO channel_states (channel_address, alice_id, bob_id, chain_id, nonce, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (channel_address) DO UPDATE SET
			nonce = EXCLUDED.nonce,
			state = EXCLUDED.state
	`,
		state.ChannelAddress.Hex(),
		string(state.AliceID),
		string(state.BobID),
		state.Network.ChainID,
		state.Nonce,
		encoded,
	)
	return err
}

func scanChannelStateRow(row *sql.Row) (*chantypes.ChannelState, error) {
	var raw []byte
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeChannelState(raw)
}
