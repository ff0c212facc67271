package store

import (
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// PostgresTransfers persists per-transfer rows, grounded on the same
// PostgresOutputs query/scan shape the teacher uses for spendable
// outputs (internal/db/outputs.go's FindSpendableByOwnerAmount), adapted
// to transfers instead of UTXOs.
type PostgresTransfers struct {
	db *sql.DB
}

func (p *PostgresTransfers) GetActiveTransfers(channel common.Address) ([]*chantypes.Transfer, error) {
	rows, err := p.db.Query(`
		SELECT state FROM transfers WHERE channel_address = $1 AND active
	`, channel.Hex())
	if err != nil {
		return nil, storeErr("GetActiveTransfers", err)
	}
	defer rows.Close()
	return scanTransferRows(rows)
}

func (p *PostgresTransfers) GetTransferState(id chantypes.TransferID) (*chantypes.Transfer, error) {
	row := p.db.QueryRow(`SELECT state FROM transfers WHERE transfer_id = $1`, hexTransferID(id))
	var raw []byte
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("GetTransferState", err)
	}
	t, err := decodeTransfer(raw)
	if err != nil {
		return nil, storeErr("GetTransferState", err)
	}
	return t, nil
}

func (p *PostgresTransfers) GetTransfers(filter TransferFilter) ([]*chantypes.Transfer, error) {
	query := `SELECT state FROM transfers WHERE true`
	var args []interface{}
	if filter.Channel != (common.Address{}) {
		args = append(args, filter.Channel.Hex())
		query += " AND channel_address = $" + placeholder(len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += " AND active = $" + placeholder(len(args))
	}

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("GetTransfers", err)
	}
	defer rows.Close()
	return scanTransferRows(rows)
}

func upsertTransfer(tx *sql.Tx, t *chantypes.Transfer) error {
	encoded, err := encodeTransfer(t)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO transfers (transfer_id, channel_address, active, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transfer_id) DO UPDATE SET
			active = EXCLUDED.active,
			state = EXCLUDED.state
	`, hexTransferID(t.TransferID), t.ChannelAddress.Hex(), t.Active(), encoded)
	return err
}

func scanTransferRows(rows *sql.Rows) ([]*chantypes.Transfer, error) {
	var out []*chantypes.Transfer
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := decodeTransfer(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func hexTransferID(id chantypes.TransferID) string {
	return common.Hash(id).Hex()
}

func placeholder(n int) string {
	return fmt.Sprintf("%d", n)
}
