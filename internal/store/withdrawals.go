package store

import (
	"database/sql"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// PostgresWithdrawals persists withdrawal commitments, grounded on the
// same PostgresOutputs insert/scan pattern used for the channel and
// transfer stores.
type PostgresWithdrawals struct {
	db *sql.DB
}

func (p *PostgresWithdrawals) SaveWithdrawalCommitment(transferID chantypes.TransferID, commitment *chantypes.WithdrawCommitment) error {
	encoded, err := encodeWithdrawCommitment(commitment)
	if err != nil {
		return storeErr("SaveWithdrawalCommitment", err)
	}
	err = withTx(p.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO withdrawal_commitments (transfer_id, channel_address, commitment)
			VALUES ($1, $2, $3)
			ON CONFLICT (transfer_id) DO UPDATE SET commitment = EXCLUDED.commitment
		`, hexTransferID(transferID), commitment.ChannelAddress.Hex(), encoded)
		return err
	})
	return storeErr("SaveWithdrawalCommitment", err)
}

func (p *PostgresWithdrawals) GetWithdrawalCommitment(transferID chantypes.TransferID) (*chantypes.WithdrawCommitment, error) {
	row := p.db.QueryRow(`SELECT commitment FROM withdrawal_commitments WHERE transfer_id = $1`, hexTransferID(transferID))
	return scanWithdrawalRow(row)
}

func (p *PostgresWithdrawals) GetWithdrawalCommitmentByTransactionHash(hash common.Hash) (*chantypes.WithdrawCommitment, error) {
	row := p.db.QueryRow(`SELECT commitment FROM withdrawal_commitments WHERE tx_hash = $1`, hash.Hex())
	return scanWithdrawalRow(row)
}

func scanWithdrawalRow(row *sql.Row) (*chantypes.WithdrawCommitment, error) {
	var raw []byte
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("GetWithdrawalCommitment", err)
	}
	w, err := decodeWithdrawCommitment(raw)
	if err != nil {
		return nil, storeErr("GetWithdrawalCommitment", err)
	}
	return w, nil
}
