package store

import (
	"database/sql"

	"github.com/ethereum/go-ethereum/common"
)

// PostgresTransactions persists the on-chain transaction lifecycle records
// TxQueue publishes to internal/events, grounded on the teacher's
// internal/db/utxos.go poll-tracking columns (IsSpent/IsWithdrawn flipped
// by a background scan rather than by the writer itself).
type PostgresTransactions struct {
	db *sql.DB
}

func (p *PostgresTransactions) SaveTransactionResponse(rec *TransactionRecord) error {
	_, err := p.db.Exec(`
		INSERT INTO transactions (tx_hash, signer, operation, status, error, gas_used)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_hash) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			gas_used = EXCLUDED.gas_used
	`, rec.TxHash.Hex(), rec.Signer.Hex(), rec.Operation, rec.Status, rec.Error, rec.GasUsed)
	return storeErr("SaveTransactionResponse", err)
}

func (p *PostgresTransactions) SaveTransactionReceipt(txHash common.Hash, gasUsed uint64) error {
	_, err := p.db.Exec(`
		UPDATE transactions SET status = 'mined', gas_used = $2 WHERE tx_hash = $1
	`, txHash.Hex(), gasUsed)
	return storeErr("SaveTransactionReceipt", err)
}

func (p *PostgresTransactions) SaveTransactionFailure(txHash common.Hash, reason string) error {
	_, err := p.db.Exec(`
		UPDATE transactions SET status = 'failed', error = $2 WHERE tx_hash = $1
	`, txHash.Hex(), reason)
	return storeErr("SaveTransactionFailure", err)
}
