package store

import (
	"database/sql"
	"strings"

	_ "github.com/lib/pq"

	"github.com/go-errors/errors"

	"github.com/kyokan/statechannel/internal/errs"
)

// withTx is the teacher's internal/db.NewTransactor, carried over
// unchanged: begin, run txFunc, commit on success, rollback on error or
// panic (re-panicking after rollback so a caller's recover still sees
// the original panic).
func withTx(db *sql.DB, txFunc func(*sql.Tx) error) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = txFunc(tx)
	return err
}

// PostgresStore is the Store implementation, composed of sub-stores that
// all share one *sql.DB, matching the teacher's db.DB/PostgresOutputs
// split.
type PostgresStore struct {
	db *sql.DB

	*PostgresChannels
	*PostgresTransfers
	*PostgresWithdrawals
	*PostgresTransactions
}

func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	parts := strings.Split(dbURL, "://")
	if len(parts) != 2 {
		return nil, errors.New("malformed database URL")
	}
	if parts[0] != "postgres" {
		return nil, errors.New("only postgres databases are supported")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}

	return &PostgresStore{
		db:                    db,
		PostgresChannels:      &PostgresChannels{db: db},
		PostgresTransfers:     &PostgresTransfers{db: db},
		PostgresWithdrawals:   &PostgresWithdrawals{db: db},
		PostgresTransactions:  &PostgresTransactions{db: db},
	}, nil
}

func (p *PostgresStore) Connect() error {
	return p.db.Ping()
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func storeErr(method string, err error) error {
	if err == nil {
		return nil
	}
	return errs.StoreErr(nil, method, err)
}
