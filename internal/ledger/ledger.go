// Package ledger writes exported accounts and transactions into a sqlite
// database so they can be queried after the session is gone.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"bankwest-session/internal/scrapers/bankwest"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// the format posted_on is stored in so it sorts as text
const dateFormat = "2006-01-02"

type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the database at `path` and applies the schema,
// ":memory:" gives a throwaway database.
func Open(path string) (Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Ledger{}, err
	}
	// every connection to ":memory:" is its own database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return Ledger{}, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return Ledger{db: db}, nil
}

func (l Ledger) Close() error {
	return l.db.Close()
}

// MakeTx runs `fn` inside a transaction, committing only when it succeeds.
func (l Ledger) MakeTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	err = fn(tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SaveAccounts upserts accounts by their number.
func (l Ledger) SaveAccounts(ctx context.Context, accounts []bankwest.Account, now time.Time) error {
	return l.MakeTx(ctx, func(tx *sql.Tx) error {
		for _, a := range accounts {
			_, err := tx.ExecContext(
				ctx,
				`insert into account(number, name, balance, available, updated_at)
				values (?, ?, ?, ?, ?)
				on conflict(number) do update set
					name = excluded.name,
					balance = excluded.balance,
					available = excluded.available,
					updated_at = excluded.updated_at`,
				a.Number, a.Name, a.Balance.String(), a.Available.String(), now.Unix(),
			)
			if err != nil {
				return fmt.Errorf("ledger: save account %s: %w", a.Number, err)
			}
		}
		return nil
	})
}

// SaveTransactions inserts transactions, rows already present from an
// earlier export of an overlapping range are skipped. It returns how many
// rows were new.
func (l Ledger) SaveTransactions(ctx context.Context, transactions []bankwest.Transaction) (int64, error) {
	var inserted int64
	err := l.MakeTx(ctx, func(tx *sql.Tx) error {
		for _, t := range transactions {
			res, err := tx.ExecContext(
				ctx,
				`insert into bank_transaction(
					bsb, account_number, posted_on, narrative,
					cheque_number, amount, balance, kind
				) values (?, ?, ?, ?, ?, ?, ?, ?)
				on conflict do nothing`,
				t.Bsb, t.AccountNumber, t.Date.In(bankwest.Location).Format(dateFormat), t.Narrative,
				t.ChequeNumber, t.Amount.String(), t.Balance.String(), t.Type,
			)
			if err != nil {
				return fmt.Errorf("ledger: save transaction '%s': %w", t.Narrative, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += n
		}
		return nil
	})
	return inserted, err
}

// Accounts returns every saved account ordered by number.
func (l Ledger) Accounts(ctx context.Context) ([]bankwest.Account, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`select number, name, balance, available from account order by number`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []bankwest.Account
	for rows.Next() {
		var a bankwest.Account
		var balance, available string
		err := rows.Scan(&a.Number, &a.Name, &balance, &available)
		if err != nil {
			return nil, err
		}
		a.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, err
		}
		a.Available, err = decimal.NewFromString(available)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Transactions returns the saved transactions of an account in posting
// order.
func (l Ledger) Transactions(ctx context.Context, bsb, accountNumber string) ([]bankwest.Transaction, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`select bsb, account_number, posted_on, narrative, cheque_number, amount, balance, kind
		from bank_transaction
		where bsb = ? and account_number = ?
		order by posted_on, rowid`,
		bsb, accountNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []bankwest.Transaction
	for rows.Next() {
		var t bankwest.Transaction
		var postedOn, amount, balance string
		err := rows.Scan(
			&t.Bsb, &t.AccountNumber, &postedOn, &t.Narrative,
			&t.ChequeNumber, &amount, &balance, &t.Type,
		)
		if err != nil {
			return nil, err
		}
		t.Date, err = time.ParseInLocation(dateFormat, postedOn, bankwest.Location)
		if err != nil {
			return nil, err
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		t.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
