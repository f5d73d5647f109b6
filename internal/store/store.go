package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/AdamBeresnev/op-knockout/internal/db"
	"github.com/jmoiron/sqlx"
)

// Every store method takes an optional executor so the same query can run
// inside a caller's transaction (*sqlx.Tx) or directly on the pool (nil).
func executor(database *sqlx.DB, q sqlx.ExtContext) sqlx.ExtContext {
	if q == nil {
		return database
	}
	return q
}

func translateError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", what, bracket.ErrNotFound)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", what, bracket.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, bracket.ErrNotFound)
	}
	return nil
}
