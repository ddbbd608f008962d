package persistence

import (
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

var pgReasons = map[string]string{
	"23505": "duplicate key",
	"23503": "referenced row does not exist",
	"22001": "value too long for column",
	"22P02": "invalid value for column type",
	"23514": "check constraint violated",
	"23502": "required column is null",
}

// describe wraps a driver error with the operation and, for the constraint
// errors uploads usually hit, a short reason naming the constraint.
func describe(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if reason, ok := pgReasons[pgErr.Code]; ok {
			if pgErr.ConstraintName != "" {
				return gerrors.Wrapf(err, "%s: %s (%s)", op, reason, pgErr.ConstraintName)
			}
			if pgErr.ColumnName != "" {
				return gerrors.Wrapf(err, "%s: %s (%s)", op, reason, pgErr.ColumnName)
			}
			return gerrors.Wrapf(err, "%s: %s", op, reason)
		}
	}
	return gerrors.Wrap(err, op)
}
