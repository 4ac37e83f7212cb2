package db

import (
	"errors"

	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/store"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// constraintErrors maps unique constraints to store sentinels.
var constraintErrors = map[string]*errs.Error{
	"organizations_name_key": store.ErrOrganizationExists,
	"organizations_role_key": store.ErrOrganizationExists,
	"users_login_key":        store.ErrLoginExists,
	"roles_role_key":         store.ErrRoleExists,
}

// mapPostgresError maps PostgreSQL errors to coded errors.
// Returns the original error if it is not a PostgreSQL error.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		if sentinel, ok := constraintErrors[pgErr.ConstraintName]; ok {
			return &errs.Error{Code: sentinel.Code, Msg: sentinel.Msg, Err: sentinel}
		}
		return &errs.Error{Code: errs.EConflict, Msg: "unique constraint violation: " + pgErr.ConstraintName, Err: err}

	case pgerrcode.ForeignKeyViolation:
		return &errs.Error{Code: errs.ENotFound, Msg: "referenced row not found", Err: err}

	case pgerrcode.CheckViolation:
		return &errs.Error{Code: errs.EInvalid, Msg: "check constraint violation: " + pgErr.ConstraintName, Err: err}

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return &errs.Error{Code: errs.EConflict, Msg: "transaction conflict", Err: err}

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.TooManyConnections:
		return &errs.Error{Code: errs.EUnavailable, Msg: "database unavailable", Err: err}

	default:
		return err
	}
}
