// Package errors provides error handling utilities for dwarfdump: deferred
// cleanup helpers and List, the accumulator for recoverable parsing errors.
package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes closer and logs a failure as a warning under msg.
// A nil closer is ignored.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferRollback rolls tx back and logs a failure. Rolling back a committed
// transaction is not a failure.
func DeferRollback(logger zerolog.Logger, tx *sql.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn().Err(err).Msg("Failed to roll back transaction")
	}
}

// Must panics with msg when err is not nil. Only command construction uses it.
func Must(err error, msg string) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", msg, err))
	}
}
