// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// nonTransientPhrases are checked BEFORE any transient-pattern matching.
// A password-authentication failure, for example, also contains no
// transient substrings, but if the check order were ever reversed
// (transient-first) a future transient phrase could accidentally shadow
// an auth failure and trigger a retry storm against a database that will
// never accept the credentials.
var nonTransientPhrases = []string{
	"password authentication failed",
	"permission denied",
	"does not exist", // e.g. "role \"x\" does not exist", "database \"x\" does not exist"
	"authentication failed",
}

// transientPhrases match connection-level failures worth retrying:
// pool exhaustion, dropped connections, reconnect races.
var transientPhrases = []string{
	"connection refused",
	"connection reset",
	"pool timeout",
	"pool exhausted",
	"too many connections",
	"server closed the connection",
	"broken pipe",
	"i/o timeout",
	"context deadline exceeded",
	"can't reach database",
	"prepared statement", // "prepared statement ... does not exist" after a failover
}

// transientPrismaCodes documents the historical Prisma error codes this
// classifier's contract was carried over from. This service has no
// Prisma dependency; pgx surfaces SQLSTATE
// codes instead, handled by [transientSQLStates] below; but the literal
// codes are kept here as a compatibility table so the documented
// classification property (`P1001` => transient, `P1000` => not) holds
// for any caller that still passes one through as plain text.
var transientPrismaCodes = map[string]bool{
	"P1001": true, // Can't reach database server
	"P1002": true, // Database server was reached but timed out
	"P1008": true, // Operations timed out
	"P1017": true, // Server has closed the connection
	"P2024": true, // Timed out fetching a connection from the pool
	"P2028": true, // Transaction API error
}

// transientSQLStates are Postgres SQLSTATE classes worth retrying:
// connection exceptions (Class 08) and the lock/deadlock classes that
// resolve themselves on a short retry.
var transientSQLStates = map[string]bool{
	pgerrcode.ConnectionException:                           true,
	pgerrcode.ConnectionDoesNotExist:                         true,
	pgerrcode.ConnectionFailure:                              true,
	pgerrcode.SQLClientUnableToEstablishSQLConnection:        true,
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection:  true,
	pgerrcode.TransactionResolutionUnknown:                   true,
	pgerrcode.DeadlockDetected:                              true,
	pgerrcode.SerializationFailure:                          true,
	pgerrcode.LockNotAvailable:                              true,
}

// IsTransient reports whether err represents a transient database
// failure worth retrying.
//
// Authentication and authorization failures are always classified
// non-transient, checked before any transient pattern, to avoid a retry
// storm against credentials that will never start working.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	// "prepared statement ... does not exist" (a failover artifact) must
	// be recognized ahead of the non-transient sweep, whose "does not
	// exist" phrase would otherwise misfile it as permanent.
	if strings.Contains(msg, "prepared statement") {
		return true
	}

	for _, phrase := range nonTransientPhrases {
		if strings.Contains(msg, phrase) {
			return false
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientSQLStates[pgErr.Code]
	}

	for code, transient := range transientPrismaCodes {
		if strings.Contains(err.Error(), code) {
			return transient
		}
	}

	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}

	return false
}

// WrapClassified is [Wrap] extended with the ingestion backbone's
// transient/permanent DB distinction, used by workers (which must decide
// whether to retry) rather than HTTP handlers (which only need
// "NotFound" vs "Internal").
func WrapClassified(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return apperr.Conflict(action + ": duplicate row")
	}

	if IsTransient(err) {
		return apperr.TransientDB(err)
	}
	return apperr.PermanentDB(err)
}
