package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"dwh/internal/warehouse"
)

// classify maps pgx errors onto warehouse error kinds using the SQLSTATE
// class. Redshift reports S3 and load failures as XX000 with the detail in
// the message, so those are matched on text.
func classify(err error) warehouse.ErrorKind {
	if kind, ok := warehouse.ClassifyCommon(err); ok {
		return kind
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return warehouse.KindConnectivity
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return warehouse.KindUnknown
	}

	code := pgErr.Code
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "28"), strings.HasPrefix(code, "57P"):
		return warehouse.KindConnectivity
	case code == "42501":
		return warehouse.KindAccess
	case strings.HasPrefix(code, "22"):
		return warehouse.KindMalformedData
	case strings.HasPrefix(code, "23"):
		return warehouse.KindConstraint
	}

	msg := strings.ToLower(pgErr.Message + " " + pgErr.Detail)
	switch {
	case strings.Contains(msg, "s3serviceexception"),
		strings.Contains(msg, "access denied"),
		strings.Contains(msg, "not authorized to perform"):
		return warehouse.KindAccess
	case strings.Contains(msg, "stl_load_errors"),
		strings.Contains(msg, "invalid input syntax"),
		strings.Contains(msg, "jsonpath"):
		return warehouse.KindMalformedData
	}
	return warehouse.KindUnknown
}
