package utils

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

// ParseError means the source file could not be decoded as delimited text
// (malformed quoting/structure). Fatal to the refresh run.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InvalidRowError means a syntactically valid row carried content that could
// not be derived into an order (unparseable date or numeric field). The
// message always names the offending order's business key so the refresh log
// points at the bad record.
type InvalidRowError struct {
	OrderId string
	Field   string
	Err     error
}

func (e *InvalidRowError) Error() string {
	if e.Field == "Date of Sale" {
		return fmt.Sprintf("invalid date format for order %s", e.OrderId)
	}
	return fmt.Sprintf("invalid %s for order %s: %v", e.Field, e.OrderId, e.Err)
}

func (e *InvalidRowError) Unwrap() error { return e.Err }

// IsDuplicateEntryError reports whether err is a MySQL duplicate-key error
// (error 1062). Bulk inserts skip duplicates via ON DUPLICATE KEY; the one
// path that surfaces this is creating a segment whose name is already taken.
func IsDuplicateEntryError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
