package exception

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// mysqlConstraintErrors lists MySQL server error numbers for integrity violations.
var mysqlConstraintErrors = map[uint16]struct{}{
	1048: {}, // ER_BAD_NULL_ERROR
	1062: {}, // ER_DUP_ENTRY
	1216: {}, // ER_NO_REFERENCED_ROW
	1217: {}, // ER_ROW_IS_REFERENCED
	1364: {}, // ER_NO_DEFAULT_FOR_FIELD
	1451: {}, // ER_ROW_IS_REFERENCED_2
	1452: {}, // ER_NO_REFERENCED_ROW_2
	3819: {}, // ER_CHECK_CONSTRAINT_VIOLATED
}

// IsConstraintViolation reports whether err is an integrity constraint failure
// raised by one of the supported drivers.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}

	// SQLSTATE class 23: integrity_constraint_violation.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := mysqlConstraintErrors[myErr.Number]
		return ok
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
