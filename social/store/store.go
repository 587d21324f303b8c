// Package store reads and writes relationship and membership rows.
//
// Every function takes the *gorm.DB it should run on. Mutations are always
// called with the transaction opened by the social service, so reads that
// feed a decision lock their rows (SELECT ... FOR UPDATE on MySQL; SQLite
// serialises writers through _txlock=immediate instead).
package store

import (
	"errors"
	"fmt"

	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/errs"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// first loads one row into dest, returning (false, nil) when none matches.
func first(tx *gorm.DB, dest interface{}, what string) (bool, error) {
	err := tx.Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load %s: %w", what, err)
	}
	return true, nil
}

// write maps unique-index violations and lock conflicts to Conflict and
// wraps everything else.
func write(err error, what string) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) || IsLockConflict(err) {
		return errs.Conflict("%s changed concurrently; try again", what)
	}
	return fmt.Errorf("store: write %s: %w", what, err)
}

const (
	mysqlDuplicateEntry = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// IsUniqueViolation detects duplicate-key errors. Drivers opened with
// TranslateError return gorm.ErrDuplicatedKey; the driver codes cover
// connections opened without it.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// IsLockConflict reports a transaction that lost a lock race: a MySQL
// deadlock or lock wait timeout (gap locks taken by FOR UPDATE on absent
// rows), or SQLite still busy after its busy timeout. Retrying the whole
// operation is safe.
func IsLockConflict(err error) bool {
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// UserExists reports whether an account with id exists.
func UserExists(tx *gorm.DB, id int64) (bool, error) {
	var n int64
	if err := tx.Model(&model.Account{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("store: load account: %w", err)
	}
	return n > 0, nil
}
