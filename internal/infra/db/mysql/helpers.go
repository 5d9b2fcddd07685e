package mysql

import (
	"database/sql"
	"errors"
	"strings"

	driver "github.com/go-sql-driver/mysql"
)

const errDupEntry = 1062

// stringOrDefault returns def when the input is empty/whitespace
func stringOrDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func isDuplicate(err error) bool {
	var me *driver.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}
