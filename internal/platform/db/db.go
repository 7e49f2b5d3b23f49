package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"SIKON-backend/internal/platform/config"
)

const driverName = "mysql"

// MySQL server error numbers we branch on.
const (
	errDuplicateEntry   = 1062
	errRowIsReferenced  = 1451
	errForeignKeyFailed = 1452
)

func Connect(c config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC&charset=utf8mb4",
		c.Username, c.Password, c.Host, c.Port, c.DBName)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// pool sized for a single API instance behind the MySQL max_connections budget
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// IsDuplicateKey reports whether err is a UNIQUE/PRIMARY key violation.
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

// IsForeignKeyViolation reports whether err is a failed FOREIGN KEY check on insert/update.
func IsForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errForeignKeyFailed
}

// IsRowReferenced reports whether a DELETE/UPDATE failed because child rows still point at the row.
func IsRowReferenced(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errRowIsReferenced
}
