package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	// Blind import support for sqlite3.
	_ "github.com/mattn/go-sqlite3"
)

// MySQLConfig describes how to reach a MySQL server.
type MySQLConfig struct {
	// Server is the TCP endpoint (IP/DNS and port).
	Server string
	User   string
	// PasswordFile holds the password of User. Surrounding whitespace is ignored.
	PasswordFile string
	DBName       string
}

// OpenSQLite opens (or creates) the sqlite DB at path and makes sure the table exists.
func OpenSQLite(ctx context.Context, path, identifier string) (*SQL, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite DB %q: %w", path, err)
	}
	s := &SQL{DB: db, Dialect: DialectSQLite, Identifier: identifier}
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMySQL connects to a MySQL DB and makes sure the table exists.
func OpenMySQL(ctx context.Context, c *MySQLConfig, identifier string) (*SQL, error) {
	pass, err := os.ReadFile(c.PasswordFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read MySQL password file %q: %w", c.PasswordFile, err)
	}
	cfg := mysql.Config{
		User:                 c.User,
		Passwd:               strings.TrimSpace(string(pass)),
		Net:                  "tcp",
		Addr:                 c.Server,
		DBName:               c.DBName,
		AllowNativePasswords: true,
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open MySQL DB %q: %w", c.Server, err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	s := &SQL{DB: db, Dialect: DialectMySQL, Identifier: identifier}
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
