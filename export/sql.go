package export

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/hb9tf/plutoiq/sdr"
)

const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"

	sqliteCreateTableTmpl = "CREATE TABLE IF NOT EXISTS iq (" +
		"`ID`          INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT," +
		"`Identifier`  TEXT NOT NULL," +
		"`Received`    INTEGER," +
		"`Time`        REAL," +
		"`Real`        REAL," +
		"`Imaginary`   REAL" +
		");"
	mysqlCreateTableTmpl = "CREATE TABLE IF NOT EXISTS iq (" +
		"`ID`          BIGINT NOT NULL PRIMARY KEY AUTO_INCREMENT," +
		"`Identifier`  VARCHAR(255) NOT NULL," +
		"`Received`    BIGINT," +
		"`Time`        DOUBLE," +
		"`Real`        DOUBLE," +
		"`Imaginary`   DOUBLE" +
		");"
	sqlInsertRecordTmpl = "INSERT INTO iq (" +
		"`Identifier`, `Received`, `Time`, `Real`, `Imaginary`" +
		") VALUES (?, ?, ?, ?, ?);"
	sqlSelectRecordsTmpl = "SELECT `Time`, `Real`, `Imaginary` FROM iq " +
		"WHERE `Identifier` LIKE ? AND `Received` >= ? AND `Received` <= ? " +
		"ORDER BY `ID` ASC;"
)

// SQL stores records in a sqlite or MySQL table. The table is created on first use.
type SQL struct {
	DB      *sql.DB
	Dialect string
	// Identifier is stored alongside every record to tell sources apart.
	Identifier string

	initOnce sync.Once
	initErr  error
}

func (s *SQL) createTableTmpl() (string, error) {
	switch s.Dialect {
	case DialectSQLite, "":
		return sqliteCreateTableTmpl, nil
	case DialectMySQL:
		return mysqlCreateTableTmpl, nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect %q", s.Dialect)
	}
}

// Init creates the table if it does not exist yet.
func (s *SQL) Init(ctx context.Context) error {
	s.initOnce.Do(func() {
		tmpl, err := s.createTableTmpl()
		if err != nil {
			s.initErr = err
			return
		}
		if _, err := s.DB.ExecContext(ctx, tmpl); err != nil {
			s.initErr = fmt.Errorf("unable to create table: %w", err)
		}
	})
	return s.initErr
}

func (s *SQL) Send(ctx context.Context, records []sdr.Record) error {
	if err := s.Init(ctx); err != nil {
		return &TransmissionError{Sink: s.sink(), Err: err}
	}
	if err := s.insert(ctx, records); err != nil {
		return &TransmissionError{Sink: s.sink(), Err: err}
	}
	return nil
}

func (s *SQL) sink() string {
	if s.Dialect == "" {
		return DialectSQLite
	}
	return s.Dialect
}

func (s *SQL) insert(ctx context.Context, records []sdr.Record) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	statement, err := tx.PrepareContext(ctx, sqlInsertRecordTmpl)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer statement.Close()

	received := time.Now().UnixMilli()
	for _, r := range records {
		if _, err := statement.ExecContext(ctx, s.Identifier, received, r.Time, r.Real, r.Imaginary); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query describes which stored records to read back.
type Query struct {
	// Identifier is matched with LIKE, use "%" for all sources.
	Identifier string
	Start      time.Time
	End        time.Time
}

// Records reads stored records in insertion order.
func (s *SQL) Records(ctx context.Context, q *Query) ([]sdr.Record, error) {
	rows, err := s.DB.QueryContext(ctx, sqlSelectRecordsTmpl, q.Identifier, q.Start.UnixMilli(), q.End.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []sdr.Record
	for rows.Next() {
		var r sdr.Record
		if err := rows.Scan(&r.Time, &r.Real, &r.Imaginary); err != nil {
			return nil, fmt.Errorf("unable to get record from DB: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
