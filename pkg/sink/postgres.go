package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
	"harvester/pkg/models"
)

// Postgres appends records to a table. Each Append is one transaction, so
// a returned nil means the whole batch is committed. The table is a log:
// there is no unique constraint and re-observed records are inserted again.
type Postgres struct {
	pool   *pgxpool.Pool
	table  string
	logger logger.Logger
}

// OpenPostgres connects and creates the table if it does not exist
func OpenPostgres(ctx context.Context, dsn, table string, log logger.Logger) (*Postgres, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	// one sweep writes serially; more connections buy nothing
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, herrors.LocalIO("sink.open", fmt.Errorf("postgres connect: %w", err))
	}

	s := &Postgres{
		pool:   pool,
		table:  quoteTable(table),
		logger: log.WithField("sink", "postgres:"+table),
	}

	if _, err := pool.Exec(ctx, s.createTableSQL()); err != nil {
		pool.Close()
		return nil, herrors.LocalIO("sink.open", fmt.Errorf("create table %s: %w", table, err))
	}

	return s, nil
}

// quoteTable sanitizes "schema.table" or "table" into a quoted identifier
func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

func (s *Postgres) createTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		id           BIGSERIAL PRIMARY KEY,
		natural_key  TEXT NOT NULL DEFAULT '',
		name         TEXT NOT NULL DEFAULT '',
		year         TEXT NOT NULL DEFAULT '',
		kind         TEXT NOT NULL,
		harvested_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
}

func (s *Postgres) insertSQL() string {
	return `INSERT INTO ` + s.table + ` (natural_key, name, year, kind) VALUES ($1, $2, $3, $4)`
}

// Append inserts all records in a single transaction
func (s *Postgres) Append(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return herrors.LocalIO("sink.append", fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	insert := s.insertSQL()
	for _, r := range records {
		b.Queue(insert, r.NaturalKey, r.Name, r.Year, string(r.Kind))
	}

	br := tx.SendBatch(ctx, b)
	for range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return herrors.LocalIO("sink.append", fmt.Errorf("insert: %w", err))
		}
	}
	if err := br.Close(); err != nil {
		return herrors.LocalIO("sink.append", fmt.Errorf("insert: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return herrors.LocalIO("sink.append", fmt.Errorf("commit: %w", err))
	}

	s.logger.DebugWithFields("Records committed", map[string]interface{}{
		"records": len(records),
	})
	return nil
}

// Close releases the connection pool
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
