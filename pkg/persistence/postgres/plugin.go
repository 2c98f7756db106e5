// Package postgres provides a PostgreSQL persistence plugin backed by the
// pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"
)

// Config holds PostgreSQL connection parameters.
type Config struct {
	DSN                string `json:"dsn"`
	MaxOpenConns       int    `json:"maxOpenConns,omitempty"`
	MaxIdleConns       int    `json:"maxIdleConns,omitempty"`
	ConnTimeoutSeconds int    `json:"connTimeoutSeconds,omitempty"`
}

func (c *Config) loadDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnTimeoutSeconds <= 0 {
		c.ConnTimeoutSeconds = 5
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("dsn required")
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS classification_results (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	body        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS classification_history (
	key         TEXT PRIMARY KEY,
	body        BYTEA NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);`

// Plugin implements PluginPersistence on PostgreSQL.
type Plugin struct {
	db          *sql.DB
	tz          *time.Location
	connTimeout time.Duration
}

// NewPlugin opens the pool and ensures the schema exists.
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, fmt.Errorf("postgres persistence config: %w", err)
	}
	cfg.loadDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("postgres persistence config: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	p := &Plugin{db: db, tz: config.Timezone, connTimeout: time.Duration(cfg.ConnTimeoutSeconds) * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), p.connTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return p, nil
}

func (p *Plugin) ResultStorage() persistence.ResultStorage   { return &resultStorage{p: p} }
func (p *Plugin) HistoryStorage() persistence.HistoryStorage { return &historyStorage{p: p} }

func (p *Plugin) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.connTimeout)
	defer cancel()
	return p.db.PingContext(ctx)
}

func (p *Plugin) Close() error { return p.db.Close() }

func (p *Plugin) now() time.Time { return time.Now().In(p.tz) }

func init() {
	persistence.RegisterProvider("postgres", NewPlugin)
}

type resultStorage struct{ p *Plugin }

func (s *resultStorage) SaveResult(ctx context.Context, rec domain.Result) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	const q = `
INSERT INTO classification_results (id, status, file_name, body, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`
	if _, err := s.p.db.ExecContext(ctx, q, rec.ID, string(rec.State), rec.SourceName, body, rec.CreatedAt, s.p.now()); err != nil {
		return fmt.Errorf("upsert result %s: %w", rec.ID, err)
	}
	return nil
}

func (s *resultStorage) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	var body []byte
	err := s.p.db.QueryRowContext(ctx, `SELECT body FROM classification_results WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select result %s: %w", id, err)
	}
	var rec domain.Result
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &rec, nil
}

type historyStorage struct{ p *Plugin }

func (s *historyStorage) Load(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.p.db.QueryRowContext(ctx, `SELECT body FROM classification_history WHERE key = $1`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select history %s: %w", key, err)
	}
	return body, nil
}

func (s *historyStorage) Save(ctx context.Context, key string, blob []byte) error {
	const q = `
INSERT INTO classification_history (key, body, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`
	if _, err := s.p.db.ExecContext(ctx, q, key, blob, s.p.now()); err != nil {
		return fmt.Errorf("upsert history %s: %w", key, err)
	}
	return nil
}
