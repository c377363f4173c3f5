package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type DBConfig struct {
	URL    string
	Schema string
}

type loadedDataset struct {
	Dataset Dataset
	Records []Record
}

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func sanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	if !schemaPattern.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

func openDB(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("database URL missing; set SAFETY_AUDIT_DB_URL or DATABASE_URL")
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// loadAll fetches every dataset in the catalog, at most limit at a time.
func loadAll(ctx context.Context, source Source, catalog Catalog, limit int) ([]loadedDataset, error) {
	entries := catalog.Entries()
	loaded := make([]loadedDataset, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, entry := range entries {
		g.Go(func() error {
			records, err := source.Fetch(gctx, entry.Identifier)
			if err != nil {
				return err
			}
			loaded[i] = loadedDataset{Dataset: entry, Records: records}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// seedDatabase copies the datasets into Postgres when no dataset has been
// seeded yet. It returns the number of datasets inserted.
func seedDatabase(ctx context.Context, db *sql.DB, schema string, datasets []loadedDataset, logger *zap.Logger) (int, error) {
	schema, err := sanitizeSchema(schema)
	if err != nil {
		return 0, err
	}
	if err := ensureSchema(ctx, db, schema); err != nil {
		return 0, err
	}

	var count int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.datasets`, schema)).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Info("datasets already present; skipping seed", zap.Int("datasets", count))
		return 0, nil
	}

	if err := storeDatasetsTx(ctx, db, schema, datasets); err != nil {
		return 0, err
	}
	return len(datasets), nil
}

func storeDatasetsTx(ctx context.Context, db *sql.DB, schema string, datasets []loadedDataset) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insertDatasetSQL := fmt.Sprintf(`
		INSERT INTO %s.datasets (identifier, label, sort_key, record_count)
		VALUES ($1,$2,$3,$4)`, schema)
	insertEventSQL := fmt.Sprintf(`
		INSERT INTO %s.events (
			id, dataset, position, event_date, associate,
			metric_type, metric_subtype, review_outcome
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8
		)`, schema)

	for _, ds := range datasets {
		var sortKey sql.NullInt64
		if ds.Dataset.Valid {
			sortKey = sql.NullInt64{Int64: int64(ds.Dataset.SortKey), Valid: true}
		}
		if _, err = tx.ExecContext(ctx, insertDatasetSQL,
			ds.Dataset.Identifier,
			ds.Dataset.Label,
			sortKey,
			len(ds.Records),
		); err != nil {
			return fmt.Errorf("insert dataset %s: %w", ds.Dataset.Identifier, err)
		}
		for position, record := range ds.Records {
			if _, err = tx.ExecContext(ctx, insertEventSQL,
				uuid.New(),
				ds.Dataset.Identifier,
				position,
				nullString(record.Date),
				nullString(record.Associate),
				nullString(record.MetricType),
				nullString(record.MetricSubtype),
				nullOutcome(record.ReviewOutcome),
			); err != nil {
				return fmt.Errorf("insert event %s[%d]: %w", ds.Dataset.Identifier, position, err)
			}
		}
	}

	return tx.Commit()
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.datasets (
			identifier text PRIMARY KEY,
			label text NOT NULL,
			sort_key integer,
			record_count integer NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.events (
			id uuid PRIMARY KEY,
			dataset text NOT NULL REFERENCES %s.datasets(identifier) ON DELETE CASCADE,
			position integer NOT NULL,
			event_date text,
			associate text,
			metric_type text,
			metric_subtype text,
			review_outcome text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_events_dataset_idx ON %s.events (dataset, position)`, schema, schema))
	return err
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

// nullOutcome keeps an explicit empty outcome distinct from a missing one.
func nullOutcome(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
