package storage

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"marketstore-client/src/logger"
	"marketstore-client/src/models"

	_ "github.com/lib/pq"
)

var schemaUnsafe = regexp.MustCompile(`[^a-z0-9_]+`)

// -----------------------------------------------------------------------------

// PostgresPayloadStore keeps payloads in a schema named after the client.
type PostgresPayloadStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresPayloadStore(cfg *models.MConfig, log *logger.Logger) *PostgresPayloadStore {
	schema := schemaUnsafe.ReplaceAllString(strings.ToLower(cfg.Name), "_")
	if schema == "" {
		schema = "marketstore_client"
	}
	return &PostgresPayloadStore{
		Config: cfg,
		Schema: schema,
		Logger: log,
	}
}

func (d *PostgresPayloadStore) table() string {
	return fmt.Sprintf(`"%s"."stream_payloads"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresPayloadStore) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			stream_key TEXT NOT NULL,
			epoch BIGINT,
			data JSONB NOT NULL,
			received_at BIGINT NOT NULL
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create stream_payloads: %w", err)
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresPayloadStore) SavePayloads(payloads []models.MRecordedPayload) error {
	if len(payloads) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (stream_key, epoch, data, received_at)
		VALUES ($1, $2, $3, $4)
	`, d.table()))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range payloads {
		if _, err := stmt.Exec(p.Key, p.Epoch, p.Data, p.ReceivedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresPayloadStore) LoadPayloads(key string, limit int) ([]models.MRecordedPayload, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`
		SELECT stream_key, epoch, data::text, received_at FROM %s
		WHERE stream_key = $1 ORDER BY id ASC LIMIT $2
	`, d.table()), key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.MRecordedPayload{}
	for rows.Next() {
		var p models.MRecordedPayload
		if err := rows.Scan(&p.Key, &p.Epoch, &p.Data, &p.ReceivedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(p.ReceivedAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresPayloadStore) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	if _, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM %s WHERE received_at < $1`, d.table()), cutoff); err != nil {
		d.Logger.Error("Cleanup stream_payloads error: %v", err)
		return err
	}
	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresPayloadStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
