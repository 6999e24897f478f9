package storage

import (
	"database/sql"
	"fmt"
	"time"

	"marketstore-client/src/logger"
	"marketstore-client/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLitePayloadStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLitePayloadStore(cfg *models.MConfig, log *logger.Logger) *SQLitePayloadStore {
	return &SQLitePayloadStore{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLitePayloadStore) Initialize() error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS stream_payloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stream_key TEXT NOT NULL,
			epoch INTEGER,
			data TEXT NOT NULL,
			received_at INTEGER NOT NULL
		);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create stream_payloads: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_stream_payloads_key ON stream_payloads (stream_key, received_at)`); err != nil {
		return fmt.Errorf("failed to index stream_payloads: %w", err)
	}

	d.Logger.Info("SQLite payload store ready at %s", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLitePayloadStore) SavePayloads(payloads []models.MRecordedPayload) error {
	if len(payloads) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stream_payloads (stream_key, epoch, data, received_at)
		VALUES (?, ?, ?, ?)
	`)
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

func (d *SQLitePayloadStore) LoadPayloads(key string, limit int) ([]models.MRecordedPayload, error) {
	rows, err := d.DB.Query(`
		SELECT stream_key, epoch, data, received_at FROM stream_payloads
		WHERE stream_key = ? ORDER BY id ASC LIMIT ?
	`, key, limit)
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

func (d *SQLitePayloadStore) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	res, err := d.DB.Exec("DELETE FROM stream_payloads WHERE received_at < ?", cutoff)
	if err != nil {
		d.Logger.Error("Cleanup stream_payloads error: %v", err)
		return err
	}
	n, _ := res.RowsAffected()
	d.Logger.Info("Cleanup removed %d payloads older than %d days", n, retentionDays)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLitePayloadStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
