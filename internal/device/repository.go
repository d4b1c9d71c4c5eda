package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines device entry persistence.
type Repository interface {
	// Get retrieves the entry for a device id.
	// Returns ErrEntryNotFound if the device is not configured.
	Get(ctx context.Context, deviceID string) (*Entry, error)

	// List retrieves every entry ordered by name.
	List(ctx context.Context) ([]Entry, error)

	// Create inserts a new entry.
	// Returns ErrEntryExists if the device id is already configured.
	Create(ctx context.Context, entry *Entry) error

	// Update replaces the config of an existing entry.
	// Returns ErrEntryNotFound if the device is not configured.
	Update(ctx context.Context, entry *Entry) error

	// Delete removes the entry for a device id.
	// Returns ErrEntryNotFound if the device is not configured.
	Delete(ctx context.Context, deviceID string) error

	// UpgradeEntries moves legacy entries to the current version and
	// returns how many were changed.
	UpgradeEntries(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open SQLite connection
// whose schema has been migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = `id, device_id, version, source, name, model, username, password,
	mqtt_host, mqtt_port, created_at, updated_at`

// Get retrieves the entry for a device id.
func (r *SQLiteRepository) Get(ctx context.Context, deviceID string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM device_entries WHERE device_id = ?`,
		NormalizeID(deviceID))

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying device entry: %w", err)
	}
	return e, nil
}

// List retrieves every entry ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM device_entries ORDER BY name, device_id`)
	if err != nil {
		return nil, fmt.Errorf("querying device entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry. Timestamps are set here.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Version == 0 {
		e.Version = VersionCurrent
	}
	if e.Source == "" {
		e.Source = SourceAPI
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Config.DeviceID,
		e.Version,
		string(e.Source),
		e.Config.Name,
		nullableString(e.Config.Model),
		nullableString(e.Config.Username),
		nullableString(e.Config.Password),
		nullableString(e.Config.MQTTHost),
		nullableInt(e.Config.MQTTPort),
		e.CreatedAt.Format(time.RFC3339),
		e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting device entry: %w", err)
	}
	return nil
}

// Update replaces the config of an existing entry, matched by device id.
func (r *SQLiteRepository) Update(ctx context.Context, e *Entry) error {
	e.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE device_entries SET
			version = ?, source = ?, name = ?, model = ?, username = ?, password = ?,
			mqtt_host = ?, mqtt_port = ?, updated_at = ?
		WHERE device_id = ?`,
		e.Version,
		string(e.Source),
		e.Config.Name,
		nullableString(e.Config.Model),
		nullableString(e.Config.Username),
		nullableString(e.Config.Password),
		nullableString(e.Config.MQTTHost),
		nullableInt(e.Config.MQTTPort),
		e.UpdatedAt.Format(time.RFC3339),
		e.Config.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("updating device entry: %w", err)
	}
	return expectOneRow(result)
}

// Delete removes the entry for a device id.
func (r *SQLiteRepository) Delete(ctx context.Context, deviceID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM device_entries WHERE device_id = ?", NormalizeID(deviceID))
	if err != nil {
		return fmt.Errorf("deleting device entry: %w", err)
	}
	return expectOneRow(result)
}

// UpgradeEntries assigns DefaultModel to legacy entries without a model
// and marks every legacy entry as current.
func (r *SQLiteRepository) UpgradeEntries(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE device_entries SET
			model = COALESCE(NULLIF(model, ''), ?),
			version = ?,
			updated_at = ?
		WHERE version < ?`,
		DefaultModel,
		VersionCurrent,
		time.Now().UTC().Format(time.RFC3339),
		VersionCurrent,
	)
	if err != nil {
		return 0, fmt.Errorf("upgrading device entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                                   Entry
		source                              string
		model, username, password, mqttHost sql.NullString
		mqttPort                            sql.NullInt64
		createdAt, updatedAt                string
	)

	if err := row.Scan(
		&e.ID,
		&e.Config.DeviceID,
		&e.Version,
		&source,
		&e.Config.Name,
		&model,
		&username,
		&password,
		&mqttHost,
		&mqttPort,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	e.Source = Source(source)
	e.Config.Model = model.String
	e.Config.Username = username.String
	e.Config.Password = password.String
	e.Config.MQTTHost = mqttHost.String
	e.Config.MQTTPort = int(mqttPort.Int64)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this package
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by this package

	return &e, nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// nullableString stores empty strings as NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullableInt stores zero as NULL.
func nullableInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
