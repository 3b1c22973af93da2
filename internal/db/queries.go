package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const deviceColumns = `id, workspace_raw, workspace_norm, name_raw, name_norm,
	device_json, created_at, updated_at, deleted_at`

const summaryColumns = `id, workspace_raw, workspace_norm, name_raw, name_norm,
	reference, architecture, stack, short_form, pce, layer_count, warning_count,
	source, created_at, updated_at, deleted_at`

func insert(ctx context.Context, ex execer, d *record.Device) error {
	deviceJSON, err := json.Marshal(d)
	if err != nil {
		return errors.NewInternal(err)
	}
	s := d.ToSummary()

	query := `
		INSERT INTO devices (
			id, workspace_raw, workspace_norm, name_raw, name_norm,
			reference, architecture, stack, short_form, pce,
			layer_count, warning_count, source, search_text, device_json,
			created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = ex.ExecContext(ctx, query,
		d.ID, d.WorkspaceRaw, d.WorkspaceNorm, d.NameRaw, d.NameNorm,
		toNullString(d.Reference), nullIfEmpty(d.Architecture), s.Stack, s.ShortForm, toNullFloat(s.PCE),
		s.LayerCount, s.WarningCount, toNullString(d.Source), d.SearchText(), string(deviceJSON),
		d.CreatedAt, d.UpdatedAt, toNullInt(d.DeletedAt),
	)
	if err != nil {
		return constraintError(err, d)
	}
	return nil
}

// constraintError maps a live-name collision to NAME_ALREADY_EXISTS.
func constraintError(err error, d *record.Device) error {
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, "name_norm") {
		return errors.NewNameAlreadyExists(d.WorkspaceRaw, d.NameRaw)
	}
	return errors.NewInternal(err)
}

// UpsertAll stores devices in one transaction. Each device replaces the live
// device with the same workspace and name, keeping its ID and CreatedAt,
// which are copied back into the device. Otherwise the device is inserted:
// an ID that names a soft-deleted row revives that row, and an ID held by a
// live device elsewhere (or no ID at all) is replaced by one from newID.
// Nothing is stored when any device fails.
func UpsertAll(ctx context.Context, db *sql.DB, devices []*record.Device, newID func() (string, error)) (created, updated int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	for _, d := range devices {
		if ctx.Err() != nil {
			return 0, 0, errors.NewCancelled("store")
		}
		isNew, err := upsert(ctx, tx, d, newID)
		if err != nil {
			return 0, 0, err
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, errors.NewInternal(err)
	}
	return created, updated, nil
}

func upsert(ctx context.Context, ex execer, d *record.Device, newID func() (string, error)) (bool, error) {
	var existingID string
	var createdAt int64
	err := ex.QueryRowContext(ctx, `
		SELECT id, created_at FROM devices
		WHERE workspace_norm = ? AND name_norm = ? AND deleted_at IS NULL
	`, d.WorkspaceNorm, d.NameNorm).Scan(&existingID, &createdAt)
	switch {
	case err == nil:
		d.ID = existingID
		d.CreatedAt = createdAt
		return false, update(ctx, ex, d)
	case err != sql.ErrNoRows:
		return false, errors.NewInternal(err)
	}

	if d.ID != "" {
		var deleted bool
		err := ex.QueryRowContext(ctx,
			`SELECT deleted_at IS NOT NULL FROM devices WHERE id = ?`, d.ID).Scan(&deleted)
		switch {
		case err == sql.ErrNoRows:
			return true, insert(ctx, ex, d)
		case err != nil:
			return false, errors.NewInternal(err)
		case deleted:
			return true, revive(ctx, ex, d)
		}
	}

	id, err := newID()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	d.ID = id
	return true, insert(ctx, ex, d)
}

// update replaces the content of a live device. ID, workspace, name and
// CreatedAt are not changed.
func update(ctx context.Context, ex execer, d *record.Device) error {
	d.UpdatedAt = time.Now().Unix()
	deviceJSON, err := json.Marshal(d)
	if err != nil {
		return errors.NewInternal(err)
	}
	s := d.ToSummary()

	query := `
		UPDATE devices
		SET reference = ?, architecture = ?, stack = ?, short_form = ?, pce = ?,
			layer_count = ?, warning_count = ?, source = ?, search_text = ?,
			device_json = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := ex.ExecContext(ctx, query,
		toNullString(d.Reference), nullIfEmpty(d.Architecture), s.Stack, s.ShortForm, toNullFloat(s.PCE),
		s.LayerCount, s.WarningCount, toNullString(d.Source), d.SearchText(),
		string(deviceJSON), d.UpdatedAt,
		d.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(d.ID)
	}
	return nil
}

// revive overwrites a soft-deleted row with d and makes it live again.
func revive(ctx context.Context, ex execer, d *record.Device) error {
	d.DeletedAt = nil
	deviceJSON, err := json.Marshal(d)
	if err != nil {
		return errors.NewInternal(err)
	}
	s := d.ToSummary()

	query := `
		UPDATE devices
		SET workspace_raw = ?, workspace_norm = ?, name_raw = ?, name_norm = ?,
			reference = ?, architecture = ?, stack = ?, short_form = ?, pce = ?,
			layer_count = ?, warning_count = ?, source = ?, search_text = ?,
			device_json = ?, created_at = ?, updated_at = ?, deleted_at = NULL
		WHERE id = ? AND deleted_at IS NOT NULL
	`
	result, err := ex.ExecContext(ctx, query,
		d.WorkspaceRaw, d.WorkspaceNorm, d.NameRaw, d.NameNorm,
		toNullString(d.Reference), nullIfEmpty(d.Architecture), s.Stack, s.ShortForm, toNullFloat(s.PCE),
		s.LayerCount, s.WarningCount, toNullString(d.Source), d.SearchText(),
		string(deviceJSON), d.CreatedAt, d.UpdatedAt,
		d.ID,
	)
	if err != nil {
		return constraintError(err, d)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(d.ID)
	}
	return nil
}

// GetByID retrieves a device by its ULID.
// If includeDeleted is false, soft-deleted devices are excluded.
func GetByID(ctx context.Context, db *sql.DB, id string, includeDeleted bool) (*record.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	d, err := scanDevice(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return d, nil
}

// GetByName retrieves a device by normalized workspace and name.
// If includeDeleted is false, soft-deleted devices are excluded.
func GetByName(ctx context.Context, db *sql.DB, workspaceNorm, nameNorm string, includeDeleted bool) (*record.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE workspace_norm = ? AND name_norm = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	} else {
		// Prefer the live device; otherwise the most recently updated deleted one.
		query += " ORDER BY (deleted_at IS NULL) DESC, updated_at DESC LIMIT 1"
	}

	d, err := scanDevice(db.QueryRowContext(ctx, query, workspaceNorm, nameNorm))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(nameNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return d, nil
}

// ListFilters narrow ListByWorkspace.
type ListFilters struct {
	Architecture *string
}

// ListByWorkspace returns device summaries for a workspace, most recently
// updated first, and the total number of matches.
func ListByWorkspace(ctx context.Context, db *sql.DB, workspaceNorm string, filters ListFilters, limit, offset int, includeDeleted bool) ([]record.DeviceSummary, int, error) {
	where := []string{"workspace_norm = ?"}
	args := []any{workspaceNorm}
	if !includeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if filters.Architecture != nil {
		where = append(where, "architecture = ? COLLATE NOCASE")
		args = append(args, *filters.Architecture)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + summaryColumns + ` FROM devices WHERE ` + clause +
		` ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []record.DeviceSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// SoftDelete marks a device as deleted by setting deleted_at.
func SoftDelete(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE devices
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// PurgeDeleted permanently removes soft-deleted devices, optionally limited
// to one workspace and to devices deleted more than olderThanDays ago.
func PurgeDeleted(ctx context.Context, db *sql.DB, workspaceNorm *string, olderThanDays *int) (int, error) {
	where := []string{"deleted_at IS NOT NULL"}
	var args []any
	if workspaceNorm != nil {
		where = append(where, "workspace_norm = ?")
		args = append(args, *workspaceNorm)
	}
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		where = append(where, "deleted_at < ?")
		args = append(args, cutoff)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM devices WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// StreamForExport returns rows of devices ordered by workspace and creation
// time. Scan each with ScanDeviceFromRows; the caller closes rows.
func StreamForExport(ctx context.Context, db *sql.DB, workspaceNorm *string, includeDeleted bool) (*sql.Rows, error) {
	var where []string
	var args []any
	if workspaceNorm != nil {
		where = append(where, "workspace_norm = ?")
		args = append(args, *workspaceNorm)
	}
	if !includeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	query := `SELECT ` + deviceColumns + ` FROM devices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY workspace_norm, created_at, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanDeviceFromRows scans the current row of a StreamForExport result.
func ScanDeviceFromRows(rows *sql.Rows) (*record.Device, error) {
	return scanDevice(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanDevice decodes device_json and overlays the columns the store owns.
func scanDevice(row scanner) (*record.Device, error) {
	var (
		d          record.Device
		id         string
		wsRaw      string
		wsNorm     string
		nameRaw    string
		nameNorm   string
		deviceJSON string
		createdAt  int64
		updatedAt  int64
		deletedAt  sql.NullInt64
	)
	if err := row.Scan(&id, &wsRaw, &wsNorm, &nameRaw, &nameNorm, &deviceJSON, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(deviceJSON), &d); err != nil {
		return nil, fmt.Errorf("decode device %s: %w", id, err)
	}

	d.ID = id
	d.WorkspaceRaw, d.WorkspaceNorm = wsRaw, wsNorm
	d.NameRaw, d.NameNorm = nameRaw, nameNorm
	d.CreatedAt, d.UpdatedAt = createdAt, updatedAt
	d.DeletedAt = nil
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Int64
	}
	return &d, nil
}

func scanSummary(row scanner) (*record.DeviceSummary, error) {
	var (
		s         record.DeviceSummary
		reference sql.NullString
		arch      sql.NullString
		pce       sql.NullFloat64
		source    sql.NullString
		deletedAt sql.NullInt64
	)
	err := row.Scan(
		&s.ID, &s.Workspace, &s.WorkspaceNorm, &s.Name, &s.NameNorm,
		&reference, &arch, &s.Stack, &s.ShortForm, &pce, &s.LayerCount, &s.WarningCount,
		&source, &s.CreatedAt, &s.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Reference = fromNullString(reference)
	s.Architecture = arch.String
	s.Source = fromNullString(source)
	if pce.Valid {
		s.PCE = &pce.Float64
	}
	if deletedAt.Valid {
		s.DeletedAt = &deletedAt.Int64
	}
	return &s, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func toNullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
