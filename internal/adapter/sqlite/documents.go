package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/boxsync/internal/domain"
)

var _ domain.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements domain.DocumentStore using SQLite.
type DocumentStore struct {
	db *sql.DB
}

const documentColumns = `id, tenant_id, remote_event_id, title, description, status, start_at, end_at,
	venue_name, price_display, min_price, max_price, capacity, remaining, image_url,
	raw_payload, last_synced_at, created_at`

// scopeClause returns the WHERE fragment for scope. The global scope
// matches every document.
func scopeClause(scope domain.Scope) (string, []any) {
	if id, ok := scope.TenantID(); ok {
		return `tenant_id = ?`, []any{id}
	}
	return `1 = 1`, nil
}

func (s *DocumentStore) FindOne(ctx context.Context, scope domain.Scope, remoteID string) (domain.Document, error) {
	where, args := scopeClause(scope)
	args = append(args, remoteID)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM event_documents
		 WHERE `+where+` AND remote_event_id = ?
		 ORDER BY id LIMIT 1`, args...)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc, err
}

func (s *DocumentStore) FindAll(ctx context.Context, scope domain.Scope) ([]domain.Document, error) {
	where, args := scopeClause(scope)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM event_documents WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) Count(ctx context.Context, scope domain.Scope) (int, error) {
	where, args := scopeClause(scope)
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_documents WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

func (s *DocumentStore) Create(ctx context.Context, scope domain.Scope, remoteID string, f domain.EventFields) (int64, error) {
	var tenantID sql.NullString
	if id, ok := scope.TenantID(); ok {
		tenantID = sql.NullString{String: id, Valid: true}
	}
	now := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx,
		`INSERT INTO event_documents (tenant_id, remote_event_id, title, description, status, start_at, end_at,
			venue_name, price_display, min_price, max_price, capacity, remaining, image_url,
			raw_payload, last_synced_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenantID, remoteID, f.Title, f.Description, string(f.Status), nullTime(f.StartAt), nullTime(f.EndAt),
		f.VenueName, f.PriceDisplay, f.MinPrice, f.MaxPrice, f.Capacity, f.Remaining, f.ImageURL,
		f.RawPayload, nullTime(f.LastSyncedAt), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("document %s already exists in %s", remoteID, scope)
		}
		return 0, fmt.Errorf("inserting document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading document id: %w", err)
	}
	if err := writeMeta(ctx, tx, id, f.Meta); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing document: %w", err)
	}
	return id, nil
}

func (s *DocumentStore) Update(ctx context.Context, id int64, f domain.EventFields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE event_documents
		 SET title = ?, description = ?, status = ?, start_at = ?, end_at = ?, venue_name = ?,
		     price_display = ?, min_price = ?, max_price = ?, capacity = ?, remaining = ?, image_url = ?,
		     raw_payload = ?, last_synced_at = ?, updated_at = ?
		 WHERE id = ?`,
		f.Title, f.Description, string(f.Status), nullTime(f.StartAt), nullTime(f.EndAt), f.VenueName,
		f.PriceDisplay, f.MinPrice, f.MaxPrice, f.Capacity, f.Remaining, f.ImageURL,
		f.RawPayload, nullTime(f.LastSyncedAt), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if err := expectAffected(result, domain.ErrDocumentNotFound); err != nil {
		return err
	}
	if err := writeMeta(ctx, tx, id, f.Meta); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a document with its metadata, labels and media.
func (s *DocumentStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"document_meta", "document_labels", "document_media"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE document_id = ?`, id); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM event_documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if err := expectAffected(result, domain.ErrDocumentNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *DocumentStore) Meta(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT meta_key, meta_value FROM document_meta WHERE document_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning metadata: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *DocumentStore) SetMeta(ctx context.Context, id int64, meta map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := writeMeta(ctx, tx, id, meta); err != nil {
		return err
	}
	return tx.Commit()
}

func writeMeta(ctx context.Context, tx *sql.Tx, id int64, meta map[string]string) error {
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_meta (document_id, meta_key, meta_value) VALUES (?, ?, ?)
			 ON CONFLICT (document_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
			id, k, v); err != nil {
			return fmt.Errorf("writing metadata %q: %w", k, err)
		}
	}
	return nil
}

func (s *DocumentStore) AddLabel(ctx context.Context, id int64, label string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO document_labels (document_id, label) VALUES (?, ?)`, id, label); err != nil {
		return fmt.Errorf("adding label: %w", err)
	}
	return nil
}

// Labels returns the labels attached to a document.
func (s *DocumentStore) Labels(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label FROM document_labels WHERE document_id = ? ORDER BY label`, id)
	if err != nil {
		return nil, fmt.Errorf("reading labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

func (s *DocumentStore) PrimaryImageSource(ctx context.Context, id int64) (string, bool, error) {
	var src string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_url FROM document_media WHERE document_id = ?`, id).Scan(&src)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading primary image: %w", err)
	}
	return src, true, nil
}

func (s *DocumentStore) SetPrimaryImage(ctx context.Context, id int64, img domain.Image) (bool, error) {
	current, ok, err := s.PrimaryImageSource(ctx, id)
	if err != nil {
		return false, err
	}
	if ok && current == img.SourceURL {
		return false, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO document_media (document_id, source_url, content_type, width, height, data, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (document_id) DO UPDATE SET
		   source_url = excluded.source_url, content_type = excluded.content_type,
		   width = excluded.width, height = excluded.height,
		   data = excluded.data, fetched_at = excluded.fetched_at`,
		id, img.SourceURL, img.ContentType, img.Width, img.Height, img.Data, formatTime(time.Now()),
	); err != nil {
		return false, fmt.Errorf("storing primary image: %w", err)
	}
	return true, nil
}

// DeleteByTenant removes every document owned by tenantID.
func (s *DocumentStore) DeleteByTenant(ctx context.Context, tenantID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"document_meta", "document_labels", "document_media"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE document_id IN (SELECT id FROM event_documents WHERE tenant_id = ?)`,
			tenantID); err != nil {
			return 0, fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM event_documents WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("deleting tenant documents: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), tx.Commit()
}

// UnassignTenant clears the tenant reference of its documents and removes
// the tenant's grouping label. A document whose remote event already has an
// unowned copy is deleted instead, so unowned documents stay unique per
// remote event. It returns the number of documents released.
func (s *DocumentStore) UnassignTenant(ctx context.Context, tenantID, label string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const shadowed = `SELECT d.id FROM event_documents d
		WHERE d.tenant_id = ? AND EXISTS (
			SELECT 1 FROM event_documents u
			WHERE u.tenant_id IS NULL AND u.remote_event_id = d.remote_event_id)`
	for _, table := range []string{"document_meta", "document_labels", "document_media"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE document_id IN (`+shadowed+`)`, tenantID); err != nil {
			return 0, fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	dropped, err := tx.ExecContext(ctx, `DELETE FROM event_documents WHERE id IN (`+shadowed+`)`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("deleting duplicate documents: %w", err)
	}

	if label != "" {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM document_labels WHERE label = ?
			 AND document_id IN (SELECT id FROM event_documents WHERE tenant_id = ?)`,
			label, tenantID); err != nil {
			return 0, fmt.Errorf("removing labels: %w", err)
		}
	}
	moved, err := tx.ExecContext(ctx,
		`UPDATE event_documents SET tenant_id = NULL, updated_at = ? WHERE tenant_id = ?`,
		formatTime(time.Now()), tenantID)
	if err != nil {
		return 0, fmt.Errorf("unassigning documents: %w", err)
	}
	nDropped, _ := dropped.RowsAffected()
	nMoved, _ := moved.RowsAffected()
	return int(nDropped + nMoved), tx.Commit()
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var d domain.Document
	var tenantID, startAt, endAt, lastSynced sql.NullString
	var status, createdAt string

	err := row.Scan(&d.LocalID, &tenantID, &d.RemoteEventID, &d.Title, &d.Description, &status,
		&startAt, &endAt, &d.VenueName, &d.PriceDisplay, &d.MinPrice, &d.MaxPrice,
		&d.Capacity, &d.Remaining, &d.ImageURL, &d.RawPayload, &lastSynced, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, err
		}
		return domain.Document{}, fmt.Errorf("scanning document: %w", err)
	}

	d.TenantID = tenantID.String
	d.Status = domain.DocumentStatus(status)
	d.StartAt = parseTime(startAt)
	d.EndAt = parseTime(endAt)
	d.LastSyncedAt = parseTime(lastSynced)
	d.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return d, nil
}
