package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"photocatalog/internal/model"
)

// EditStateRepository persists the opaque, editor-owned edit payload for
// an asset (§3 "Edit state record"). The core never interprets Payload —
// these methods just round-trip bytes.
type EditStateRepository struct {
	db *DB
}

func NewEditStateRepository(db *DB) *EditStateRepository {
	return &EditStateRepository{db: db}
}

// Upsert writes or replaces the edit-state record for an asset, per
// §3's "at most one record per asset-identifier; upsert semantics".
func (r *EditStateRepository) Upsert(ctx context.Context, rec *model.EditStateRecord) error {
	query := `
		INSERT INTO edit_states (asset_identifier, schema_version, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (asset_identifier) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			payload = EXCLUDED.payload,
			updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query, rec.AssetID, rec.SchemaVersion, rec.Payload); err != nil {
		return fmt.Errorf("upsert edit state: %w", err)
	}
	return nil
}

// Get retrieves the edit-state record for an asset, or nil if absent.
func (r *EditStateRepository) Get(ctx context.Context, assetID string) (*model.EditStateRecord, error) {
	var rec model.EditStateRecord
	query := `SELECT asset_identifier, schema_version, payload, updated_at FROM edit_states WHERE asset_identifier = $1`
	err := r.db.GetContext(ctx, &rec, query, assetID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get edit state: %w", err)
	}
	return &rec, nil
}

// Delete removes the edit-state record for an asset, if any.
func (r *EditStateRepository) Delete(ctx context.Context, assetID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM edit_states WHERE asset_identifier = $1`, assetID); err != nil {
		return fmt.Errorf("delete edit state: %w", err)
	}
	return nil
}

// DeleteBatch bulk-removes the edit-state records of the given assets.
func (r *EditStateRepository) DeleteBatch(ctx context.Context, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM edit_states WHERE asset_identifier IN (?)`, assetIDs)
	if err != nil {
		return fmt.Errorf("build batch edit state delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("delete edit states batch: %w", err)
	}
	return nil
}
