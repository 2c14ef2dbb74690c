package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"photocatalog/internal/model"
)

// AssetRepository persists asset records and their flags, grounded in
// the teacher's ImagingRepository shape (one struct, thin SQL methods).
type AssetRepository struct {
	db *DB
}

func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// UpsertBatch inserts or updates a batch of scanned assets within a
// single transaction, matching §4.5's "scan flushes in batches" and
// §4.4's path-keyed upsert semantics (re-scanning a known folder updates
// existing rows by (folder_key, path) rather than duplicating them).
func (r *AssetRepository) UpsertBatch(ctx context.Context, records []*model.AssetRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO assets (
			asset_identifier, folder_key, path, filename, ext, byte_size,
			modified_at, capture_instant, flag, width, height
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (folder_key, path) DO UPDATE SET
			byte_size = EXCLUDED.byte_size,
			modified_at = EXCLUDED.modified_at,
			capture_instant = EXCLUDED.capture_instant,
			width = EXCLUDED.width,
			height = EXCLUDED.height
		RETURNING internal_key, asset_identifier`

	for _, rec := range records {
		row := tx.QueryRowContext(ctx, query,
			rec.ID, rec.FolderKey, rec.Path, rec.Filename, rec.Ext, rec.ByteSize,
			rec.ModifiedAt, rec.CaptureAt, rec.Flag, rec.Width, rec.Height)
		if err := row.Scan(&rec.InternalKey, &rec.ID); err != nil {
			return fmt.Errorf("upsert asset %s: %w", rec.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert batch: %w", err)
	}
	return nil
}

// ListByFolder returns every asset belonging to a folder, ordered by
// capture time (nulls last) then path, matching the grid's default sort.
func (r *AssetRepository) ListByFolder(ctx context.Context, folderKey string) ([]model.AssetRecord, error) {
	var records []model.AssetRecord
	query := `
		SELECT internal_key, asset_identifier, folder_key, path, filename, ext,
			flag, capture_instant, modified_at, byte_size, width, height
		FROM assets
		WHERE folder_key = $1
		ORDER BY capture_instant ASC NULLS LAST, path ASC`

	if err := r.db.SelectContext(ctx, &records, query, folderKey); err != nil {
		return nil, fmt.Errorf("list assets by folder: %w", err)
	}
	return records, nil
}

// GetByID retrieves a single asset by its opaque identifier.
func (r *AssetRepository) GetByID(ctx context.Context, id string) (*model.AssetRecord, error) {
	var rec model.AssetRecord
	query := `
		SELECT internal_key, asset_identifier, folder_key, path, filename, ext,
			flag, capture_instant, modified_at, byte_size, width, height
		FROM assets WHERE asset_identifier = $1`

	err := r.db.GetContext(ctx, &rec, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset by id: %w", err)
	}
	return &rec, nil
}

// SetFlag updates a single asset's flag.
func (r *AssetRepository) SetFlag(ctx context.Context, id string, flag model.Flag) error {
	res, err := r.db.ExecContext(ctx, `UPDATE assets SET flag = $1 WHERE asset_identifier = $2`, flag, id)
	if err != nil {
		return fmt.Errorf("set asset flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set asset flag: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetFlagBatch updates the flag for a set of assets within one
// transaction, per §4.6's "batch flag update" operation.
func (r *AssetRepository) SetFlagBatch(ctx context.Context, ids []string, flag model.Flag) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE assets SET flag = ? WHERE asset_identifier IN (?)`, flag, ids)
	if err != nil {
		return fmt.Errorf("build batch flag update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("set asset flag batch: %w", err)
	}
	return nil
}

// FlagCounts summarizes flags across a folder's assets.
func (r *AssetRepository) FlagCounts(ctx context.Context, folderKey string) (model.FlagCounts, error) {
	var counts model.FlagCounts
	query := `
		SELECT
			count(*) AS all_count,
			count(*) FILTER (WHERE flag = 'pick') AS picks,
			count(*) FILTER (WHERE flag = 'reject') AS rejects,
			count(*) FILTER (WHERE flag = 'none') AS unflagged
		FROM assets WHERE folder_key = $1`

	row := r.db.QueryRowContext(ctx, query, folderKey)
	if err := row.Scan(&counts.All, &counts.Picks, &counts.Rejects, &counts.Unflagged); err != nil {
		return model.FlagCounts{}, fmt.Errorf("flag counts: %w", err)
	}
	return counts, nil
}
