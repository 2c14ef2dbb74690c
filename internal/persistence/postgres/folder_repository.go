package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"photocatalog/internal/model"
)

// FolderRepository persists folder records, grounded in the teacher's
// repositories package (one struct per aggregate, thin query methods
// wrapping *DB.ExecContext/GetContext/SelectContext).
type FolderRepository struct {
	db *DB
}

func NewFolderRepository(db *DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// Upsert inserts a folder or refreshes its last-opened timestamp and
// display name if it already exists, per §4.4's "select folder"
// persistence requirement.
func (r *FolderRepository) Upsert(ctx context.Context, f *model.FolderRecord) error {
	query := `
		INSERT INTO folders (folder_key, root_path, display_name, handle_lookup_key, last_opened_at, created_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (folder_key) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			handle_lookup_key = EXCLUDED.handle_lookup_key,
			last_opened_at = now()`

	_, err := r.db.ExecContext(ctx, query, f.InternalKey, f.Path, f.Name, f.HandleLookupKey)
	if err != nil {
		return fmt.Errorf("upsert folder: %w", err)
	}
	return nil
}

// GetByKey retrieves a folder by its key, or nil if absent.
func (r *FolderRepository) GetByKey(ctx context.Context, key string) (*model.FolderRecord, error) {
	var f model.FolderRecord
	query := `SELECT folder_key, root_path, display_name, handle_lookup_key, last_opened_at, created_at FROM folders WHERE folder_key = $1`
	err := r.db.GetContext(ctx, &f, query, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get folder by key: %w", err)
	}
	return &f, nil
}

// GetByPath retrieves a folder by its root path, or nil if absent — used
// to decide whether "select folder" is opening a known folder or a new
// one (§4.6).
func (r *FolderRepository) GetByPath(ctx context.Context, path string) (*model.FolderRecord, error) {
	var f model.FolderRecord
	query := `SELECT folder_key, root_path, display_name, handle_lookup_key, last_opened_at, created_at FROM folders WHERE root_path = $1`
	err := r.db.GetContext(ctx, &f, query, path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get folder by path: %w", err)
	}
	return &f, nil
}

// ListRecent returns the most recently opened folders, most recent first.
func (r *FolderRepository) ListRecent(ctx context.Context, limit int) ([]model.FolderSummary, error) {
	var folders []model.FolderSummary
	query := `
		SELECT f.folder_key, f.display_name, f.root_path, f.last_opened_at,
			(SELECT count(*) FROM assets a WHERE a.folder_key = f.folder_key) AS asset_count
		FROM folders f
		ORDER BY f.last_opened_at DESC
		LIMIT $1`

	if err := r.db.SelectContext(ctx, &folders, query, limit); err != nil {
		return nil, fmt.Errorf("list recent folders: %w", err)
	}
	return folders, nil
}

// Touch refreshes a folder's last-opened timestamp without a full upsert.
func (r *FolderRepository) Touch(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE folders SET last_opened_at = now() WHERE folder_key = $1`, key)
	if err != nil {
		return fmt.Errorf("touch folder: %w", err)
	}
	return nil
}
