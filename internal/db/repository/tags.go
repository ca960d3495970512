package repository

import (
	"context"
	"database/sql"

	"query-scheduler/internal/domain"
)

var _ domain.TagRepository = (*TagRepo)(nil)

// TagRepo stores the tag catalog.
type TagRepo struct {
	db *sql.DB
}

// NewTagRepo creates a new TagRepo.
func NewTagRepo(db *sql.DB) *TagRepo {
	return &TagRepo{db: db}
}

// List returns the whole catalog ordered by name.
func (r *TagRepo) List(ctx context.Context) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color, created_by, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return scanTags(rows)
}

// GetByIDs returns the tags among ids that exist. Order is unspecified.
func (r *TagRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Tag, error) {
	if len(ids) == 0 {
		return []domain.Tag{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, color, created_by, created_at FROM tags WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	return scanTags(rows)
}

// Create inserts a tag, assigning an ID when none is set.
func (r *TagRepo) Create(ctx context.Context, tag *domain.Tag) (*domain.Tag, error) {
	if tag.ID == "" {
		tag.ID = domain.NewID()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO tags (id, name, color, created_by) VALUES (?, ?, ?, ?)`,
		tag.ID, tag.Name, tag.Color, tag.CreatedBy)
	if err != nil {
		return nil, mapDBError(err)
	}

	var out domain.Tag
	err = r.db.QueryRowContext(ctx, `SELECT id, name, color, created_by, created_at FROM tags WHERE id = ?`, tag.ID).
		Scan(&out.ID, &out.Name, &out.Color, &out.CreatedBy, &out.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &out, nil
}

// Delete removes a tag and unlinks it from every query.
func (r *TagRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	return requireAffected(res, "tag %q not found", id)
}

func scanTags(rows *sql.Rows) ([]domain.Tag, error) {
	defer rows.Close() //nolint:errcheck

	tags := []domain.Tag{}
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}
