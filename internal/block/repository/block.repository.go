package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bigbio/internal/apperr"
	"bigbio/internal/block/model"
	libmodel "bigbio/internal/library/model"
	librepo "bigbio/internal/library/repository"
	"bigbio/pkg/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Tx is everything a block write does inside one transaction.
type Tx interface {
	InsertBlock(ctx context.Context, b model.Block) error
	UpdateBlock(ctx context.Context, blockID, title, content string, tags []string) error
	GetBlock(ctx context.Context, blockID string) (*model.Block, error)
	InsertVersion(ctx context.Context, blockID, title, content string) (*model.Version, error)
	GetVersion(ctx context.Context, versionID string) (*model.Version, error)
	LatestVersion(ctx context.Context, blockID string) (*model.Version, error)
	GetRemixEdge(ctx context.Context, childBlockID string) (*model.RemixEdge, error)
	InsertRemixEdge(ctx context.Context, edge model.RemixEdge) error
	InsertDiff(ctx context.Context, d model.DiffRecord) (string, error)
	IsLibraryTemplate(ctx context.Context, blockID string) (bool, error)
	UpsertSkeletonRecord(ctx context.Context, rec libmodel.SkeletonRecord) error
}

type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetBlockContent(ctx context.Context, blockID string) (string, error)
	GetSkeletonRecord(ctx context.Context, blockID string) (*libmodel.SkeletonRecord, error)
	ListDiffs(ctx context.Context, childBlockID string) ([]model.DiffRecord, error)
	ListBlockIDs(ctx context.Context) ([]string, error)
	ListDrafts(ctx context.Context, ownerID string) ([]model.Block, error)
}

var _ Store = (*BlockRepository)(nil)

type BlockRepository struct {
	DB *sql.DB
	queries
}

func NewBlockRepository(db *sql.DB) *BlockRepository {
	return &BlockRepository{DB: db, queries: queries{q: db}}
}

func (r *BlockRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin block transaction: %v", err)
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit block transaction: %v", err)
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type queries struct {
	q librepo.Querier
}

func (r *queries) InsertBlock(ctx context.Context, b model.Block) error {
	tags, err := marshalTags(b.Tags)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO blocks (id, owner_id, title, content, visibility, is_posted, posted_at, ai_tag_suggestions,
			origin_template_block_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`,
		b.ID, b.OwnerID, b.Title, b.Content, b.Visibility, b.IsPosted, nullTime(b.PostedAt), tags,
		nullString(b.OriginTemplateBlockID))
	if err != nil {
		logger.Sugar.Errorf("Failed to create block: %v", err)
	}
	return err
}

func (r *queries) UpdateBlock(ctx context.Context, blockID, title, content string, tags []string) error {
	encoded, err := marshalTags(tags)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE blocks SET title = $1, content = $2, ai_tag_suggestions = $3, updated_at = NOW()
		WHERE id = $4`, title, content, encoded, blockID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update block %s: %v", blockID, err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", apperr.ErrBlockNotFound, blockID)
	}
	return nil
}

const blockColumns = `id, owner_id, COALESCE(title, ''), content, visibility, is_posted, posted_at, ai_tag_suggestions,
	COALESCE(origin_template_block_id::text, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*model.Block, error) {
	var (
		b        model.Block
		postedAt sql.NullTime
		tags     []byte
	)
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Content, &b.Visibility, &b.IsPosted, &postedAt, &tags,
		&b.OriginTemplateBlockID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if postedAt.Valid {
		b.PostedAt = &postedAt.Time
	}
	b.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &b.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of block %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

func (r *queries) GetBlock(ctx context.Context, blockID string) (*model.Block, error) {
	b, err := scanBlock(r.q.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1`, blockID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrBlockNotFound, blockID)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get block %s: %v", blockID, err)
		return nil, err
	}
	return b, nil
}

// ListDrafts returns the owner's unposted blocks, most recently edited first.
func (r *queries) ListDrafts(ctx context.Context, ownerID string) ([]model.Block, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+blockColumns+`
		FROM blocks WHERE owner_id = $1 AND NOT is_posted
		ORDER BY updated_at DESC, id ASC`, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list drafts of %s: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	drafts := []model.Block{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *b)
	}
	return drafts, rows.Err()
}

// InsertVersion appends the next version of a block. Two writers racing for the same number surface as
// apperr.ErrConflict through the (block_id, version_num) unique key.
func (r *queries) InsertVersion(ctx context.Context, blockID, title, content string) (*model.Version, error) {
	v := model.Version{ID: uuid.NewString(), BlockID: blockID, Title: title, Content: content}
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO block_versions (id, block_id, version_num, title, content, created_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(version_num), 0) + 1 FROM block_versions WHERE block_id = $2), $3, $4, NOW())
		RETURNING version_num, created_at`,
		v.ID, blockID, title, content).Scan(&v.VersionNum, &v.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: concurrent version of block %s", apperr.ErrConflict, blockID)
		}
		logger.Sugar.Errorf("Failed to insert version for block %s: %v", blockID, err)
		return nil, err
	}
	return &v, nil
}

func (r *queries) GetVersion(ctx context.Context, versionID string) (*model.Version, error) {
	return r.scanVersion(ctx, `
		SELECT id, block_id, version_num, COALESCE(title, ''), content, created_at
		FROM block_versions WHERE id = $1`, versionID)
}

func (r *queries) LatestVersion(ctx context.Context, blockID string) (*model.Version, error) {
	return r.scanVersion(ctx, `
		SELECT id, block_id, version_num, COALESCE(title, ''), content, created_at
		FROM block_versions WHERE block_id = $1
		ORDER BY version_num DESC LIMIT 1`, blockID)
}

// scanVersion returns nil without error when no row matches.
func (r *queries) scanVersion(ctx context.Context, query, arg string) (*model.Version, error) {
	var v model.Version
	err := r.q.QueryRowContext(ctx, query, arg).
		Scan(&v.ID, &v.BlockID, &v.VersionNum, &v.Title, &v.Content, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get version %s: %v", arg, err)
		return nil, err
	}
	return &v, nil
}

func (r *queries) GetRemixEdge(ctx context.Context, childBlockID string) (*model.RemixEdge, error) {
	var e model.RemixEdge
	err := r.q.QueryRowContext(ctx, `
		SELECT id, parent_block_id, child_block_id, COALESCE(parent_version_id::text, '')
		FROM remix_edges WHERE child_block_id = $1`, childBlockID).
		Scan(&e.ID, &e.ParentBlockID, &e.ChildBlockID, &e.ParentVersionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get remix edge for block %s: %v", childBlockID, err)
		return nil, err
	}
	return &e, nil
}

func (r *queries) InsertRemixEdge(ctx context.Context, edge model.RemixEdge) error {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO remix_edges (id, parent_block_id, child_block_id, parent_version_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		edge.ID, edge.ParentBlockID, edge.ChildBlockID, nullString(edge.ParentVersionID))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: block %s already has a remix parent", apperr.ErrConflict, edge.ChildBlockID)
		}
		logger.Sugar.Errorf("Failed to insert remix edge %s -> %s: %v", edge.ParentBlockID, edge.ChildBlockID, err)
	}
	return err
}

func (r *queries) InsertDiff(ctx context.Context, d model.DiffRecord) (string, error) {
	id := uuid.NewString()
	ops, err := json.Marshal(d.Diff)
	if err != nil {
		return "", fmt.Errorf("encode diff: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO block_diffs (id, parent_block_id, child_block_id, parent_version_id, child_version_id, diff, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		id, d.ParentBlockID, d.ChildBlockID, nullString(d.ParentVersionID), nullString(d.ChildVersionID), ops)
	if err != nil {
		logger.Sugar.Errorf("Failed to insert diff %s -> %s: %v", d.ParentBlockID, d.ChildBlockID, err)
		return "", err
	}
	return id, nil
}

func (r *queries) IsLibraryTemplate(ctx context.Context, blockID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM library_items WHERE template_block_id = $1 AND is_active)`, blockID).Scan(&exists)
	if err != nil {
		logger.Sugar.Errorf("Failed to check template status of block %s: %v", blockID, err)
	}
	return exists, err
}

func (r *queries) UpsertSkeletonRecord(ctx context.Context, rec libmodel.SkeletonRecord) error {
	return librepo.UpsertSkeletonRecord(ctx, r.q, rec)
}

func (r *queries) GetBlockContent(ctx context.Context, blockID string) (string, error) {
	return librepo.GetBlockContent(ctx, r.q, blockID)
}

func (r *queries) GetSkeletonRecord(ctx context.Context, blockID string) (*libmodel.SkeletonRecord, error) {
	return librepo.GetSkeletonRecord(ctx, r.q, blockID)
}

func (r *queries) ListDiffs(ctx context.Context, childBlockID string) ([]model.DiffRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, parent_block_id, child_block_id, COALESCE(parent_version_id::text, ''),
			COALESCE(child_version_id::text, ''), diff, created_at
		FROM block_diffs
		WHERE child_block_id = $1
		ORDER BY created_at DESC`, childBlockID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list diffs for block %s: %v", childBlockID, err)
		return nil, err
	}
	defer rows.Close()

	diffs := []model.DiffRecord{}
	for rows.Next() {
		var (
			d   model.DiffRecord
			raw []byte
		)
		if err := rows.Scan(&d.ID, &d.ParentBlockID, &d.ChildBlockID, &d.ParentVersionID, &d.ChildVersionID,
			&raw, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &d.Diff); err != nil {
			return nil, fmt.Errorf("decode diff %s: %w", d.ID, err)
		}
		diffs = append(diffs, d)
	}
	return diffs, rows.Err()
}

func (r *queries) ListBlockIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM blocks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		logger.Sugar.Errorf("Failed to list blocks: %v", err)
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func marshalTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return b, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
