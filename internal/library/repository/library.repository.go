package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bigbio/internal/apperr"
	"bigbio/internal/library/model"
	"bigbio/pkg/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Querier is the subset of *sql.DB and *sql.Tx the queries need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is everything a promotion does inside one transaction.
type Tx interface {
	GetBlockContent(ctx context.Context, blockID string) (string, error)
	CategoryIsActive(ctx context.Context, categoryID int) (bool, error)
	UpsertSkeletonRecord(ctx context.Context, rec model.SkeletonRecord) error
	FindExactTemplateMatches(ctx context.Context, sig string) ([]model.TemplateMatch, error)
	FindFuzzyTemplateMatches(ctx context.Context, text string, limit int) ([]model.TemplateMatch, error)
	CreateLibraryEntry(ctx context.Context, item model.NewLibraryItem) (string, error)
	AppendPromotionEvent(ctx context.Context, ev model.PromotionEvent) (string, error)
}

// Store is the library persistence used by the service. Reads outside WithinTx go to the pool.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	ListPromotionEvents(ctx context.Context, sourceBlockID string) ([]model.PromotionEvent, error)
	ListLibrary(ctx context.Context, limit int) ([]model.LibraryItem, error)
}

var _ Store = (*LibraryRepository)(nil)

type LibraryRepository struct {
	DB *sql.DB
	queries
}

func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{DB: db, queries: queries{q: db}}
}

// WithinTx runs fn in a transaction and commits only if fn succeeds. Any error rolls back every write.
func (r *LibraryRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin library transaction: %v", err)
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit library transaction: %v", err)
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type queries struct {
	q Querier
}

func (r *queries) GetBlockContent(ctx context.Context, blockID string) (string, error) {
	return GetBlockContent(ctx, r.q, blockID)
}

func (r *queries) CategoryIsActive(ctx context.Context, categoryID int) (bool, error) {
	var active bool
	err := r.q.QueryRowContext(ctx, `SELECT is_active FROM categories WHERE id = $1`, categoryID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to check category %d: %v", categoryID, err)
		return false, err
	}
	return active, nil
}

func (r *queries) UpsertSkeletonRecord(ctx context.Context, rec model.SkeletonRecord) error {
	return UpsertSkeletonRecord(ctx, r.q, rec)
}

func (r *queries) FindExactTemplateMatches(ctx context.Context, sig string) ([]model.TemplateMatch, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT li.id, li.template_block_id, li.title, li.category_id
		FROM library_items li
		JOIN block_templates bt ON bt.block_id = li.template_block_id
		WHERE li.is_active AND bt.skeleton_sig = $1
		ORDER BY li.created_at ASC, li.id ASC`, sig)
	if err != nil {
		logger.Sugar.Errorf("Failed exact template lookup for sig %s: %v", sig, err)
		return nil, err
	}
	defer rows.Close()

	var matches []model.TemplateMatch
	for rows.Next() {
		var m model.TemplateMatch
		if err := rows.Scan(&m.LibraryItemID, &m.TemplateBlockID, &m.Title, &m.CategoryID); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// FindFuzzyTemplateMatches ranks templates by pg_trgm similarity. The % operator uses the trigram index and
// pg_trgm.similarity_threshold as a floor.
func (r *queries) FindFuzzyTemplateMatches(ctx context.Context, text string, limit int) ([]model.TemplateMatch, error) {
	if text == "" {
		return nil, nil
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT li.id, li.template_block_id, li.title, li.category_id, similarity(bt.skeleton_text, $1) AS score
		FROM library_items li
		JOIN block_templates bt ON bt.block_id = li.template_block_id
		WHERE li.is_active AND bt.skeleton_text % $1
		ORDER BY score DESC, li.id ASC
		LIMIT $2`, text, limit)
	if err != nil {
		logger.Sugar.Errorf("Failed fuzzy template lookup: %v", err)
		return nil, err
	}
	defer rows.Close()

	var matches []model.TemplateMatch
	for rows.Next() {
		var m model.TemplateMatch
		if err := rows.Scan(&m.LibraryItemID, &m.TemplateBlockID, &m.Title, &m.CategoryID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *queries) CreateLibraryEntry(ctx context.Context, item model.NewLibraryItem) (string, error) {
	id := uuid.NewString()
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO library_items (id, template_block_id, category_id, title, description, tags_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		id, item.TemplateBlockID, item.CategoryID, item.Title, nullString(item.Description), pq.Array(tags))
	if err != nil {
		logger.Sugar.Errorf("Failed to create library item for block %s: %v", item.TemplateBlockID, err)
		return "", err
	}
	return id, nil
}

// AppendPromotionEvent inserts an audit row. Events are never updated or deleted.
func (r *queries) AppendPromotionEvent(ctx context.Context, ev model.PromotionEvent) (string, error) {
	id := uuid.NewString()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO library_promotion_events (
			id, source_block_id, admin_user_id, requested_category_id, outcome,
			created_library_item_id, duplicate_of_library_item_id,
			best_match_library_item_id, best_match_template_block_id, best_match_score,
			skeleton_sig, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`,
		id, ev.SourceBlockID, nullString(ev.AdminUserID), ev.RequestedCategoryID, ev.Outcome,
		nullString(ev.CreatedLibraryItemID), nullString(ev.DuplicateOfLibraryItemID),
		nullString(ev.BestMatchLibraryItemID), nullString(ev.BestMatchTemplateBlockID), ev.BestMatchScore,
		nullString(ev.SkeletonSig), nullString(ev.Note))
	if err != nil {
		logger.Sugar.Errorf("Failed to append promotion event for block %s: %v", ev.SourceBlockID, err)
		return "", err
	}
	return id, nil
}

func (r *queries) ListPromotionEvents(ctx context.Context, sourceBlockID string) ([]model.PromotionEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, source_block_id, COALESCE(admin_user_id::text, ''), COALESCE(requested_category_id, 0), outcome,
			COALESCE(created_library_item_id::text, ''), COALESCE(duplicate_of_library_item_id::text, ''),
			COALESCE(best_match_library_item_id::text, ''), COALESCE(best_match_template_block_id::text, ''),
			best_match_score, COALESCE(skeleton_sig, ''), COALESCE(note, ''), created_at
		FROM library_promotion_events
		WHERE source_block_id = $1
		ORDER BY created_at DESC`, sourceBlockID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list promotion events for block %s: %v", sourceBlockID, err)
		return nil, err
	}
	defer rows.Close()

	events := []model.PromotionEvent{}
	for rows.Next() {
		var ev model.PromotionEvent
		var score sql.NullFloat64
		if err := rows.Scan(&ev.ID, &ev.SourceBlockID, &ev.AdminUserID, &ev.RequestedCategoryID, &ev.Outcome,
			&ev.CreatedLibraryItemID, &ev.DuplicateOfLibraryItemID,
			&ev.BestMatchLibraryItemID, &ev.BestMatchTemplateBlockID,
			&score, &ev.SkeletonSig, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if score.Valid {
			ev.BestMatchScore = &score.Float64
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *queries) ListLibrary(ctx context.Context, limit int) ([]model.LibraryItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, template_block_id, category_id, title, COALESCE(description, ''), tags_text, created_at
		FROM library_items
		WHERE is_active
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		logger.Sugar.Errorf("Failed to list library items: %v", err)
		return nil, err
	}
	defer rows.Close()

	items := []model.LibraryItem{}
	for rows.Next() {
		var it model.LibraryItem
		if err := rows.Scan(&it.ID, &it.TemplateBlockID, &it.CategoryID, &it.Title, &it.Description,
			pq.Array(&it.Tags), &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetBlockContent fetches the current content of a block. A missing block is apperr.ErrBlockNotFound.
func GetBlockContent(ctx context.Context, q Querier, blockID string) (string, error) {
	var content string
	err := q.QueryRowContext(ctx, `SELECT content FROM blocks WHERE id = $1`, blockID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", apperr.ErrBlockNotFound, blockID)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get content for block %s: %v", blockID, err)
		return "", err
	}
	return content, nil
}

// UpsertSkeletonRecord overwrites the skeleton of a block, inserting it on first use.
func UpsertSkeletonRecord(ctx context.Context, q Querier, rec model.SkeletonRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO block_templates (block_id, skeleton_text, skeleton_sig, slot_count, line_count, status, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'ready', NULL, NOW())
		ON CONFLICT (block_id) DO UPDATE SET
			skeleton_text = EXCLUDED.skeleton_text,
			skeleton_sig  = EXCLUDED.skeleton_sig,
			slot_count    = EXCLUDED.slot_count,
			line_count    = EXCLUDED.line_count,
			status        = 'ready',
			last_error    = NULL,
			updated_at    = NOW()`,
		rec.BlockID, rec.SkeletonText, rec.SkeletonSig, rec.SlotCount, rec.LineCount)
	if err != nil {
		logger.Sugar.Errorf("Failed to upsert skeleton for block %s: %v", rec.BlockID, err)
	}
	return err
}

// GetSkeletonRecord returns the stored skeleton, or nil when the block has none yet.
func GetSkeletonRecord(ctx context.Context, q Querier, blockID string) (*model.SkeletonRecord, error) {
	rec := model.SkeletonRecord{BlockID: blockID}
	err := q.QueryRowContext(ctx, `
		SELECT skeleton_text, skeleton_sig, slot_count, line_count, updated_at
		FROM block_templates WHERE block_id = $1`, blockID).
		Scan(&rec.SkeletonText, &rec.SkeletonSig, &rec.SlotCount, &rec.LineCount, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get skeleton for block %s: %v", blockID, err)
		return nil, err
	}
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
