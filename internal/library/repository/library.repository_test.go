package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbio/internal/apperr"
	"bigbio/internal/library/model"
)

func newMock(t *testing.T) (*LibraryRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLibraryRepository(db), mock
}

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO block_templates").
		WithArgs("blk-1", "T", "sig", 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO library_promotion_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(tx Tx) error {
		if err := tx.UpsertSkeletonRecord(context.Background(), model.SkeletonRecord{
			BlockID: "blk-1", SkeletonText: "T", SkeletonSig: "sig", SlotCount: 1, LineCount: 2,
		}); err != nil {
			return err
		}
		id, err := tx.AppendPromotionEvent(context.Background(), model.PromotionEvent{
			SourceBlockID: "blk-1", Outcome: model.OutcomePromoted, Note: model.NotePromote,
		})
		assert.NotEmpty(t, id)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	repo, mock := newMock(t)
	boom := errors.New("insert failed")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO library_items").WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx Tx) error {
		_, err := tx.CreateLibraryEntry(context.Background(), model.NewLibraryItem{
			TemplateBlockID: "blk-1", CategoryID: 1, Title: "t",
		})
		return err
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBlockContentNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT content FROM blocks WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBlockContent(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrBlockNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryIsActive(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT is_active FROM categories").WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("SELECT is_active FROM categories").WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}))

	active, err := repo.CategoryIsActive(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = repo.CategoryIsActive(context.Background(), 9)
	require.NoError(t, err)
	assert.False(t, active, "a missing category is treated as inactive")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindExactTemplateMatches(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("bt.skeleton_sig = \\$1").
		WithArgs("sig").
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_block_id", "title", "category_id"}).
			AddRow("lib-1", "blk-1", "Top 5", 2).
			AddRow("lib-2", "blk-2", "Top 5 again", 2))

	matches, err := repo.FindExactTemplateMatches(context.Background(), "sig")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, model.TemplateMatch{LibraryItemID: "lib-1", TemplateBlockID: "blk-1", Title: "Top 5", CategoryID: 2}, matches[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindFuzzyTemplateMatches(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("similarity\\(bt.skeleton_text, \\$1\\)").
		WithArgs("TOP {num}", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_block_id", "title", "category_id", "score"}).
			AddRow("lib-3", "blk-3", "Top", 1, 0.82))

	matches, err := repo.FindFuzzyTemplateMatches(context.Background(), "TOP {num}", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.82, matches[0].Score, 1e-9)

	none, err := repo.FindFuzzyTemplateMatches(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Empty(t, none, "empty skeletons never hit the database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPromotionEvents(t *testing.T) {
	repo, mock := newMock(t)

	cols := []string{"id", "source_block_id", "admin_user_id", "requested_category_id", "outcome",
		"created_library_item_id", "duplicate_of_library_item_id", "best_match_library_item_id",
		"best_match_template_block_id", "best_match_score", "skeleton_sig", "note", "created_at"}
	now := time.Now()
	mock.ExpectQuery("FROM library_promotion_events").
		WithArgs("blk-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("ev-2", "blk-1", "adm", 1, "duplicate", "", "lib-1", "lib-1", "blk-0", 1.0, "sig", "blocked-no-override", now).
			AddRow("ev-1", "blk-1", "adm", 1, "promoted", "lib-9", "", "", "", nil, "sig", "promote", now))

	events, err := repo.ListPromotionEvents(context.Background(), "blk-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].BestMatchScore)
	assert.Equal(t, 1.0, *events[0].BestMatchScore)
	assert.Equal(t, "lib-1", events[0].DuplicateOfLibraryItemID)
	assert.Nil(t, events[1].BestMatchScore)
	assert.Equal(t, "lib-9", events[1].CreatedLibraryItemID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSkeletonRecordError(t *testing.T) {
	repo, mock := newMock(t)
	boom := errors.New("connection reset")

	mock.ExpectExec("ON CONFLICT \\(block_id\\) DO UPDATE").WillReturnError(boom)

	err := repo.UpsertSkeletonRecord(context.Background(), model.SkeletonRecord{BlockID: "blk-1"})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
