package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"bigbio/internal/apperr"
	"bigbio/internal/block/model"
	"bigbio/internal/block/repository"
	libmodel "bigbio/internal/library/model"
	"bigbio/internal/linediff"
	"bigbio/internal/skeleton"
	"bigbio/internal/tagsuggest"
	"bigbio/pkg/logger"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	maxTitleLen     = 120
	maxContentLen   = 10000
	backfillWorkers = 4
)

// Broadcaster pushes line diffs to everyone viewing a block.
type Broadcaster interface {
	BlockUpdated(blockID, userID string, versionNum int, ops []linediff.Op)
}

type BlockService struct {
	Repo repository.Store
	Tags *tagsuggest.Suggester
	Hub  Broadcaster
}

func NewBlockService(repo repository.Store, tags *tagsuggest.Suggester, hub Broadcaster) *BlockService {
	return &BlockService{Repo: repo, Tags: tags, Hub: hub}
}

var visibilityRule = validation.In(model.VisibilityPublic, model.VisibilityPrivate)

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
}

func (s *BlockService) CreateBlock(ctx context.Context, ownerID string, req model.CreateBlockRequest) (*model.BlockResponse, error) {
	if req.Visibility == "" {
		req.Visibility = model.VisibilityPublic
	}
	if req.Action == "" {
		req.Action = model.ActionPost
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Title, validation.RuneLength(0, maxTitleLen)),
		validation.Field(&req.Content, validation.Required, validation.RuneLength(1, maxContentLen)),
		validation.Field(&req.Visibility, visibilityRule),
		validation.Field(&req.Action, validation.In(model.ActionDraft, model.ActionPost)),
	)
	if err != nil {
		return nil, invalid(err)
	}
	if err := validation.Validate(ownerID, validation.Required, is.UUID); err != nil {
		return nil, invalid(fmt.Errorf("owner: %v", err))
	}

	res := skeleton.Build(req.Content)
	block := model.Block{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      req.Title,
		Content:    req.Content,
		Visibility: req.Visibility,
		IsPosted:   req.Action == model.ActionPost,
		Tags:       s.suggest(res.Text, req.Content),
	}
	if block.IsPosted {
		now := time.Now().UTC()
		block.PostedAt = &now
	}

	var version *model.Version
	err = s.Repo.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertBlock(ctx, block); err != nil {
			return err
		}
		v, err := tx.InsertVersion(ctx, block.ID, block.Title, block.Content)
		if err != nil {
			return err
		}
		version = v
		return tx.UpsertSkeletonRecord(ctx, skeletonRecord(block.ID, res))
	})
	if err != nil {
		return nil, err
	}

	logger.Sugar.Infow("Block created", "block_id", block.ID, "owner_id", ownerID, "action", req.Action, "skeleton_sig", res.Sig)
	return response(block, version, res, ""), nil
}

// UpdateBlock appends a version, refreshes the skeleton and, for remixes, records the diff from the parent.
func (s *BlockService) UpdateBlock(ctx context.Context, userID, blockID string, req model.UpdateBlockRequest) (*model.BlockResponse, error) {
	if err := validation.Validate(blockID, validation.Required, is.UUID); err != nil {
		return nil, invalid(fmt.Errorf("block_id: %v", err))
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Title, validation.RuneLength(0, maxTitleLen)),
		validation.Field(&req.Content, validation.Required, validation.RuneLength(1, maxContentLen)),
	)
	if err != nil {
		return nil, invalid(err)
	}

	res := skeleton.Build(req.Content)
	tags := s.suggest(res.Text, req.Content)

	var (
		block   *model.Block
		version *model.Version
		ops     []linediff.Op
		diffID  string
	)
	err = s.Repo.WithinTx(ctx, func(tx repository.Tx) error {
		b, err := tx.GetBlock(ctx, blockID)
		if err != nil {
			return err
		}
		if b.OwnerID != userID {
			return fmt.Errorf("%w: only the owner can edit block %s", apperr.ErrForbidden, blockID)
		}
		ops = linediff.Diff(b.Content, req.Content)

		if req.Title != "" {
			b.Title = req.Title
		}
		b.Content = req.Content
		b.Tags = tags
		block = b

		if err := tx.UpdateBlock(ctx, blockID, b.Title, b.Content, tags); err != nil {
			return err
		}
		if version, err = tx.InsertVersion(ctx, blockID, b.Title, b.Content); err != nil {
			return err
		}
		if err := tx.UpsertSkeletonRecord(ctx, skeletonRecord(blockID, res)); err != nil {
			return err
		}

		edge, err := tx.GetRemixEdge(ctx, blockID)
		if err != nil || edge == nil {
			return err
		}
		parentContent, err := s.parentContent(ctx, tx, edge)
		if err != nil {
			return err
		}
		diffID, err = recordDiff(ctx, tx, model.DiffRecord{
			ParentBlockID:   edge.ParentBlockID,
			ChildBlockID:    blockID,
			ParentVersionID: edge.ParentVersionID,
			ChildVersionID:  version.ID,
		}, parentContent, req.Content)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.Hub != nil && len(ops) > 0 {
		s.Hub.BlockUpdated(blockID, userID, version.VersionNum, ops)
	}
	return response(*block, version, res, diffID), nil
}

// RemixBlock forks a parent into a new block owned by ownerID, recording lineage and the fork diff.
func (s *BlockService) RemixBlock(ctx context.Context, ownerID string, req model.RemixRequest) (*model.BlockResponse, error) {
	if req.Visibility == "" {
		req.Visibility = model.VisibilityPublic
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.ParentBlockID, validation.Required, is.UUID),
		validation.Field(&req.Title, validation.RuneLength(0, maxTitleLen)),
		validation.Field(&req.Visibility, visibilityRule),
	)
	if err != nil {
		return nil, invalid(err)
	}
	if err := validation.Validate(ownerID, validation.Required, is.UUID); err != nil {
		return nil, invalid(fmt.Errorf("owner: %v", err))
	}

	var (
		child   model.Block
		version *model.Version
		res     skeleton.Result
		diffID  string
	)
	err = s.Repo.WithinTx(ctx, func(tx repository.Tx) error {
		parent, err := tx.GetBlock(ctx, req.ParentBlockID)
		if err != nil {
			return err
		}
		if !canView(parent, ownerID) {
			return fmt.Errorf("%w: block %s is private", apperr.ErrForbidden, parent.ID)
		}
		parentVersion, err := tx.LatestVersion(ctx, parent.ID)
		if err != nil {
			return err
		}
		parentContent := parent.Content
		parentVersionID := ""
		if parentVersion != nil {
			parentContent = parentVersion.Content
			parentVersionID = parentVersion.ID
		}

		content := parent.Content
		if req.Content != nil {
			content = *req.Content
		}
		if err := validation.Validate(content, validation.Required, validation.RuneLength(1, maxContentLen)); err != nil {
			return invalid(fmt.Errorf("content: %v", err))
		}
		title := req.Title
		if title == "" {
			title = parent.Title
		}

		origin := parent.OriginTemplateBlockID
		isTemplate, err := tx.IsLibraryTemplate(ctx, parent.ID)
		if err != nil {
			return err
		}
		if isTemplate {
			origin = parent.ID
		}

		res = skeleton.Build(content)
		now := time.Now().UTC()
		child = model.Block{
			ID:                    uuid.NewString(),
			OwnerID:               ownerID,
			Title:                 title,
			Content:               content,
			Visibility:            req.Visibility,
			IsPosted:              true,
			PostedAt:              &now,
			Tags:                  s.suggest(res.Text, content),
			OriginTemplateBlockID: origin,
		}
		if err := tx.InsertBlock(ctx, child); err != nil {
			return err
		}
		if version, err = tx.InsertVersion(ctx, child.ID, child.Title, child.Content); err != nil {
			return err
		}
		if err := tx.UpsertSkeletonRecord(ctx, skeletonRecord(child.ID, res)); err != nil {
			return err
		}
		if err := tx.InsertRemixEdge(ctx, model.RemixEdge{
			ParentBlockID:   parent.ID,
			ChildBlockID:    child.ID,
			ParentVersionID: parentVersionID,
		}); err != nil {
			return err
		}
		diffID, err = recordDiff(ctx, tx, model.DiffRecord{
			ParentBlockID:   parent.ID,
			ChildBlockID:    child.ID,
			ParentVersionID: parentVersionID,
			ChildVersionID:  version.ID,
		}, parentContent, content)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Sugar.Infow("Block remixed",
		"block_id", child.ID,
		"parent_block_id", req.ParentBlockID,
		"origin_template_block_id", child.OriginTemplateBlockID,
	)
	return response(child, version, res, diffID), nil
}

// GetBlock returns a block with its stored skeleton. Private blocks are only visible to their owner.
func (s *BlockService) GetBlock(ctx context.Context, viewerID, blockID string) (*model.Block, error) {
	b, err := s.visibleBlock(ctx, viewerID, blockID)
	if err != nil {
		return nil, err
	}
	rec, err := s.Repo.GetSkeletonRecord(ctx, blockID)
	if err != nil {
		return nil, err
	}
	b.Skeleton = rec
	return b, nil
}

func (s *BlockService) ListDiffs(ctx context.Context, viewerID, blockID string) ([]model.DiffRecord, error) {
	if _, err := s.visibleBlock(ctx, viewerID, blockID); err != nil {
		return nil, err
	}
	return s.Repo.ListDiffs(ctx, blockID)
}

// ListDrafts returns the caller's unposted blocks.
func (s *BlockService) ListDrafts(ctx context.Context, userID string) ([]model.Block, error) {
	if err := validation.Validate(userID, validation.Required, is.UUID); err != nil {
		return nil, invalid(fmt.Errorf("user: %v", err))
	}
	return s.Repo.ListDrafts(ctx, userID)
}

// Reskeletonize recomputes and stores the skeleton of one block. Running it twice stores the same record.
func (s *BlockService) Reskeletonize(ctx context.Context, blockID string) (*skeleton.Result, error) {
	content, err := s.Repo.GetBlockContent(ctx, blockID)
	if err != nil {
		return nil, err
	}
	res := skeleton.Build(content)
	if err := s.Repo.UpsertSkeletonRecord(ctx, skeletonRecord(blockID, res)); err != nil {
		return nil, err
	}
	return &res, nil
}

// Backfill re-skeletonizes every block. Per-block failures are logged and counted; only cancellation aborts.
func (s *BlockService) Backfill(ctx context.Context) (model.BackfillResult, error) {
	ids, err := s.Repo.ListBlockIDs(ctx)
	if err != nil {
		return model.BackfillResult{}, err
	}

	var processed, failed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(backfillWorkers)
	for _, id := range ids {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if _, err := s.Reskeletonize(gCtx, id); err != nil {
				logger.Sugar.Errorf("Backfill failed for block %s: %v", id, err)
				failed.Add(1)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	err = g.Wait()

	out := model.BackfillResult{Processed: int(processed.Load()), Failed: int(failed.Load())}
	logger.Sugar.Infow("Backfill finished", "processed", out.Processed, "failed", out.Failed)
	return out, err
}

func (s *BlockService) visibleBlock(ctx context.Context, viewerID, blockID string) (*model.Block, error) {
	if err := validation.Validate(blockID, validation.Required, is.UUID); err != nil {
		return nil, invalid(fmt.Errorf("block_id: %v", err))
	}
	b, err := s.Repo.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if !canView(b, viewerID) {
		return nil, fmt.Errorf("%w: block %s is private", apperr.ErrForbidden, blockID)
	}
	return b, nil
}

// parentContent prefers the parent version the remix was taken from, falling back to the parent's current
// content when that version is gone.
func (s *BlockService) parentContent(ctx context.Context, tx repository.Tx, edge *model.RemixEdge) (string, error) {
	if edge.ParentVersionID != "" {
		v, err := tx.GetVersion(ctx, edge.ParentVersionID)
		if err != nil {
			return "", err
		}
		if v != nil {
			return v.Content, nil
		}
	}
	parent, err := tx.GetBlock(ctx, edge.ParentBlockID)
	if err != nil {
		return "", err
	}
	return parent.Content, nil
}

func (s *BlockService) suggest(texts ...string) []string {
	if s.Tags == nil {
		return []string{}
	}
	return s.Tags.Suggest(texts...)
}

// recordDiff stores the diff from oldText to newText after checking it replays to newText.
func recordDiff(ctx context.Context, tx repository.Tx, d model.DiffRecord, oldText, newText string) (string, error) {
	d.Diff = linediff.Diff(oldText, newText)
	replayed, err := linediff.Apply(oldText, d.Diff)
	if err != nil {
		return "", fmt.Errorf("verify diff: %w", err)
	}
	if replayed != strings.Join(linediff.Split(newText), "\n") {
		return "", fmt.Errorf("verify diff: replay of %s -> %s does not reproduce the child", d.ParentBlockID, d.ChildBlockID)
	}
	return tx.InsertDiff(ctx, d)
}

func canView(b *model.Block, viewerID string) bool {
	return b.Visibility != model.VisibilityPrivate || b.OwnerID == viewerID
}

func skeletonRecord(blockID string, res skeleton.Result) libmodel.SkeletonRecord {
	return libmodel.SkeletonRecord{
		BlockID:      blockID,
		SkeletonText: res.Text,
		SkeletonSig:  res.Sig,
		SlotCount:    res.SlotCount,
		LineCount:    res.LineCount,
	}
}

func response(b model.Block, v *model.Version, res skeleton.Result, diffID string) *model.BlockResponse {
	out := &model.BlockResponse{
		BlockID:   b.ID,
		Skeleton:  res.Text,
		Sig:       res.Sig,
		SlotCount: res.SlotCount,
		Tags:      b.Tags,
		DiffID:    diffID,
	}
	if v != nil {
		out.VersionID = v.ID
		out.VersionNum = v.VersionNum
	}
	return out
}
