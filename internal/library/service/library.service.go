package service

import (
	"context"
	"errors"
	"fmt"

	"bigbio/internal/apperr"
	"bigbio/internal/library/model"
	"bigbio/internal/library/repository"
	"bigbio/internal/matcher"
	"bigbio/internal/skeleton"
	"bigbio/internal/tagsuggest"
	"bigbio/pkg/logger"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	maxTitleLen       = 120
	maxDescriptionLen = 500
	defaultListLimit  = 30
	maxListLimit      = 100
)

// Notifier is told about every template that enters the library.
type Notifier interface {
	TemplatePromoted(item model.LibraryItem)
}

type LibraryService struct {
	Repo     repository.Store
	Matcher  *matcher.Matcher
	Tags     *tagsuggest.Suggester
	Notifier Notifier
}

func NewLibraryService(repo repository.Store, m *matcher.Matcher, tags *tagsuggest.Suggester, n Notifier) *LibraryService {
	return &LibraryService{Repo: repo, Matcher: m, Tags: tags, Notifier: n}
}

func validatePromote(req model.PromoteRequest) error {
	if err := validation.Validate(req.CategoryID, validation.Required, validation.Min(1)); err != nil {
		return fmt.Errorf("%w: category_id %v", apperr.ErrInvalidCategory, err)
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.BlockID, validation.Required, is.UUID),
		validation.Field(&req.Title, validation.Required, validation.RuneLength(1, maxTitleLen)),
		validation.Field(&req.Description, validation.RuneLength(0, maxDescriptionLen)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if (req.SkeletonSig == "") != (req.SkeletonText == "") {
		return fmt.Errorf("%w: skeleton_text and skeleton_sig must be given together", apperr.ErrInvalidInput)
	}
	return nil
}

// EvaluatePromotion decides whether a block enters the library as a new template or is rejected as a duplicate.
// The lookup, the optional library insert and the audit event commit or roll back together.
func (s *LibraryService) EvaluatePromotion(ctx context.Context, req model.PromoteRequest) (*model.PromotionOutcome, error) {
	if err := validatePromote(req); err != nil {
		return nil, err
	}

	var (
		out     *model.PromotionOutcome
		created *model.LibraryItem
	)
	err := s.Repo.WithinTx(ctx, func(tx repository.Tx) error {
		content, err := tx.GetBlockContent(ctx, req.BlockID)
		if err != nil {
			return err
		}
		active, err := tx.CategoryIsActive(ctx, req.CategoryID)
		if err != nil {
			return err
		}
		if !active {
			return fmt.Errorf("%w: %d", apperr.ErrInvalidCategory, req.CategoryID)
		}

		candidate := model.Candidate{SkeletonText: req.SkeletonText, SkeletonSig: req.SkeletonSig}
		if candidate.SkeletonSig == "" {
			res := skeleton.Build(content)
			if err := tx.UpsertSkeletonRecord(ctx, model.SkeletonRecord{
				BlockID:      req.BlockID,
				SkeletonText: res.Text,
				SkeletonSig:  res.Sig,
				SlotCount:    res.SlotCount,
				LineCount:    res.LineCount,
			}); err != nil {
				return err
			}
			candidate = model.Candidate{SkeletonText: res.Text, SkeletonSig: res.Sig}
		}

		best, exact, err := s.Matcher.BestMatch(ctx, tx, candidate)
		if err != nil {
			return err
		}
		duplicate := s.Matcher.IsDuplicate(best, exact)

		ev := model.PromotionEvent{
			SourceBlockID:       req.BlockID,
			AdminUserID:         req.AdminUserID,
			RequestedCategoryID: req.CategoryID,
			SkeletonSig:         candidate.SkeletonSig,
		}
		out = &model.PromotionOutcome{}
		if best != nil {
			score := best.Score
			ev.BestMatchLibraryItemID = best.LibraryItemID
			ev.BestMatchTemplateBlockID = best.TemplateBlockID
			ev.BestMatchScore = &score
			out.Score = &score
		}

		switch {
		case duplicate && !req.ForceOverride:
			ev.Outcome = model.OutcomeDuplicate
			ev.DuplicateOfLibraryItemID = best.LibraryItemID
			ev.Note = model.NoteBlockedNoOverride
			out.MatchedTemplateID = best.TemplateBlockID
			out.MatchedLibraryItemID = best.LibraryItemID
		default:
			ev.Note = model.NotePromote
			if duplicate {
				ev.DuplicateOfLibraryItemID = best.LibraryItemID
				ev.Note = model.NoteOverridePromote
				out.MatchedTemplateID = best.TemplateBlockID
				out.MatchedLibraryItemID = best.LibraryItemID
			}
			item := model.NewLibraryItem{
				TemplateBlockID: req.BlockID,
				CategoryID:      req.CategoryID,
				Title:           req.Title,
				Description:     req.Description,
				Tags:            s.suggest(candidate.SkeletonText, content),
			}
			id, err := tx.CreateLibraryEntry(ctx, item)
			if err != nil {
				return fmt.Errorf("create library entry: %w", err)
			}
			ev.Outcome = model.OutcomePromoted
			ev.CreatedLibraryItemID = id
			out.NewEntryID = id
			created = &model.LibraryItem{
				ID:              id,
				TemplateBlockID: item.TemplateBlockID,
				CategoryID:      item.CategoryID,
				Title:           item.Title,
				Description:     item.Description,
				Tags:            item.Tags,
			}
		}
		out.Outcome = ev.Outcome

		eventID, err := tx.AppendPromotionEvent(ctx, ev)
		if err != nil {
			return fmt.Errorf("append promotion event: %w", err)
		}
		out.EventID = eventID
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrBlockNotFound) && !errors.Is(err, apperr.ErrInvalidCategory) {
			logger.Sugar.Errorf("Promotion of block %s rolled back: %v", req.BlockID, err)
		}
		return nil, err
	}

	logger.Sugar.Infow("Promotion evaluated",
		"block_id", req.BlockID,
		"outcome", out.Outcome,
		"matched_library_item_id", out.MatchedLibraryItemID,
		"override", req.ForceOverride,
	)
	if created != nil && s.Notifier != nil {
		s.Notifier.TemplatePromoted(*created)
	}
	return out, nil
}

// CheckDuplicates reports every corpus match for a block (or ad-hoc content) without writing anything.
func (s *LibraryService) CheckDuplicates(ctx context.Context, req model.CheckRequest) (*model.CheckResponse, error) {
	content := req.Content
	if req.BlockID != "" {
		if err := validation.Validate(req.BlockID, is.UUID); err != nil {
			return nil, fmt.Errorf("%w: block_id %v", apperr.ErrInvalidInput, err)
		}
		c, err := s.Repo.GetBlockContent(ctx, req.BlockID)
		if err != nil {
			return nil, err
		}
		content = c
	}
	if content == "" {
		return nil, fmt.Errorf("%w: block_id or content is required", apperr.ErrInvalidInput)
	}

	res := skeleton.Build(content)
	matches, err := s.Matcher.FindAll(ctx, s.Repo, model.Candidate{SkeletonText: res.Text, SkeletonSig: res.Sig})
	if err != nil {
		return nil, err
	}
	best, exact := s.Matcher.Decide(matches)
	return &model.CheckResponse{
		SkeletonSig:  res.Sig,
		SkeletonText: res.Text,
		Duplicate:    s.Matcher.IsDuplicate(best, exact),
		Best:         best,
		Matches:      matches,
	}, nil
}

func (s *LibraryService) ListPromotionEvents(ctx context.Context, blockID string) ([]model.PromotionEvent, error) {
	if err := validation.Validate(blockID, validation.Required, is.UUID); err != nil {
		return nil, fmt.Errorf("%w: block_id %v", apperr.ErrInvalidInput, err)
	}
	return s.Repo.ListPromotionEvents(ctx, blockID)
}

func (s *LibraryService) ListLibrary(ctx context.Context, limit int) ([]model.LibraryItem, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.Repo.ListLibrary(ctx, limit)
}

func (s *LibraryService) suggest(texts ...string) []string {
	if s.Tags == nil {
		return []string{}
	}
	return s.Tags.Suggest(texts...)
}
