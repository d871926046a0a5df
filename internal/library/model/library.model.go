package model

import "time"

const (
	OutcomeDuplicate = "duplicate"
	OutcomePromoted  = "promoted"

	NoteBlockedNoOverride = "blocked-no-override"
	NoteOverridePromote   = "override-promote"
	NotePromote           = "promote"
)

// SkeletonRecord is the persisted skeleton of a block, keyed by block ID.
type SkeletonRecord struct {
	BlockID      string    `json:"block_id"`
	SkeletonText string    `json:"skeleton_text"`
	SkeletonSig  string    `json:"skeleton_sig"`
	SlotCount    int       `json:"slot_count"`
	LineCount    int       `json:"line_count"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// TemplateMatch is a corpus entry returned by an exact or fuzzy lookup.
type TemplateMatch struct {
	LibraryItemID   string  `json:"library_item_id"`
	TemplateBlockID string  `json:"template_block_id"`
	Title           string  `json:"title"`
	CategoryID      int     `json:"category_id"`
	Score           float64 `json:"score"`
}

// MatchResult is the transient result of a duplicate check.
type MatchResult struct {
	Exact []TemplateMatch `json:"exact"`
	Fuzzy []TemplateMatch `json:"fuzzy"`
}

// Candidate is the skeleton being checked against the corpus.
type Candidate struct {
	SkeletonText string
	SkeletonSig  string
}

type LibraryItem struct {
	ID              string    `json:"id"`
	TemplateBlockID string    `json:"template_block_id"`
	CategoryID      int       `json:"category_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"created_at"`
}

type NewLibraryItem struct {
	TemplateBlockID string
	CategoryID      int
	Title           string
	Description     string
	Tags            []string
}

// PromotionEvent is one append-only audit row. Optional references are empty strings / nil scores.
type PromotionEvent struct {
	ID                       string    `json:"id"`
	SourceBlockID            string    `json:"source_block_id"`
	AdminUserID              string    `json:"admin_user_id,omitempty"`
	RequestedCategoryID      int       `json:"requested_category_id"`
	Outcome                  string    `json:"outcome"`
	CreatedLibraryItemID     string    `json:"created_library_item_id,omitempty"`
	DuplicateOfLibraryItemID string    `json:"duplicate_of_library_item_id,omitempty"`
	BestMatchLibraryItemID   string    `json:"best_match_library_item_id,omitempty"`
	BestMatchTemplateBlockID string    `json:"best_match_template_block_id,omitempty"`
	BestMatchScore           *float64  `json:"best_match_score,omitempty"`
	SkeletonSig              string    `json:"skeleton_sig"`
	Note                     string    `json:"note"`
	CreatedAt                time.Time `json:"created_at"`
}

type PromoteRequest struct {
	BlockID       string `json:"block_id"`
	CategoryID    int    `json:"category_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ForceOverride bool   `json:"force_override"`
	SkeletonText  string `json:"skeleton_text,omitempty"`
	SkeletonSig   string `json:"skeleton_sig,omitempty"`
	AdminUserID   string `json:"-"`
}

type PromotionOutcome struct {
	Outcome              string   `json:"outcome"`
	MatchedTemplateID    string   `json:"matched_template_id,omitempty"`
	MatchedLibraryItemID string   `json:"matched_library_item_id,omitempty"`
	Score                *float64 `json:"score,omitempty"`
	NewEntryID           string   `json:"new_entry_id,omitempty"`
	EventID              string   `json:"event_id"`
}

type CheckRequest struct {
	BlockID string `json:"block_id"`
	Content string `json:"content"`
}

type CheckResponse struct {
	SkeletonSig  string         `json:"skeleton_sig"`
	SkeletonText string         `json:"skeleton_text"`
	Duplicate    bool           `json:"duplicate"`
	Best         *TemplateMatch `json:"best,omitempty"`
	Matches      MatchResult    `json:"matches"`
}
