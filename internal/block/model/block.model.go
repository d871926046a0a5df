package model

import (
	"time"

	libmodel "bigbio/internal/library/model"
	"bigbio/internal/linediff"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	ActionDraft = "draft"
	ActionPost  = "post"
)

type Block struct {
	ID                    string                   `json:"id"`
	OwnerID               string                   `json:"owner_id"`
	Title                 string                   `json:"title"`
	Content               string                   `json:"content"`
	Visibility            string                   `json:"visibility"`
	IsPosted              bool                     `json:"is_posted"`
	PostedAt              *time.Time               `json:"posted_at,omitempty"`
	Tags                  []string                 `json:"ai_tag_suggestions"`
	OriginTemplateBlockID string                   `json:"origin_template_block_id,omitempty"`
	CreatedAt             time.Time                `json:"created_at"`
	UpdatedAt             time.Time                `json:"updated_at"`
	Skeleton              *libmodel.SkeletonRecord `json:"skeleton,omitempty"`
}

type Version struct {
	ID         string    `json:"id"`
	BlockID    string    `json:"block_id"`
	VersionNum int       `json:"version_num"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// RemixEdge links a child block to the parent it was forked from. A child has at most one parent.
type RemixEdge struct {
	ID              string `json:"id"`
	ParentBlockID   string `json:"parent_block_id"`
	ChildBlockID    string `json:"child_block_id"`
	ParentVersionID string `json:"parent_version_id,omitempty"`
}

// DiffRecord is the line diff from a parent version to a child version.
type DiffRecord struct {
	ID              string        `json:"id"`
	ParentBlockID   string        `json:"parent_block_id"`
	ChildBlockID    string        `json:"child_block_id"`
	ParentVersionID string        `json:"parent_version_id,omitempty"`
	ChildVersionID  string        `json:"child_version_id,omitempty"`
	Diff            []linediff.Op `json:"diff"`
	CreatedAt       time.Time     `json:"created_at"`
}

// CreateBlockRequest.Action is "draft" or "post"; empty means post.
type CreateBlockRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
	Action     string `json:"action"`
}

type UpdateBlockRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type RemixRequest struct {
	ParentBlockID string  `json:"parent_block_id"`
	Title         string  `json:"title"`
	Content       *string `json:"content,omitempty"`
	Visibility    string  `json:"visibility"`
}

// BlockResponse is returned by every write so clients can render the skeleton and tags without a refetch.
type BlockResponse struct {
	BlockID    string   `json:"block_id"`
	VersionID  string   `json:"version_id"`
	VersionNum int      `json:"version_num"`
	Skeleton   string   `json:"skeleton_text"`
	Sig        string   `json:"skeleton_sig"`
	SlotCount  int      `json:"slot_count"`
	Tags       []string `json:"ai_tag_suggestions"`
	DiffID     string   `json:"diff_id,omitempty"`
}

type BackfillResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}
