package database

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS categories (
	id         SERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	slug       TEXT UNIQUE,
	sort_order INTEGER NOT NULL DEFAULT 0,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS blocks (
	id                       UUID PRIMARY KEY,
	owner_id                 UUID NOT NULL,
	title                    TEXT,
	content                  TEXT NOT NULL,
	visibility               TEXT NOT NULL DEFAULT 'public',
	is_posted                BOOLEAN NOT NULL DEFAULT FALSE,
	posted_at                TIMESTAMPTZ,
	ai_tag_suggestions       JSONB NOT NULL DEFAULT '[]',
	origin_template_block_id UUID REFERENCES blocks(id) ON DELETE SET NULL,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS block_versions (
	id          UUID PRIMARY KEY,
	block_id    UUID NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
	version_num INTEGER NOT NULL,
	title       TEXT,
	content     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (block_id, version_num)
);

CREATE TABLE IF NOT EXISTS block_templates (
	block_id         UUID PRIMARY KEY REFERENCES blocks(id) ON DELETE CASCADE,
	skeleton_text    TEXT NOT NULL,
	skeleton_sig     TEXT NOT NULL,
	skeleton_version INTEGER NOT NULL DEFAULT 1,
	slot_count       INTEGER NOT NULL DEFAULT 0,
	line_count       INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'ready',
	last_error       TEXT,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_block_templates_sig ON block_templates(skeleton_sig);
CREATE INDEX IF NOT EXISTS idx_block_templates_trgm ON block_templates USING gin (skeleton_text gin_trgm_ops);

CREATE TABLE IF NOT EXISTS remix_edges (
	id                UUID PRIMARY KEY,
	parent_block_id   UUID NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
	child_block_id    UUID NOT NULL UNIQUE REFERENCES blocks(id) ON DELETE CASCADE,
	parent_version_id UUID REFERENCES block_versions(id) ON DELETE SET NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS block_diffs (
	id                UUID PRIMARY KEY,
	parent_block_id   UUID NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
	child_block_id    UUID NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
	parent_version_id UUID REFERENCES block_versions(id) ON DELETE SET NULL,
	child_version_id  UUID REFERENCES block_versions(id) ON DELETE SET NULL,
	diff              JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_block_diffs_child ON block_diffs(child_block_id, created_at DESC);

CREATE TABLE IF NOT EXISTS library_items (
	id                UUID PRIMARY KEY,
	template_block_id UUID NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
	category_id       INTEGER NOT NULL REFERENCES categories(id),
	title             TEXT NOT NULL,
	description       TEXT,
	tags_text         TEXT[] NOT NULL DEFAULT '{}',
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	is_featured       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS library_promotion_events (
	id                            UUID PRIMARY KEY,
	source_block_id               UUID NOT NULL,
	admin_user_id                 UUID,
	requested_category_id         INTEGER,
	outcome                       TEXT NOT NULL,
	created_library_item_id       UUID,
	duplicate_of_library_item_id  UUID,
	best_match_library_item_id    UUID,
	best_match_template_block_id  UUID,
	best_match_score              DOUBLE PRECISION,
	skeleton_sig                  TEXT,
	note                          TEXT,
	created_at                    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_promotion_events_source ON library_promotion_events(source_block_id, created_at DESC);
`
