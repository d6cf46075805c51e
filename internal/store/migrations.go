package store

const schema = `
CREATE TABLE IF NOT EXISTS communities (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL DEFAULT '',
    display_name TEXT NOT NULL DEFAULT '',
    source_ref   TEXT NOT NULL UNIQUE,
    direct_url   TEXT NOT NULL DEFAULT '',
    active       BOOLEAN NOT NULL DEFAULT 1,
    excluded     BOOLEAN NOT NULL DEFAULT 0,
    added_on     DATETIME NOT NULL,
    updated_on   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id  TEXT NOT NULL UNIQUE,
    title        TEXT NOT NULL DEFAULT '',
    body         TEXT NOT NULL DEFAULT '',
    score        INTEGER NOT NULL DEFAULT 0,
    permalink    TEXT NOT NULL DEFAULT '',
    community_id INTEGER NOT NULL REFERENCES communities(id),
    added_on     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_community ON posts(community_id);

CREATE TABLE IF NOT EXISTS galleries (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id  TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    post_id      INTEGER NOT NULL REFERENCES posts(id),
    community_id INTEGER NOT NULL REFERENCES communities(id),
    UNIQUE(post_id)
);

CREATE TABLE IF NOT EXISTS media_assets (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id  TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    filename     TEXT NOT NULL DEFAULT '',
    post_id      INTEGER NOT NULL REFERENCES posts(id),
    community_id INTEGER NOT NULL REFERENCES communities(id),
    gallery_id   INTEGER REFERENCES galleries(id),
    added_on     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_external ON media_assets(community_id, external_id);
CREATE INDEX IF NOT EXISTS idx_assets_post ON media_assets(post_id);

CREATE TABLE IF NOT EXISTS ignored_posts (
    external_id TEXT PRIMARY KEY,
    added_on    DATETIME NOT NULL
);
`
