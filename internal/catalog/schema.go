package catalog

// Schema v1 establishes the full data model from spec.md §3: artists,
// albums, tracks, favorites, playlists (+ membership), play history,
// and the three Job Coordinator status rows plus system config.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS artists (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  bio TEXT,
  image_local_path TEXT,
  external_id TEXT UNIQUE,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS albums (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  artist_id INTEGER NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
  release_year INTEGER,
  cover_local_path TEXT,
  external_id TEXT,
  release_group_id TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (title, artist_id)
);

CREATE INDEX IF NOT EXISTS idx_albums_artist_id ON albums(artist_id);

CREATE TABLE IF NOT EXISTS tracks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  album_id INTEGER REFERENCES albums(id) ON DELETE SET NULL,
  artist_id INTEGER REFERENCES artists(id) ON DELETE SET NULL,
  duration_s REAL NOT NULL,
  track_no INTEGER,
  disc_no INTEGER,
  path TEXT NOT NULL UNIQUE,
  bitrate INTEGER,
  format TEXT,
  size_bytes INTEGER,
  lyrics TEXT,
  lyric_offset_ms INTEGER NOT NULL DEFAULT 0,
  embedded_art INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tracks_album_id ON tracks(album_id);
CREATE INDEX IF NOT EXISTS idx_tracks_artist_id ON tracks(artist_id);
CREATE INDEX IF NOT EXISTS idx_tracks_path ON tracks(path);

CREATE TABLE IF NOT EXISTS favorites (
  user_id TEXT NOT NULL,
  track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (user_id, track_id)
);

CREATE TABLE IF NOT EXISTS playlists (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  is_public INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_playlists_user_id ON playlists(user_id);

CREATE TABLE IF NOT EXISTS playlist_tracks (
  playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
  track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  PRIMARY KEY (playlist_id, track_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_playlist_tracks_position ON playlist_tracks(playlist_id, position);

CREATE TABLE IF NOT EXISTS play_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
  played_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_play_history_user_id ON play_history(user_id, played_at);

CREATE TABLE IF NOT EXISTS scan_status (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  is_scanning INTEGER NOT NULL DEFAULT 0,
  current_count INTEGER NOT NULL DEFAULT 0,
  total_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  last_scan_at DATETIME,
  run_id TEXT
);

INSERT OR IGNORE INTO scan_status (id) VALUES (1);

CREATE TABLE IF NOT EXISTS artist_sync_status (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  is_syncing INTEGER NOT NULL DEFAULT 0,
  current_count INTEGER NOT NULL DEFAULT 0,
  total_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  last_sync_at DATETIME,
  run_id TEXT
);

INSERT OR IGNORE INTO artist_sync_status (id) VALUES (1);

CREATE TABLE IF NOT EXISTS organize_status (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  is_organizing INTEGER NOT NULL DEFAULT 0,
  current_count INTEGER NOT NULL DEFAULT 0,
  total_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  last_organize_at DATETIME,
  run_id TEXT
);

INSERT OR IGNORE INTO organize_status (id) VALUES (1);

CREATE TABLE IF NOT EXISTS system_config (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`

// schemaV2 adds per-artist failure tracking: artist_sync_status only
// ever holds one aggregate row, so a batch sync with several failing
// artists left every failure but the last invisible. Each artist now
// carries its own last_error, cleared on the next successful sync.
const schemaV2 = `
ALTER TABLE artists ADD COLUMN sync_last_error TEXT;
ALTER TABLE artists ADD COLUMN sync_last_error_at DATETIME;
`
