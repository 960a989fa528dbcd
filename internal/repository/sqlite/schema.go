package sqlite

// Timestamps are unix nanoseconds so that updated_at can be bumped by one
// inside SQL when two writes land in the same clock tick.
const schema = `
CREATE TABLE IF NOT EXISTS identities (
	uuid TEXT PRIMARY KEY,
	platform TEXT NOT NULL,
	identity TEXT NOT NULL,
	display_name TEXT,
	avatar_url TEXT,
	profile_url TEXT,
	created_at INTEGER,
	added_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (platform, identity)
);

CREATE TABLE IF NOT EXISTS contracts (
	uuid TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	chain TEXT NOT NULL,
	address TEXT NOT NULL,
	symbol TEXT,
	updated_at INTEGER NOT NULL,
	UNIQUE (chain, address)
);

CREATE TABLE IF NOT EXISTS proofs (
	uuid TEXT PRIMARY KEY,
	from_uuid TEXT NOT NULL REFERENCES identities(uuid) ON DELETE CASCADE,
	to_uuid TEXT NOT NULL REFERENCES identities(uuid) ON DELETE CASCADE,
	source TEXT NOT NULL,
	record_id TEXT,
	created_at INTEGER,
	last_fetched_at INTEGER NOT NULL,
	UNIQUE (from_uuid, to_uuid, source)
);

CREATE TABLE IF NOT EXISTS holds (
	uuid TEXT PRIMARY KEY,
	from_uuid TEXT NOT NULL REFERENCES identities(uuid) ON DELETE CASCADE,
	to_uuid TEXT NOT NULL,
	to_kind TEXT NOT NULL,
	source TEXT NOT NULL,
	fetcher TEXT NOT NULL,
	tx TEXT,
	hold_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER,
	updated_at INTEGER NOT NULL,
	UNIQUE (from_uuid, to_uuid, source, hold_id)
);

CREATE TABLE IF NOT EXISTS resolves (
	uuid TEXT PRIMARY KEY,
	from_uuid TEXT NOT NULL,
	from_kind TEXT NOT NULL,
	to_uuid TEXT NOT NULL,
	to_kind TEXT NOT NULL,
	source TEXT NOT NULL,
	system TEXT NOT NULL,
	name TEXT NOT NULL,
	fetcher TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (from_uuid, to_uuid, source, system, name)
);

CREATE INDEX IF NOT EXISTS idx_proofs_to ON proofs(to_uuid);
CREATE INDEX IF NOT EXISTS idx_holds_to ON holds(to_uuid);
CREATE INDEX IF NOT EXISTS idx_resolves_to ON resolves(to_uuid);
`
