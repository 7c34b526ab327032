package generation

// schemaVersion tracks the registry layout. Bump it together with any change
// to the statements below.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
    name        TEXT PRIMARY KEY,
    last_number INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS generations (
    profile        TEXT NOT NULL,
    number         INTEGER NOT NULL,
    closure_path   TEXT NOT NULL,
    specialisation TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    created_at     TEXT NOT NULL,
    PRIMARY KEY (profile, number)
);

CREATE INDEX IF NOT EXISTS idx_generations_status
    ON generations (profile, status);
`
