package db

// Schema is the DDL for the mailnudge database.
const Schema = `
CREATE TABLE IF NOT EXISTS nudges (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    content       TEXT NOT NULL,
    due_at        TEXT,
    priority      TEXT NOT NULL DEFAULT 'normal'
                  CHECK (priority IN ('low', 'normal', 'high', 'urgent')),
    status        TEXT NOT NULL DEFAULT 'pending'
                  CHECK (status IN ('pending', 'sent', 'completed', 'cancelled')),
    source        TEXT NOT NULL DEFAULT 'manual',
    created_at    TEXT NOT NULL,
    completed_at  TEXT
);

CREATE TABLE IF NOT EXISTS notes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    content     TEXT NOT NULL,
    tags        TEXT,
    source      TEXT NOT NULL DEFAULT 'manual',
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sent_log (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    channel        TEXT NOT NULL CHECK (channel IN ('email', 'sms')),
    recipient      TEXT NOT NULL,
    subject        TEXT,
    content        TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'sent',
    sent_at        TEXT NOT NULL,
    error_message  TEXT
);

CREATE TABLE IF NOT EXISTS email_ingest_log (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id       TEXT NOT NULL UNIQUE,
    subject          TEXT,
    sender           TEXT,
    command_type     TEXT NOT NULL
                     CHECK (command_type IN ('add_nudge', 'add_milestone', 'note', 'today', 'unknown')),
    command_content  TEXT,
    processed_at     TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'processed',
    error_message    TEXT
);

CREATE INDEX IF NOT EXISTS idx_nudges_status ON nudges(status);
CREATE INDEX IF NOT EXISTS idx_nudges_due ON nudges(due_at);
CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sent_log_sent ON sent_log(sent_at DESC);
CREATE INDEX IF NOT EXISTS idx_ingest_processed ON email_ingest_log(processed_at DESC);
`
