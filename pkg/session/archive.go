package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/smithers-ai/smithers/pkg/conversation"
)

// Archive indexes completed transcripts in SQLite for search
type Archive struct {
	db *sql.DB
}

// ArchiveHit is a single search result
type ArchiveHit struct {
	SessionKey string    `json:"sessionKey"`
	Ordinal    int       `json:"ordinal"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewArchive opens (or creates) the archive database at dbPath
func NewArchive(dbPath string) (*Archive, error) {
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, ".smithers", "archive.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("Session archive opened")

	return a, nil
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_calls TEXT,
		timestamp DATETIME NOT NULL,
		UNIQUE(session_key, ordinal)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_key);
	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
	`

	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate archive schema: %w", err)
	}

	return nil
}

// ArchiveSession stores a full transcript, replacing any previous
// archive of the same session key.
func (a *Archive) ArchiveSession(ctx context.Context, sessionKey string, messages []conversation.Message) error {
	if err := validateSessionKey(sessionKey); err != nil {
		return err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_key = ?`, sessionKey); err != nil {
		return fmt.Errorf("failed to clear previous archive: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_key, ordinal, role, content, tool_calls, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range messages {
		var toolCallsJSON sql.NullString
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to marshal tool calls: %w", err)
			}
			toolCallsJSON = sql.NullString{String: string(data), Valid: true}
		}

		ts := msg.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}

		if _, err := stmt.ExecContext(ctx, sessionKey, msg.Ordinal, string(msg.Role), msg.Content, toolCallsJSON, ts); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}

	log.Info().
		Str("sessionKey", sessionKey).
		Int("messages", len(messages)).
		Msg("Session archived")

	return nil
}

// Search finds archived messages whose content contains the keyword,
// newest first.
func (a *Archive) Search(ctx context.Context, keyword string, limit int) ([]ArchiveHit, error) {
	if keyword == "" {
		return nil, fmt.Errorf("search keyword cannot be empty")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT session_key, ordinal, role, content, timestamp
		FROM messages
		WHERE content LIKE ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, "%"+keyword+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search archive: %w", err)
	}
	defer rows.Close()

	var hits []ArchiveHit
	for rows.Next() {
		var hit ArchiveHit
		if err := rows.Scan(&hit.SessionKey, &hit.Ordinal, &hit.Role, &hit.Content, &hit.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}

	return hits, nil
}

// ArchivedSessions lists the session keys present in the archive
func (a *Archive) ArchivedSessions(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT DISTINCT session_key FROM messages ORDER BY session_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived sessions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan session key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// Close closes the archive database
func (a *Archive) Close() error {
	return a.db.Close()
}
