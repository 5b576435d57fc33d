package store

import (
	"context"
	"database/sql"

	"github.com/unpingable/atproto-labelwatch/internal/errs"
)

// GetMeta returns the value for key, and false if key is unset.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, errs.New(errs.Store, "get_meta", err)
	}
	return value, true, nil
}

// SetMeta upserts key to value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.exec(ctx, "set_meta", `
		INSERT INTO meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
}

// sourceCursorKey namespaces a per-labeler-source ingest cursor under a
// single meta key, avoiding a dedicated table for what is otherwise a
// small amount of bookkeeping state.
func sourceCursorKey(labelerDID, source string) string {
	return "cursor:" + source + ":" + labelerDID
}

// GetSourceCursor returns the last ingest cursor recorded for a
// (labelerDID, source) pair.
func (s *Store) GetSourceCursor(ctx context.Context, labelerDID, source string) (string, bool, error) {
	return s.GetMeta(ctx, sourceCursorKey(labelerDID, source))
}

// SetSourceCursor records the ingest cursor for a (labelerDID, source)
// pair, so the next ingest pass resumes where the last one left off.
func (s *Store) SetSourceCursor(ctx context.Context, labelerDID, source, cursor string) error {
	return s.SetMeta(ctx, sourceCursorKey(labelerDID, source), cursor)
}
