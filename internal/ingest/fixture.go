package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

// FromFixture reads newline-delimited JSON label events from path,
// unwrapping a {"label": {...}} envelope when present, and stores them
// through FromIter — the offline replay path ingest_from_fixture
// supports for local testing against a recorded firehose capture.
func FromFixture(ctx context.Context, st *store.Store, cfg *config.Config, path string) (int, error) {
	items, err := fromFixtureLines(path)
	if err != nil {
		return 0, err
	}
	return FromIter(ctx, st, cfg, items)
}

// fromFixtureLines parses the fixture file's lines into raw item maps,
// split out from FromFixture so the JSONL-unwrapping logic is testable
// without touching the store.
func fromFixtureLines(path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()

	var items []map[string]interface{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("ingest: parse fixture line: %w", err)
		}
		if label, ok := raw["label"].(map[string]interface{}); ok {
			raw = label
		}
		items = append(items, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingest: scan fixture: %w", err)
	}
	return items, nil
}
