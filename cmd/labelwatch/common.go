package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/observability"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

// globalFlags holds the --config/--db flags every subcommand accepts,
// matching cli.py's top-level parser.add_argument("--config")/
// ("--db-path", "--db").
type globalFlags struct {
	configPath string
	dbPath     string
}

func bindGlobalFlags(fs *flag.FlagSet, g *globalFlags) {
	fs.StringVar(&g.configPath, "config", "", "Path to config YAML")
	fs.StringVar(&g.dbPath, "db", "", "Override db_path")
	fs.StringVar(&g.dbPath, "db-path", "", "Override db_path (alias of --db)")
}

func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.dbPath != "" {
		cfg.DBPath = g.dbPath
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	return store.Open(ctx, cfg.DBPath)
}

func newObservability(cfg *config.Config) *observability.Provider {
	p, err := observability.New(observability.FromAppConfig(cfg.LogLevel))
	if err != nil {
		// Falls back to a nil provider; every Provider method tolerates
		// a nil receiver, so this is never fatal to a subcommand.
		return nil
	}
	return p
}

// resolveNow implements cli.py's _resolve_now: an empty string leaves
// "now" unresolved (the pass computes it from time.Now()); "max"
// resolves to the maximum ts seen in the given table; anything else is
// parsed as RFC3339.
func resolveNow(ctx context.Context, st *store.Store, nowArg, table string) (time.Time, bool, error) {
	if nowArg == "" {
		return time.Time{}, false, nil
	}
	if nowArg == "max" {
		ts, ok, err := maxTS(ctx, st, table)
		if err != nil {
			return time.Time{}, false, err
		}
		if !ok {
			return time.Time{}, false, fmt.Errorf("no rows in %s to resolve --now max", table)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse max ts %q: %w", ts, err)
		}
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, nowArg)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse --now %q: %w", nowArg, err)
	}
	return t, true, nil
}

func maxTS(ctx context.Context, st *store.Store, table string) (string, bool, error) {
	if table != "label_events" && table != "alerts" {
		return "", false, fmt.Errorf("invalid table %q for max ts resolution", table)
	}
	var ts sql.NullString
	err := st.DB().QueryRowContext(ctx, "SELECT MAX(ts) FROM "+table).Scan(&ts)
	if err != nil {
		return "", false, err
	}
	return ts.String, ts.Valid, nil
}

func fail(stderr io.Writer, format string, args ...interface{}) int {
	_, _ = fmt.Fprintf(stderr, format+"\n", args...)
	return 2
}
