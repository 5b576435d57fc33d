package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
)

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

// runDoctorCmd implements `labelwatch doctor` — local configuration and
// database health check, grounded on cmd/helm's runDoctorCmd but
// retargeted at Labelwatch's own dependencies (config file, SQLite
// path, labeler_dids) instead of Postgres/pg_isready.
func runDoctorCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	bindGlobalFlags(fs, &g)
	jsonOutput := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var results []checkResult
	allOK := true

	results = append(results, checkResult{
		Name:   "go_runtime",
		Status: "ok",
		Detail: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	})

	cfg, err := loadConfig(&g)
	if err != nil {
		results = append(results, checkResult{Name: "config", Status: "fail", Detail: err.Error()})
		allOK = false
		return printDoctorResults(stdout, results, allOK, *jsonOutput)
	}
	results = append(results, checkResult{Name: "config", Status: "ok", Detail: configDetail(&g)})

	if len(cfg.LabelerDIDs) == 0 {
		results = append(results, checkResult{
			Name: "labeler_dids", Status: "warn",
			Detail: "no labeler_dids configured (required for ingest)",
		})
	} else {
		results = append(results, checkResult{
			Name: "labeler_dids", Status: "ok",
			Detail: fmt.Sprintf("%d configured", len(cfg.LabelerDIDs)),
		})
	}

	if _, err := os.Stat(cfg.DBPath); err != nil {
		results = append(results, checkResult{
			Name: "db_path", Status: "warn",
			Detail: fmt.Sprintf("%s does not exist (will be created on first use)", cfg.DBPath),
		})
	} else {
		ctx := context.Background()
		st, err := openStore(ctx, cfg)
		if err != nil {
			results = append(results, checkResult{Name: "db_path", Status: "fail", Detail: err.Error()})
			allOK = false
		} else {
			labelers, err := st.ListLabelers(ctx)
			_ = st.Close()
			if err != nil {
				results = append(results, checkResult{Name: "db_path", Status: "fail", Detail: err.Error()})
				allOK = false
			} else {
				results = append(results, checkResult{
					Name: "db_path", Status: "ok",
					Detail: fmt.Sprintf("%s (%d labelers)", cfg.DBPath, len(labelers)),
				})
			}
		}
	}

	return printDoctorResults(stdout, results, allOK, *jsonOutput)
}

func configDetail(g *globalFlags) string {
	if g.configPath == "" {
		return "using built-in defaults (no --config given)"
	}
	return g.configPath
}

func printDoctorResults(stdout io.Writer, results []checkResult, allOK, jsonOutput bool) int {
	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]interface{}{"checks": results, "ok": allOK}, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintln(stdout, "\nlabelwatch doctor")
		_, _ = fmt.Fprintln(stdout, "-----------------")
		for _, r := range results {
			_, _ = fmt.Fprintf(stdout, "  %-6s %-16s %s\n", r.Status, r.Name, r.Detail)
		}
	}
	if allOK {
		return 0
	}
	return 1
}
