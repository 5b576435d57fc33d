package main

import (
	"fmt"
	"io"
	"os"
)

const defaultConfigYAML = `# Labelwatch configuration
db_path: labelwatch.db
service_url: https://bsky.social
labeler_dids: []

discovery_enabled: false
discovery_interval_hours: 24

log_level: info
`

// runInitCmd implements `labelwatch init` — project scaffolding,
// grounded on cmd/helm's runInitCmd (directory + starter config file),
// retargeted at Labelwatch's own config shape.
func runInitCmd(args []string, stdout, stderr io.Writer) int {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	for _, d := range []string{"report"} {
		path := dir + "/" + d
		if err := os.MkdirAll(path, 0o750); err != nil {
			return fail(stderr, "Error: cannot create %s: %v", path, err)
		}
	}

	configPath := dir + "/labelwatch.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0o600); err != nil {
			return fail(stderr, "Error: cannot write %s: %v", configPath, err)
		}
	}

	_, _ = fmt.Fprintf(stdout, "Initialized labelwatch project in %s\n", dir)
	return 0
}
