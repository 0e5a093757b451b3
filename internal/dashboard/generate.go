// Package dashboard renders Grafana dashboards for the backup databases.
package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"fleetsim/internal/telemetry"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

var templateFiles = []string{
	"templates/grafana-greptimedb.json.tmpl",
	"templates/grafana-postgres.json.tmpl",
}

// panel describes one time-series panel shared by both dashboards.
type panel struct {
	Title  string
	Column string
	Unit   string
}

var panels = []panel{
	{"CPU usage", "cpu", "percent"},
	{"Memory usage", "memory", "percent"},
	{"Disk usage", "disk", "percent"},
	{"Response time", "response_time", "ms"},
	{"Network in", "network_in", "Mbits"},
	{"Network out", "network_out", "Mbits"},
	{"Unresolved alerts", "alerts_count", "short"},
}

type data struct {
	Table  string
	Panels []panel
}

// Render writes every dashboard into outDir. Datasource UIDs come from the
// GREPTIMEDB_DATASOURCE_UID and POSTGRES_DATASOURCE_UID environment variables.
func Render(outDir string) error {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
		"last":  func(i int, s []panel) bool { return i == len(s)-1 },
		"gridX": func(i int) int { return (i % 2) * 12 },
		"gridY": func(i int) int { return (i / 2) * 8 },
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	d := data{Table: telemetry.MetricsTableName, Panels: panels}
	for _, tplName := range templateFiles {
		t, err := template.New(filepath.Base(tplName)).Funcs(funcMap).ParseFS(templates, tplName)
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(tplName), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, d); err != nil {
			f.Close()
			return fmt.Errorf("render %s: %w", tplName, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
