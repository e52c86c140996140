package budget

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultExtensions are the artifact types counted when scanning a
// feature directory.
var defaultExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".yaml": true,
	".yml":  true,
}

// Scan collects artifact sizes from a feature directory so the budget
// can be computed without the caller enumerating files. Orchestrator
// bookkeeping (the workflow document, lock, history db, event log) is
// not an artifact and is skipped.
func Scan(dir string) ([]Artifact, error) {
	var artifacts []Artifact

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == "workflow.yaml" || name == "workflow.lock" ||
			name == "deployments.db" || name == "events.log" ||
			name == "shipway.yml" {
			return nil
		}
		if !defaultExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		artifacts = append(artifacts, Artifact{Name: rel, Size: info.Size()})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("feature directory %s does not exist", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}
