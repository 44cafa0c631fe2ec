package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/eyevinn-osaas/strom-sub003/catalog"
	"github.com/eyevinn-osaas/strom-sub003/flow"
)

// loadDefinitions reads flow definitions from the configured directory
// plus any files given on the command line. Block definitions live in a
// blocks/ subdirectory of the flow directory.
func loadDefinitions(flowDir string, extraFiles []string) ([]*flow.Flow, []*catalog.BlockDefinition, error) {
	var flowFiles []string
	var blockFiles []string

	if flowDir != "" {
		var err error
		flowFiles, err = jsonFiles(flowDir)
		if err != nil {
			return nil, nil, fmt.Errorf("scan flow dir %s: %w", flowDir, err)
		}
		blockFiles, err = jsonFiles(filepath.Join(flowDir, "blocks"))
		if err != nil && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("scan block dir: %w", err)
		}
	}
	flowFiles = append(flowFiles, extraFiles...)

	blocks := make([]*catalog.BlockDefinition, 0, len(blockFiles))
	for _, path := range blockFiles {
		def := &catalog.BlockDefinition{}
		if err := readJSON(path, def); err != nil {
			return nil, nil, err
		}
		if err := def.Validate(); err != nil {
			return nil, nil, fmt.Errorf("block definition %s: %w", path, err)
		}
		blocks = append(blocks, def)
		slog.Debug("Loaded block definition", "id", def.ID, "path", path)
	}

	flows := make([]*flow.Flow, 0, len(flowFiles))
	for _, path := range flowFiles {
		f := &flow.Flow{}
		if err := readJSON(path, f); err != nil {
			return nil, nil, err
		}
		if err := f.Validate(); err != nil {
			return nil, nil, fmt.Errorf("flow %s: %w", path, err)
		}
		flows = append(flows, f)
		slog.Debug("Loaded flow", "id", f.ID, "path", path)
	}

	return flows, blocks, nil
}

// jsonFiles lists the .json files directly inside dir, sorted by name.
func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
