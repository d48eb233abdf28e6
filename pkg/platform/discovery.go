package platform

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/arion-app/arion-plugins/internal/config"
	"github.com/arion-app/arion-plugins/internal/locator"
	"github.com/arion-app/arion-plugins/pkg/manifest"
)

// discoveryRoot is one directory (or direct manifest file) scanned for
// plugins, tagged with its precedence tier.
type discoveryRoot struct {
	source manifest.Source
	path   string
	order  int
}

// candidate is one manifest file found during discovery.
type candidate struct {
	manifestPath string
	origin       manifest.Origin
}

// buildRoots derives the discovery roots from configuration and host
// layout, highest precedence tier first. Duplicate paths keep their first
// (highest) tier.
func buildRoots(cfg *config.PlatformConfig, loc locator.Locator, workspaceRoot string) []discoveryRoot {
	var roots []discoveryRoot
	seen := make(map[string]bool)

	add := func(source manifest.Source, path string) {
		if path == "" {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		roots = append(roots, discoveryRoot{source: source, path: abs, order: len(roots)})
	}

	for _, path := range cfg.ConfiguredPluginPaths {
		add(manifest.SourceConfigured, path)
	}

	if workspaceRoot != "" {
		add(manifest.SourceWorkspace, filepath.Join(workspaceRoot, ".arion", "plugins"))
		add(manifest.SourceWorkspace, filepath.Join(workspaceRoot, "arion-plugins"))
	}

	if userData := loc.UserDataPath(); userData != "" {
		add(manifest.SourceGlobal, filepath.Join(userData, "plugins"))
	}

	if resources := loc.ResourcesPath(); resources != "" {
		add(manifest.SourceBundled, filepath.Join(resources, "plugins"))
		add(manifest.SourceBundled, filepath.Join(resources, "app", "plugins"))
	}
	if app := loc.AppPath(); app != "" {
		add(manifest.SourceBundled, filepath.Join(app, "plugins"))
	}

	return roots
}

// discoverCandidates scans each root for manifest files. A root may be a
// manifest file itself, a plugin directory with a manifest at its top
// level, or a container whose immediate subdirectories are plugins.
// Candidates are deduplicated by manifest path and sorted by precedence
// desc, then root order, then path, so the winner of an id collision is
// always the first occurrence.
func discoverCandidates(roots []discoveryRoot) []candidate {
	var candidates []candidate
	seen := make(map[string]bool)

	add := func(path string, root discoveryRoot) {
		if seen[path] {
			return
		}
		seen[path] = true
		candidates = append(candidates, candidate{
			manifestPath: path,
			origin: manifest.Origin{
				Source:     root.source,
				Precedence: root.source.Precedence(),
				RootOrder:  root.order,
			},
		})
	}

	for _, root := range roots {
		info, err := os.Stat(root.path)
		if err != nil {
			continue
		}

		if !info.IsDir() {
			if filepath.Base(root.path) == manifest.FileName {
				add(root.path, root)
			}
			continue
		}

		if direct := filepath.Join(root.path, manifest.FileName); fileExists(direct) {
			add(direct, root)
		}

		entries, err := os.ReadDir(root.path)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			nested := filepath.Join(root.path, entry.Name(), manifest.FileName)
			if fileExists(nested) {
				add(nested, root)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].origin.Precedence != candidates[j].origin.Precedence {
			return candidates[i].origin.Precedence > candidates[j].origin.Precedence
		}
		if candidates[i].origin.RootOrder != candidates[j].origin.RootOrder {
			return candidates[i].origin.RootOrder < candidates[j].origin.RootOrder
		}
		return candidates[i].manifestPath < candidates[j].manifestPath
	})

	return candidates
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
