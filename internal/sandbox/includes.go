package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// includeDirective matches OpenSCAD-style source dependencies:
//
//	include <gridfinity-rebuilt-utility.scad>
//	use <helpers/lib.scad>
var includeDirective = regexp.MustCompile(`(?m)^\s*(?:include|use)\s*<([^>]+)>`)

// sourceExts lists file extensions treated as "source with includes": their
// transitive include closure is staged alongside them. Everything else is
// staged as a single flat file.
var sourceExts = map[string]bool{
	".scad": true,
}

func hasIncludes(path string) bool {
	return sourceExts[strings.ToLower(filepath.Ext(path))]
}

// includeClosure returns the transitive include closure of root as paths
// relative to root's directory, dependencies before dependents. The root
// file itself is not included in the result.
//
// Include references resolve relative to the directory of the file declaring
// them. A reference escaping the root file's directory cannot be mirrored
// inside the sandbox and is rejected. An unreadable or missing include is a
// staging failure for this combination.
func includeClosure(root string) ([]string, error) {
	baseDir := filepath.Dir(root)
	var deps []string
	visited := map[string]struct{}{}

	var visit func(path string) error
	visit = func(path string) error {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading source %q: %w", path, err)
		}
		for _, match := range includeDirective.FindAllStringSubmatch(string(content), -1) {
			ref := filepath.Join(filepath.Dir(path), filepath.FromSlash(match[1]))
			rel, err := filepath.Rel(baseDir, ref)
			if err != nil || strings.HasPrefix(rel, "..") {
				return fmt.Errorf("include %q in %q escapes the source directory", match[1], path)
			}
			if _, seen := visited[rel]; seen {
				continue
			}
			visited[rel] = struct{}{}
			if _, err := os.Stat(ref); err != nil {
				return fmt.Errorf("unresolvable include %q in %q: %w", match[1], path, err)
			}
			if err := visit(ref); err != nil {
				return err
			}
			deps = append(deps, rel)
		}
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return deps, nil
}
