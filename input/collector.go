// Package input turns the paths given on the command line into the files of an upload batch.
package input

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utapi/utapi"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bmatcuk/doublestar/v4"
)

// Collector expands path patterns into upload candidates.
type Collector struct {
	logger       log.Logger
	pathModifier pathutil.PathModifier
	pathChecker  pathutil.PathChecker
}

// NewCollector ...
func NewCollector(logger log.Logger, pathModifier pathutil.PathModifier, pathChecker pathutil.PathChecker) *Collector {
	return &Collector{
		logger:       logger,
		pathModifier: pathModifier,
		pathChecker:  pathChecker,
	}
}

// Collect expands `*` and `**` patterns (symlinks are not followed), resolves
// `~` and env vars, and returns one FileObj per regular file, named after its
// base name. Missing paths and directories are skipped with a warning.
// A file matched by more than one pattern is returned once.
func (c *Collector) Collect(patterns []string) ([]utapi.FileObj, error) {
	var expandedPaths []string
	for _, pattern := range patterns {
		if !strings.Contains(pattern, "*") {
			expandedPaths = append(expandedPaths, pattern)
			continue
		}

		base, rest := doublestar.SplitPattern(pattern)
		absBase, err := c.pathModifier.AbsPath(base)
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(os.DirFS(absBase), rest, doublestar.WithNoFollow())
		if err != nil {
			c.logger.Warnf("Error in path pattern '%s': %s", pattern, err)
			continue
		}
		if len(matches) == 0 {
			c.logger.Warnf("No match for path pattern: %s", pattern)
			continue
		}

		for _, match := range matches {
			expandedPaths = append(expandedPaths, filepath.Join(absBase, match))
		}
	}

	seen := map[string]bool{}
	var files []utapi.FileObj
	for _, path := range expandedPaths {
		absPath, err := c.pathModifier.AbsPath(path)
		if err != nil {
			c.logger.Warnf("Failed to parse path %s, error: %s", path, err)
			continue
		}

		exists, err := c.pathChecker.IsPathExists(absPath)
		if err != nil {
			c.logger.Warnf("Failed to check path %s, error: %s", absPath, err)
		}
		if !exists {
			c.logger.Warnf("Path doesn't exist: %s", path)
			continue
		}

		info, err := os.Stat(absPath)
		if err != nil {
			c.logger.Warnf("Failed to check path %s, error: %s", absPath, err)
			continue
		}
		if info.IsDir() {
			c.logger.Warnf("Skipping directory: %s", path)
			continue
		}

		if seen[absPath] {
			continue
		}
		seen[absPath] = true

		files = append(files, utapi.FileObj{Name: filepath.Base(absPath), Path: absPath})
	}

	c.logger.Debugf("Collected %d file(s) from %d pattern(s)", len(files), len(patterns))
	return files, nil
}
