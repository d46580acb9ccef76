package walker

import (
	"bufio"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ignoreFiles are read from every directory of a recursive walk.
var ignoreFiles = []string{".gitignore", ".ignore"}

// ignoreRules holds the patterns in effect for one directory: its own ignore
// files plus those of every ancestor up to the walk root. Rules are shared
// read-only between jobs; a nil *ignoreRules ignores nothing.
type ignoreRules struct {
	patterns []gitignore.Pattern
	matcher  gitignore.Matcher
}

// extend returns the rules for absDir, whose path below the walk root is
// domain. The receiver is returned unchanged when absDir has no ignore file.
func (r *ignoreRules) extend(absDir string, domain []string) *ignoreRules {
	var added []gitignore.Pattern
	for _, name := range ignoreFiles {
		added = append(added, readPatterns(filepath.Join(absDir, name), domain)...)
	}
	if len(added) == 0 {
		return r
	}

	var patterns []gitignore.Pattern
	if r != nil {
		patterns = slices.Clone(r.patterns)
	}
	patterns = append(patterns, added...)
	return &ignoreRules{patterns: patterns, matcher: gitignore.NewMatcher(patterns)}
}

// ignored reports whether the entry at path (components below the walk
// root) is excluded.
func (r *ignoreRules) ignored(path []string, isDir bool) bool {
	if r == nil {
		return false
	}
	return r.matcher.Match(path, isDir)
}

func readPatterns(file string, domain []string) []gitignore.Pattern {
	f, err := os.Open(file)
	if err != nil {
		return nil
	}
	defer f.Close()

	var ps []gitignore.Pattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(line, slices.Clone(domain)))
	}
	return ps
}

// splitRel turns a relative walk path into its components.
func splitRel(rel string) []string {
	if rel == "" {
		return nil
	}
	return strings.Split(rel, Sep)
}
