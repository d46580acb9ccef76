// Package query turns the raw text typed into the finder into a search
// directory, a match pattern and a walk mode.
//
// Input grammar:
//
//	"src/main"   flat listing of ~/src, pattern "main"
//	"src/ main"  recursive walk of ~/src, pattern "main"
//	" main"      recursive walk of ~, pattern "main"
//	"/etc/sys"   flat listing of /etc, pattern "sys"
//
// Bare queries are flat on purpose: recursive walks are expensive and need
// an explicit marker.
package query

import "strings"

// Sep is the separator used in search directories and listing entries.
const Sep = "/"

// Query is a parsed finder input.
type Query struct {
	// Dir is the search directory. It is empty (the configured root) or
	// ends with Sep. A leading Sep marks a filesystem-root query.
	Dir       string `json:"dir"`
	Pattern   string `json:"pattern"`
	Recursive bool   `json:"recursive"`
}

// Parse splits raw into a Query.
func Parse(raw string) Query {
	rest, rooted := strings.CutPrefix(raw, Sep)

	var q Query
	if before, after, ok := strings.Cut(rest, Sep+" "); ok {
		q = Query{Dir: before + Sep, Pattern: after, Recursive: true}
	} else if after, ok := strings.CutPrefix(rest, " "); ok {
		q = Query{Pattern: after, Recursive: true}
	} else if i := strings.LastIndex(rest, Sep); i >= 0 {
		q = Query{Dir: rest[:i] + Sep, Pattern: rest[i+1:]}
	} else {
		q = Query{Pattern: rest}
	}

	if rooted {
		q.Dir = Sep + q.Dir
	}
	return q
}

// Rooted reports whether the query is relative to the filesystem root
// rather than the configured root.
func (q Query) Rooted() bool {
	return strings.HasPrefix(q.Dir, Sep)
}

// String renders q back into input text that parses to the same Query.
func (q Query) String() string {
	if !q.Recursive {
		return q.Dir + q.Pattern
	}
	return Recursive(q.Dir, q.Pattern)
}

// Recursive renders the input text for a recursive search of dir.
func Recursive(dir, pattern string) string {
	return dir + " " + pattern
}

// ParentDir returns the search directory one level above dir. The root
// ("" or Sep) is its own parent.
func ParentDir(dir string) string {
	if dir == "" || dir == Sep {
		return dir
	}
	trimmed := strings.TrimSuffix(dir, Sep)
	i := strings.LastIndex(trimmed, Sep)
	if i < 0 {
		return ""
	}
	return trimmed[:i+1]
}

// DirPortion strips everything after the last separator of a listing
// entry: "a/b/c.txt" -> "a/b/", "a/b/" -> "a/b/", "c.txt" -> "".
func DirPortion(entry string) string {
	i := strings.LastIndex(entry, Sep)
	if i < 0 {
		return ""
	}
	return entry[:i+1]
}
