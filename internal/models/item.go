// Package models defines the result types handed from the finder to its hosts.
package models

import (
	"fmt"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/query"
)

// ActionKind names one of the follow-up actions bound to an item.
type ActionKind string

// Action kinds.
const (
	ActionComplete  ActionKind = "complete"
	ActionActivate  ActionKind = "activate"
	ActionParentDir ActionKind = "parent_dir"
)

// EffectKind names a host-level effect.
type EffectKind string

// Effect kinds.
const (
	EffectSetInput EffectKind = "set_input"
	EffectClose    EffectKind = "close"
	EffectOpen     EffectKind = "open"
)

// Effect is one instruction for the host: replace the input line, close the
// finder, or open a path with the OS opener.
type Effect struct {
	Kind  EffectKind `json:"kind"`
	Input string     `json:"input,omitempty"`
	Path  string     `json:"path,omitempty"`
}

// Action is a deferred command captured when an item is built. Evaluating
// it depends only on its own fields.
type Action struct {
	Kind ActionKind `json:"kind"`
	// SearchDir is the search directory of the query that produced the item.
	SearchDir string `json:"search_dir"`
	// Path is the item's listing entry, relative to SearchDir.
	Path string `json:"path,omitempty"`
	// Pattern is the pattern typed when the item was produced.
	Pattern string `json:"pattern,omitempty"`
	// AbsPath is the resolved file system location of Path.
	AbsPath string `json:"abs_path,omitempty"`
}

// Effects evaluates the action.
//
//	complete:   set the input to the directory portion of Path under SearchDir
//	activate:   close the finder and open AbsPath
//	parent_dir: search the parent of SearchDir recursively, keeping Pattern
func (a Action) Effects() ([]Effect, error) {
	switch a.Kind {
	case ActionComplete:
		q := query.Query{Dir: a.SearchDir + query.DirPortion(a.Path)}
		return []Effect{{Kind: EffectSetInput, Input: q.String()}}, nil
	case ActionActivate:
		if a.AbsPath == "" {
			return nil, fmt.Errorf("models: activate without a path: %w", apperr.ErrUnknownAction)
		}
		return []Effect{{Kind: EffectClose}, {Kind: EffectOpen, Path: a.AbsPath}}, nil
	case ActionParentDir:
		q := query.Query{Dir: query.ParentDir(a.SearchDir), Pattern: a.Pattern, Recursive: true}
		return []Effect{{Kind: EffectSetInput, Input: q.String()}}, nil
	}
	return nil, fmt.Errorf("models: action %q: %w", a.Kind, apperr.ErrUnknownAction)
}

// Actions groups the three actions bound to an item.
type Actions struct {
	Complete  Action `json:"complete"`
	Activate  Action `json:"activate"`
	ParentDir Action `json:"parent_dir"`
}

// Item is one ranked result.
type Item struct {
	Label   string  `json:"label"`
	Path    string  `json:"path"`
	Score   int     `json:"score"`
	IsDir   bool    `json:"is_dir"`
	Actions Actions `json:"actions"`
}

// Label renders the display text of a result.
func Label(path string, score int) string {
	return fmt.Sprintf("%s    (%d)", path, score)
}
