// Package params implements the thin accessor layer over task and generation
// params payloads described in the design notes: a tagged record type instead
// of a raw tree, tolerant of the legacy key aliases (shotId/shot_id,
// thumbnailUrl/thumbnail_url) and the precedence chains the completion engine
// walks to find shot linkage fields buried at varying depths.
package params

import (
	"encoding/json"
	"fmt"
)

// Set is an opaque, string-keyed structured payload: scalars, arrays, and
// nested records. It round-trips through JSON untouched.
type Set map[string]any

// Clone returns a deep-enough copy for composing a new params set from an
// existing one (used when the completion engine augments task params into
// generation params without mutating the original).
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ParseSet unmarshals a raw JSON payload into a Set. A nil/empty payload
// yields an empty, non-nil Set.
func ParseSet(raw []byte) (Set, error) {
	if len(raw) == 0 {
		return Set{}, nil
	}
	var s Set
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse params: %w", err)
	}
	if s == nil {
		s = Set{}
	}
	return s, nil
}

// MarshalJSON is explicit only to guarantee `{}` rather than `null` for a
// nil Set, since params is never legitimately absent on a task row.
func (s Set) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(s))
}

// nested looks up a dotted path of map keys, returning (value, true) only if
// every segment resolves to a nested map (or the final segment resolves to
// any value).
func nested(s Set, path ...string) (any, bool) {
	var cur any = map[string]any(s)
	for i, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := m[key]
		if !present {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		cur = v
	}
	return nil, false
}

// chain tries each candidate path in order and returns the first hit.
func chain(s Set, paths [][]string) (any, bool) {
	for _, p := range paths {
		if v, ok := nested(s, p...); ok {
			return v, true
		}
	}
	return nil, false
}

func asString(v any) (string, bool) {
	str, ok := v.(string)
	if !ok || str == "" {
		return "", false
	}
	return str, true
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// ShotIDChain is the precedence order the completion engine uses to locate a
// shot identifier in a task's params.
var ShotIDChain = [][]string{
	{"originalParams", "orchestrator_details", "shot_id"},
	{"orchestrator_details", "shot_id"},
	{"full_orchestrator_payload", "shot_id"},
	{"shot_id"},
	{"shotId"},
}

// AddInPositionChain mirrors ShotIDChain for the add_in_position flag.
var AddInPositionChain = [][]string{
	{"originalParams", "orchestrator_details", "add_in_position"},
	{"orchestrator_details", "add_in_position"},
	{"full_orchestrator_payload", "add_in_position"},
	{"add_in_position"},
}

// ThumbnailURLChain mirrors ShotIDChain for thumbnail_url.
var ThumbnailURLChain = [][]string{
	{"originalParams", "orchestrator_details", "thumbnail_url"},
	{"orchestrator_details", "thumbnail_url"},
	{"full_orchestrator_payload", "thumbnail_url"},
	{"thumbnail_url"},
	{"thumbnailUrl"},
}

// ShotID extracts the shot identifier string, or "" if absent or malformed.
// A malformed (non-string) value is treated as absent.
func ShotID(s Set) string {
	v, ok := chain(s, ShotIDChain)
	if !ok {
		return ""
	}
	str, ok := asString(v)
	if !ok {
		return ""
	}
	return str
}

// AddInPosition extracts the add_in_position flag, defaulting to false.
func AddInPosition(s Set) bool {
	v, ok := chain(s, AddInPositionChain)
	if !ok {
		return false
	}
	return asBool(v)
}

// ThumbnailURL extracts the thumbnail URL, or "" if absent.
func ThumbnailURL(s Set) string {
	v, ok := chain(s, ThumbnailURLChain)
	if !ok {
		return ""
	}
	str, _ := asString(v)
	return str
}

// ModelSelector extracts params.model, used by the claim engine's affinity
// ranking. Returns "" if absent.
func ModelSelector(s Set) string {
	v, ok := nested(s, "model")
	if !ok {
		return ""
	}
	str, _ := asString(v)
	return str
}
