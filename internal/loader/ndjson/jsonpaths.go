package ndjson

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// segment is one step of a JSONPath: an object key or an array index.
type segment struct {
	key   string
	index int
	isIdx bool
}

// Path is a parsed JSONPath expression restricted to the subset the
// warehouse's JSONPaths files use: $['key'], $["key"], $.key and [n].
type Path struct {
	expr string
	segs []segment
}

func (p Path) String() string { return p.expr }

// Manifest is a JSONPaths file: one path per target column, in column order.
type Manifest struct {
	Paths []Path
}

// ReadManifest parses a {"jsonpaths": [...]} document.
func ReadManifest(r io.Reader) (Manifest, error) {
	var doc struct {
		JSONPaths []string `json:"jsonpaths"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Manifest{}, fmt.Errorf("jsonpaths: decode manifest: %w", err)
	}
	if len(doc.JSONPaths) == 0 {
		return Manifest{}, fmt.Errorf("jsonpaths: manifest has no paths")
	}
	m := Manifest{Paths: make([]Path, 0, len(doc.JSONPaths))}
	for i, expr := range doc.JSONPaths {
		p, err := ParsePath(expr)
		if err != nil {
			return Manifest{}, fmt.Errorf("jsonpaths: path %d: %w", i, err)
		}
		m.Paths = append(m.Paths, p)
	}
	return m, nil
}

// ParsePath parses a single JSONPath expression.
func ParsePath(expr string) (Path, error) {
	s := strings.TrimSpace(expr)
	if !strings.HasPrefix(s, "$") {
		return Path{}, fmt.Errorf("%q: must start with $", expr)
	}
	s = s[1:]

	var segs []segment
	for len(s) > 0 {
		switch s[0] {
		case '.':
			s = s[1:]
			end := strings.IndexAny(s, ".[")
			if end < 0 {
				end = len(s)
			}
			if end == 0 {
				return Path{}, fmt.Errorf("%q: empty key after '.'", expr)
			}
			segs = append(segs, segment{key: s[:end]})
			s = s[end:]

		case '[':
			rb := strings.IndexByte(s, ']')
			if rb < 0 {
				return Path{}, fmt.Errorf("%q: unterminated '['", expr)
			}
			inner := strings.TrimSpace(s[1:rb])
			if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0] {
				segs = append(segs, segment{key: inner[1 : len(inner)-1]})
			} else {
				n, err := strconv.Atoi(inner)
				if err != nil || n < 0 {
					return Path{}, fmt.Errorf("%q: bad subscript %q", expr, inner)
				}
				segs = append(segs, segment{index: n, isIdx: true})
			}
			s = s[rb+1:]

		default:
			return Path{}, fmt.Errorf("%q: unexpected %q", expr, s[0])
		}
	}
	if len(segs) == 0 {
		return Path{}, fmt.Errorf("%q: selects the whole record", expr)
	}
	return Path{expr: expr, segs: segs}, nil
}

// Lookup evaluates p against a decoded record. Missing keys and out-of-range
// indexes yield (nil, false).
func (p Path) Lookup(fields map[string]any) (any, bool) {
	var cur any = fields
	for _, sg := range p.segs {
		if sg.isIdx {
			arr, ok := cur.([]any)
			if !ok || sg.index >= len(arr) {
				return nil, false
			}
			cur = arr[sg.index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := obj[sg.key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
