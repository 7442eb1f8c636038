// Package routes holds the storefront route tree. Access requirements are
// merged down the tree once, when the table is built, so that matching a path
// never has to look at ancestors.
package routes

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidRoute = errors.New("invalid route configuration")

// Descriptor is one node of the declared route tree.
type Descriptor struct {
	Name     string       `toml:"name"`
	Path     string       `toml:"path"`
	Access   Access       `toml:"access"`
	Children []Descriptor `toml:"children"`
}

type segmentKind int

const (
	segmentStatic segmentKind = iota
	segmentParam
	segmentCatchAll
)

type segment struct {
	kind  segmentKind
	value string
}

// Route is a resolved, navigable route: full pattern plus merged requirement.
type Route struct {
	Name    string
	Pattern string
	Access  Access

	segments []segment
}

// Match is the result of resolving a concrete path.
type Match struct {
	Route  *Route
	Params map[string]string
}

type Table struct {
	routes []*Route
}

// Routes returns the resolved routes, children ahead of their parent.
func (t *Table) Routes() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRoute, fmt.Sprintf(format, args...))
}

func joinPath(parent, child string) string {
	switch {
	case strings.HasPrefix(child, "/"):
		return child
	case child == "":
		return parent
	case parent == "/" || parent == "":
		return "/" + child
	}
	return strings.TrimSuffix(parent, "/") + "/" + child
}

func parsePattern(pattern string) ([]segment, error) {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]segment, 0, len(parts))
	seen := make(map[string]bool)

	for i, part := range parts {
		switch {
		case part == "":
			return nil, invalid("%q has an empty segment", pattern)
		case part == "*":
			if i != len(parts)-1 {
				return nil, invalid("%q: * must be the last segment", pattern)
			}
			segments = append(segments, segment{kind: segmentCatchAll})
		case part[0] == ':':
			name := part[1:]
			if name == "" {
				return nil, invalid("%q has an unnamed parameter", pattern)
			}
			if seen[name] {
				return nil, invalid("%q repeats parameter %q", pattern, name)
			}
			seen[name] = true
			segments = append(segments, segment{kind: segmentParam, value: name})
		default:
			segments = append(segments, segment{kind: segmentStatic, value: part})
		}
	}

	return segments, nil
}

type builder struct {
	routes    []*Route
	byPattern map[string]*Route
}

// Build validates a route tree and resolves it into a Table.
func Build(tree []Descriptor) (*Table, error) {
	b := &builder{byPattern: make(map[string]*Route)}

	for i := range tree {
		if tree[i].Path == "" {
			return nil, invalid("top level route %d (%q) has no path", i, tree[i].Name)
		}
		if _, err := b.add(&tree[i], "", AccessNone); err != nil {
			return nil, err
		}
	}

	return &Table{routes: b.routes}, nil
}

// add registers node and its subtree, children first so that an index child
// takes over its parent's pattern. It returns the patterns the subtree
// registered.
func (b *builder) add(node *Descriptor, parentPattern string, inherited Access) (map[string]bool, error) {
	pattern := joinPath(parentPattern, node.Path)
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}

	access, err := merge(inherited, node.Access)
	if err != nil {
		return nil, invalid("route %q (%s) %v", node.Name, pattern, err)
	}

	segments, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}

	subtree := make(map[string]bool)
	for i := range node.Children {
		registered, err := b.add(&node.Children[i], pattern, access)
		if err != nil {
			return nil, err
		}
		for p := range registered {
			subtree[p] = true
		}
	}

	key := canonical(segments)
	if existing, ok := b.byPattern[key]; ok {
		if subtree[key] {
			// an index child already serves this pattern
			return subtree, nil
		}
		return nil, invalid("route %q (%s) duplicates route %q (%s)", node.Name, pattern, existing.Name, existing.Pattern)
	}

	r := &Route{
		Name:     node.Name,
		Pattern:  pattern,
		Access:   access,
		segments: segments,
	}
	b.routes = append(b.routes, r)
	b.byPattern[key] = r
	subtree[key] = true

	return subtree, nil
}

// canonical makes patterns that differ only in parameter names or static
// letter case collide.
func canonical(segments []segment) string {
	var sb strings.Builder
	sb.WriteByte('/')
	for i, s := range segments {
		if i > 0 {
			sb.WriteByte('/')
		}
		switch s.kind {
		case segmentStatic:
			sb.WriteString(strings.ToLower(s.value))
		case segmentParam:
			sb.WriteString(":")
		case segmentCatchAll:
			sb.WriteString("*")
		}
	}
	return sb.String()
}

func splitPath(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// match also returns a score for ranking competing matches: per segment,
// static beats param beats catch-all, earlier segments weigh more.
func (r *Route) match(parts []string) (map[string]string, []int, bool) {
	params := make(map[string]string)
	score := make([]int, 0, len(r.segments))

	for i, s := range r.segments {
		if s.kind == segmentCatchAll {
			if i >= len(parts) {
				return nil, nil, false
			}
			rest := strings.Join(parts[i:], "/")
			if unescaped, err := url.PathUnescape(rest); err == nil {
				rest = unescaped
			}
			params["*"] = rest
			return params, append(score, 1), true
		}

		if i >= len(parts) {
			return nil, nil, false
		}

		switch s.kind {
		case segmentStatic:
			if !strings.EqualFold(s.value, parts[i]) {
				return nil, nil, false
			}
			score = append(score, 3)
		case segmentParam:
			if parts[i] == "" {
				return nil, nil, false
			}
			v, err := url.PathUnescape(parts[i])
			if err != nil {
				v = parts[i]
			}
			params[s.value] = v
			score = append(score, 2)
		}
	}

	if len(parts) != len(r.segments) {
		return nil, nil, false
	}
	return params, score, true
}

func better(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return len(a) > len(b)
}

// Match resolves a concrete path (query string and fragment are ignored).
func (t *Table) Match(path string) (*Match, bool) {
	parts := splitPath(path)

	var (
		best      *Match
		bestScore []int
	)
	for _, r := range t.routes {
		params, score, ok := r.match(parts)
		if !ok {
			continue
		}
		if best == nil || better(score, bestScore) {
			best = &Match{Route: r, Params: params}
			bestScore = score
		}
	}

	return best, best != nil
}
