// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package path

import "strings"

// Glob is a single pattern matched component-by-component against a Path.
// Each component may contain the shell-style wildcards '*' (any run of
// characters, not crossing a '/') and '?' (exactly one character); a
// component that is exactly "**" matches any number of levels, except that a
// final "**" needs at least one ("/a/**" matches "/a/b" but not "/a").
type Glob struct {
	pattern Path
	parts   []string
	base    Path
}

// IsGlob reports whether s contains wildcard syntax at all; callers use this
// to avoid building a Glob for a plain literal path.
func IsGlob(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// NewGlob compiles pattern into a Glob.
func NewGlob(pattern string) Glob {
	p := New(pattern)
	return Glob{pattern: p, parts: p.Components(), base: literalBase(p)}
}

// literalBase returns the longest literal (wildcard-free) prefix path of p,
// used by GlobSet to avoid scanning subtrees a glob can never match.
func literalBase(p Path) Path {
	comps := p.Components()
	lit := comps[:0:0]
	for _, c := range comps {
		if IsGlob(c) || c == "**" {
			break
		}
		lit = append(lit, c)
	}
	if len(lit) == 0 {
		return Root
	}
	return New("/" + strings.Join(lit, "/"))
}

// Base returns the literal (non-wildcard) prefix of the glob's pattern.
func (g Glob) Base() Path { return g.base }

// String returns the glob's canonical pattern text.
func (g Glob) String() string { return g.pattern.String() }

// Matches reports whether p matches the glob pattern.
func (g Glob) Matches(p Path) bool {
	return matchParts(g.parts, p.Components())
}

func matchParts(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	head := pattern[0]
	if head == "**" {
		if len(pattern) == 1 {
			return len(name) > 0
		}
		for i := 0; i <= len(name); i++ {
			if matchParts(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	if !matchComponent(head, name[0]) {
		return false
	}
	return matchParts(pattern[1:], name[1:])
}

// matchComponent matches a single path segment against a pattern segment
// containing '*' and '?' wildcards, anchored at both ends.
func matchComponent(pattern, name string) bool {
	return matchComponentAt(pattern, name)
}

func matchComponentAt(pattern, name string) bool {
	if pattern == "" {
		return name == ""
	}
	switch pattern[0] {
	case '*':
		if matchComponentAt(pattern[1:], name) {
			return true
		}
		for i := 0; i < len(name); i++ {
			if matchComponentAt(pattern[1:], name[i+1:]) {
				return true
			}
		}
		return false
	case '?':
		if name == "" {
			return false
		}
		return matchComponentAt(pattern[1:], name[1:])
	default:
		if name == "" || pattern[0] != name[0] {
			return false
		}
		return matchComponentAt(pattern[1:], name[1:])
	}
}

// GlobSet is an unordered collection of Globs matched together; it is the
// wire representation of a ListMatching request (spec §6).
type GlobSet struct {
	globs []Glob
}

// NewGlobSet compiles a GlobSet from pattern strings.
func NewGlobSet(patterns ...string) GlobSet {
	gs := make([]Glob, len(patterns))
	for i, p := range patterns {
		gs[i] = NewGlob(p)
	}
	return GlobSet{globs: gs}
}

// Matches reports whether p satisfies any glob in the set.
func (s GlobSet) Matches(p Path) bool {
	for _, g := range s.globs {
		if g.Matches(p) {
			return true
		}
	}
	return false
}

// Bases returns the literal prefix of every glob in the set, deduplicated;
// a resolver store walks only these subtrees to answer ListMatching.
func (s GlobSet) Bases() []Path {
	seen := make(map[Path]bool, len(s.globs))
	out := make([]Path, 0, len(s.globs))
	for _, g := range s.globs {
		if !seen[g.base] {
			seen[g.base] = true
			out = append(out, g.base)
		}
	}
	return out
}
