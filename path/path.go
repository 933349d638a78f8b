// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package path implements the canonical hierarchical name used to address
// published values: an absolute, slash-delimited path rooted at "/", plus
// glob matching over that namespace.
package path

import "strings"

// Root is the canonical root path.
const Root = Path("/")

// Path is an absolute slash-delimited hierarchical name. The zero value is
// not a valid Path; use Root or New.
type Path string

// New canonicalizes s into a Path: a leading slash is added if missing,
// empty components (produced by "//" or a trailing slash) are removed, and
// the result is reduced to Root if nothing remains.
func New(s string) Path {
	if s == "" {
		return Root
	}
	parts := strings.Split(s, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return Root
	}
	return Path("/" + strings.Join(kept, "/"))
}

// String returns the canonical form.
func (p Path) String() string { return string(p) }

// IsRoot reports whether p is the root path.
func (p Path) IsRoot() bool { return p == Root }

// Components splits p into its non-empty path segments. Root has none.
func (p Path) Components() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(strings.TrimPrefix(string(p), "/"), "/")
}

// Parent returns the path one level up and true, or ("", false) for Root.
func (p Path) Parent() (Path, bool) {
	c := p.Components()
	if len(c) == 0 {
		return "", false
	}
	if len(c) == 1 {
		return Root, true
	}
	return New("/" + strings.Join(c[:len(c)-1], "/")), true
}

// Basename returns the final component, or "" for Root.
func (p Path) Basename() string {
	c := p.Components()
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

// Append joins name onto p as a new final component.
func (p Path) Append(name string) Path {
	if p.IsRoot() {
		return New("/" + name)
	}
	return New(string(p) + "/" + name)
}

// Contains reports whether other is p itself or lies somewhere beneath p in
// the hierarchy.
func (p Path) Contains(other Path) bool {
	if p == other {
		return true
	}
	if p.IsRoot() {
		return true
	}
	return strings.HasPrefix(string(other), string(p)+"/")
}

// Levels returns p and each of its ancestors, root first.
func (p Path) Levels() []Path {
	c := p.Components()
	out := make([]Path, 0, len(c)+1)
	out = append(out, Root)
	cur := ""
	for _, seg := range c {
		cur += "/" + seg
		out = append(out, Path(cur))
	}
	return out
}
