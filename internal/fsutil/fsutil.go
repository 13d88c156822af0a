package fsutil

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is a file or directory under the served root as seen at the time of
// the lookup. Exists is authoritative: a nonexistent entry has zero size and
// must never be opened.
type Entry struct {
	Name    string
	Path    string // absolute, host separators
	Size    int64
	ModTime time.Time
	IsDir   bool
	Exists  bool
}

// IsFile reports whether e is an existing regular file.
func (e Entry) IsFile() bool {
	return e.Exists && !e.IsDir
}

// Resolver maps request paths onto a root directory. It holds no per-request
// state and is safe for concurrent use.
type Resolver struct {
	root           string
	realRoot       string
	followSymlinks bool
}

// NewResolver returns a Resolver for rootAbs. When followSymlinks is false,
// symbolic links are treated as if they did not exist. When true, a link is
// followed only if its target stays inside the root.
func NewResolver(rootAbs string, followSymlinks bool) *Resolver {
	root := filepath.Clean(rootAbs)
	real, err := filepath.EvalSymlinks(root)
	if err != nil {
		real = root
	}
	return &Resolver{root: root, realRoot: real, followSymlinks: followSymlinks}
}

// Root returns the cleaned absolute root.
func (r *Resolver) Root() string { return r.root }

// RequestPath strips any leading run of '/', '\' or '.' from a raw URL path
// and returns a slash-based relative path that cannot climb above the root
// ("" means the root itself).
func RequestPath(raw string) string {
	p := strings.TrimLeft(raw, `/\.`)
	return CleanRelPath(p)
}

// CleanRelPath takes a user path like "", ".", "/a/b", "a//b", and returns a
// safe, slash-based, no-leading-slash relative path ("" means root).
func CleanRelPath(p string) string {
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.ReplaceAll(p, "\x00", "")
	p = path.Clean("/" + p) // force absolute for stable cleaning
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// SanitizeSegment removes every "../" and "..\" sequence from a query supplied
// file name, wherever it occurs.
func SanitizeSegment(v string) string {
	v = strings.ReplaceAll(v, "../", "")
	return strings.ReplaceAll(v, `..\`, "")
}

// Resolve returns the absolute filesystem path for a raw request path. The
// result is always the root or one of its descendants.
func (r *Resolver) Resolve(rawPath string) string {
	rel := RequestPath(rawPath)
	if rel == "" {
		return r.root
	}
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

// ResolveUnder joins a sanitized query segment onto base and stats the
// result. Anything that would end up outside the root resolves to a
// nonexistent entry.
func (r *Resolver) ResolveUnder(base, segment string) Entry {
	seg := strings.ReplaceAll(SanitizeSegment(segment), "\\", "/")
	abs := filepath.Clean(filepath.Join(base, filepath.FromSlash(seg)))
	if !Within(r.root, abs) {
		return Entry{Name: filepath.Base(abs), Path: abs}
	}
	return r.Stat(abs)
}

// Within reports whether abs is root or a descendant of root.
func Within(root, abs string) bool {
	root = filepath.Clean(root)
	abs = filepath.Clean(abs)
	return abs == root || strings.HasPrefix(abs, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}

// Stat looks up abs. Lookup failures and policy refusals (symlinks, escapes)
// yield an entry with Exists=false; Stat never returns an error.
func (r *Resolver) Stat(abs string) Entry {
	abs = filepath.Clean(abs)
	e := Entry{Name: filepath.Base(abs), Path: abs}
	if !Within(r.root, abs) {
		return e
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil || !Within(r.realRoot, real) {
		return e
	}
	if !r.followSymlinks {
		// any link along the way moves the real path off its lexical twin
		rel, err := filepath.Rel(r.root, abs)
		if err != nil || filepath.Join(r.realRoot, rel) != real {
			return e
		}
	}
	st, err := os.Stat(real)
	if err != nil {
		return e
	}
	if !st.IsDir() && !st.Mode().IsRegular() {
		return e
	}
	e.Exists = true
	e.IsDir = st.IsDir()
	e.ModTime = st.ModTime()
	if !e.IsDir {
		e.Size = st.Size()
	}
	return e
}

// RealPath returns the symlink-free path of an existing entry, or its Path
// when it cannot be evaluated.
func (r *Resolver) RealPath(e Entry) string {
	real, err := filepath.EvalSymlinks(e.Path)
	if err != nil {
		return e.Path
	}
	return real
}

// Children lists the immediate children of dir: files first, then
// directories, each group sorted by name. Entries the resolver would refuse
// are left out. A nonexistent or non-directory entry has no children.
func (r *Resolver) Children(ctx context.Context, dir Entry) ([]Entry, error) {
	if !dir.Exists || !dir.IsDir {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ents, err := os.ReadDir(dir.Path)
	if err != nil {
		return nil, err
	}
	files := make([]Entry, 0, len(ents))
	dirs := make([]Entry, 0, 8)
	for _, de := range ents {
		c := r.Stat(filepath.Join(dir.Path, de.Name()))
		if !c.Exists {
			continue
		}
		if c.IsDir {
			dirs = append(dirs, c)
		} else {
			files = append(files, c)
		}
	}
	byName := func(s []Entry) {
		sort.Slice(s, func(i, j int) bool { return s[i].Name < s[j].Name })
	}
	byName(files)
	byName(dirs)
	return append(files, dirs...), nil
}
