package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// File is one (path, content) pair inside a tree. Paths are
// slash-separated and relative to the workspace root.
type File struct {
	Path    string
	Content []byte
}

// Digest is the content-addressed fingerprint of a tree. Two trees carry
// the same digest iff their (path, content) sets are byte-for-byte equal.
type Digest string

// Tree is an immutable, content-addressed set of files. The zero value is
// not usable; construct trees with New.
type Tree struct {
	files  map[string][]byte
	digest Digest
}

// New builds a tree from the given files, copying content. A later file
// with the same path replaces an earlier one.
func New(files ...File) *Tree {
	m := make(map[string][]byte, len(files))
	for _, f := range files {
		content := make([]byte, len(f.Content))
		copy(content, f.Content)
		m[f.Path] = content
	}
	return &Tree{files: m, digest: fingerprint(m)}
}

// Empty returns a tree with no files.
func Empty() *Tree {
	return New()
}

func fingerprint(files map[string][]byte) Digest {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	var size [8]byte
	for _, p := range paths {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write([]byte(p))
		content := files[p]
		binary.BigEndian.PutUint64(size[:], uint64(len(content)))
		h.Write(size[:])
		h.Write(content)
	}
	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// Digest returns the tree fingerprint.
func (t *Tree) Digest() Digest {
	return t.digest
}

// Len returns the number of files in the tree.
func (t *Tree) Len() int {
	return len(t.files)
}

// Paths returns every path in the tree, sorted ascending.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Content returns the bytes stored for path. The returned slice is a copy.
func (t *Tree) Content(path string) ([]byte, bool) {
	content, ok := t.files[path]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, true
}

// Files returns the tree contents sorted by path.
func (t *Tree) Files() []File {
	out := make([]File, 0, len(t.files))
	for _, p := range t.Paths() {
		content, _ := t.Content(p)
		out = append(out, File{Path: p, Content: content})
	}
	return out
}

// Restrict returns the subset of the tree covering exactly the given paths.
// Paths absent from the tree are ignored.
func (t *Tree) Restrict(paths []string) *Tree {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		if content, ok := t.files[p]; ok {
			files = append(files, File{Path: p, Content: content})
		}
	}
	return New(files...)
}

// Merge layers trees left to right; a later tree's content wins for any
// path present in more than one.
func Merge(trees ...*Tree) *Tree {
	var files []File
	for _, tree := range trees {
		if tree == nil {
			continue
		}
		files = append(files, tree.Files()...)
	}
	return New(files...)
}

// Delta describes how one tree differs from another by path set and identity.
type Delta struct {
	AddedPaths    []string
	RemovedPaths  []string
	IdentityEqual bool
}

// Diff compares two trees. Added and removed path lists are sorted
// ascending. IdentityEqual compares full content fingerprints, so a file
// rewritten in place reports unequal identity with empty path deltas.
func Diff(before, after *Tree) Delta {
	d := Delta{IdentityEqual: before.digest == after.digest}
	for p := range after.files {
		if _, ok := before.files[p]; !ok {
			d.AddedPaths = append(d.AddedPaths, p)
		}
	}
	for p := range before.files {
		if _, ok := after.files[p]; !ok {
			d.RemovedPaths = append(d.RemovedPaths, p)
		}
	}
	sort.Strings(d.AddedPaths)
	sort.Strings(d.RemovedPaths)
	return d
}
