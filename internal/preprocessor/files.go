package preprocessor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emirpasic/gods/v2/trees/redblacktree"
)

// ErrNotFound is reported for an include that no search directory holds.
var ErrNotFound = errors.New("no such file or directory")

// includeFile is the record kept for every file the reader has opened.
type includeFile struct {
	path    string // canonical
	name    string // as written in the directive
	dirIdx  int
	guard   *Node // controlling macro, once detected
	once    bool  // #pragma once or #import
	entered int
	src     []byte
	sibling *includeFile // next record with the same name
}

// IncludeInfo describes an opened file.
type IncludeInfo struct {
	Path    string
	Guard   string
	Once    bool
	Entered int
}

type searchDir struct {
	path string
}

type lookupKey struct {
	name   string
	start  int
	srcDir string
}

type lookupResult struct {
	inc  *includeFile
	path string
	idx  int
}

// fileTable resolves includes against the search chain and caches what it
// finds.
type fileTable struct {
	r *Reader

	chain        []searchDir // quote dirs, then bracket dirs
	bracketStart int
	ignoreSrcDir bool
	remap        *remapper

	byPath  *redblacktree.Tree[string, *includeFile]
	byName  map[string]*includeFile
	lookups map[lookupKey]lookupResult
}

func newFileTable(r *Reader, opts Options) *fileTable {
	t := &fileTable{
		r:            r,
		ignoreSrcDir: opts.IgnoreSourceDir,
		byPath:       redblacktree.New[string, *includeFile](),
		byName:       make(map[string]*includeFile),
		lookups:      make(map[lookupKey]lookupResult),
	}
	for _, d := range opts.QuoteIncludeDirs {
		t.chain = append(t.chain, searchDir{path: filepath.Clean(d)})
	}
	t.bracketStart = len(t.chain)
	for _, d := range opts.BracketIncludeDirs {
		t.chain = append(t.chain, searchDir{path: filepath.Clean(d)})
	}
	if opts.Remap {
		t.remap = newRemapper(r)
	}
	return t
}

func canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// record returns the include record for path, creating it.
func (t *fileTable) record(path, name string, idx int) *includeFile {
	key := canonical(path)
	if inc, ok := t.byPath.Get(key); ok {
		return inc
	}
	inc := &includeFile{path: key, name: name, dirIdx: idx}
	inc.sibling = t.byName[name]
	t.byName[name] = inc
	t.byPath.Put(key, inc)
	return inc
}

func (t *fileTable) mainFile(name string, src []byte) *includeFile {
	inc := t.record(name, filepath.Base(name), -1)
	inc.src = src
	return inc
}

// find resolves name for an include directive. start is the first chain
// index to try; next marks #include_next, which never looks in the
// includer's directory.
func (t *fileTable) find(name string, angled bool, start int, next bool, includer *buffer) (*includeFile, string, int, error) {
	if filepath.IsAbs(name) {
		if !fileExists(name) {
			return nil, "", 0, ErrNotFound
		}
		return t.record(name, name, -1), name, -1, nil
	}

	srcDir := ""
	if !angled && !next && !t.ignoreSrcDir && includer != nil {
		srcDir = includer.dir
	}
	if angled && !next && start < t.bracketStart {
		start = t.bracketStart
	}
	key := lookupKey{name: name, start: start, srcDir: srcDir}
	if res, ok := t.lookups[key]; ok {
		return res.inc, res.path, res.idx, nil
	}

	try := func(dir string, idx int) (lookupResult, bool) {
		path, ok := t.locate(dir, name)
		if !ok {
			return lookupResult{}, false
		}
		res := lookupResult{inc: t.record(path, name, idx), path: path, idx: idx}
		t.lookups[key] = res
		t.r.log.V(1).Info("resolved include", "name", name, "path", path, "dir", idx)
		return res, true
	}

	if srcDir != "" {
		if res, ok := try(srcDir, -1); ok {
			return res.inc, res.path, res.idx, nil
		}
	}
	for i := start; i < len(t.chain); i++ {
		if res, ok := try(t.chain[i].path, i); ok {
			return res.inc, res.path, res.idx, nil
		}
	}
	return nil, "", 0, ErrNotFound
}

// locate looks for name in dir, consulting the remap tables when enabled.
func (t *fileTable) locate(dir, name string) (string, bool) {
	path := name
	if dir != "" && dir != "." {
		path = filepath.Join(dir, name)
	}
	if fileExists(path) {
		return path, true
	}
	if t.remap != nil {
		return t.remap.lookup(dir, name)
	}
	return "", false
}

// read returns the contents of inc, reading the file the first time.
func (t *fileTable) read(inc *includeFile) ([]byte, error) {
	if inc.src != nil {
		return inc.src, nil
	}
	src, err := os.ReadFile(inc.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", inc.name, err)
	}
	inc.src = src
	return src, nil
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// Includes lists every file opened so far, ordered by canonical path.
func (r *Reader) Includes() []IncludeInfo {
	var out []IncludeInfo
	it := r.files.byPath.Iterator()
	for it.Next() {
		inc := it.Value()
		info := IncludeInfo{Path: inc.path, Once: inc.once, Entered: inc.entered}
		if inc.guard != nil {
			info.Guard = inc.guard.name
		}
		out = append(out, info)
	}
	return out
}

// IncludesNamed lists the distinct files opened under the short name name,
// most recent first.
func (r *Reader) IncludesNamed(name string) []string {
	var out []string
	for inc := r.files.byName[name]; inc != nil; inc = inc.sibling {
		out = append(out, inc.path)
	}
	return out
}
