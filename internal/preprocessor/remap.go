package preprocessor

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	remapFile      = "header.gcc"
	listingCacheSz = 64
)

// remapper finds headers whose names were mangled by a file system: first
// through a directory's header.gcc map, then by a case-insensitive match.
type remapper struct {
	r        *Reader
	maps     map[string]map[string]string
	listings *lru.Cache[string, map[string]string]
}

func newRemapper(r *Reader) *remapper {
	listings, err := lru.New[string, map[string]string](listingCacheSz)
	if err != nil {
		panic(err)
	}
	return &remapper{r: r, maps: make(map[string]map[string]string), listings: listings}
}

func (m *remapper) lookup(dir, name string) (string, bool) {
	if dir == "" {
		dir = "."
	}
	if real, ok := m.headerMap(dir)[name]; ok {
		path := real
		if !filepath.IsAbs(real) {
			path = filepath.Join(dir, real)
		}
		if fileExists(path) {
			m.r.log.V(1).Info("remapped include", "name", name, "path", path)
			return path, true
		}
	}

	sub := filepath.Join(dir, filepath.Dir(name))
	if real, ok := m.listing(sub)[strings.ToLower(filepath.Base(name))]; ok {
		path := filepath.Join(sub, real)
		if fileExists(path) {
			m.r.log.V(1).Info("remapped include", "name", name, "path", path)
			return path, true
		}
	}
	return "", false
}

// headerMap loads dir/header.gcc once. Each line maps a short name to the
// real file name, relative to dir unless absolute.
func (m *remapper) headerMap(dir string) map[string]string {
	if hm, ok := m.maps[dir]; ok {
		return hm
	}
	hm := make(map[string]string)
	m.maps[dir] = hm
	data, err := os.ReadFile(filepath.Join(dir, remapFile))
	if err != nil {
		return hm
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) >= 2 {
			hm[f[0]] = f[1]
		}
	}
	return hm
}

// listing maps the lower-cased names in dir to their real spelling.
func (m *remapper) listing(dir string) map[string]string {
	if l, ok := m.listings.Get(dir); ok {
		return l
	}
	l := make(map[string]string)
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				l[strings.ToLower(e.Name())] = e.Name()
			}
		}
	}
	m.listings.Add(dir, l)
	return l
}
