package backend

import (
	"bufio"
	"bytes"
	"os"
	"strings"
	"sync"
	"time"
)

// Source provides the current set of backend URLs. Implementations may or
// may not support dynamic refresh between calls.
type Source interface {
	List() []string
	Name() string
	SupportsDynamic() bool
}

// StaticSource returns a fixed list configured once at startup.
type StaticSource struct {
	urls []string
}

// NewStaticSource returns a Source that always returns urls unchanged.
func NewStaticSource(urls []string) *StaticSource {
	cp := make([]string, len(urls))
	copy(cp, urls)
	return &StaticSource{urls: cp}
}

func (s *StaticSource) List() []string      { return s.urls }
func (s *StaticSource) Name() string        { return "static" }
func (s *StaticSource) SupportsDynamic() bool { return false }

// FileSource parses a UTF-8 text file of backend URLs on each List call,
// re-reading the file only when its mtime advances. File-missing and I/O
// errors yield an empty list rather than propagating.
type FileSource struct {
	path string

	mu       sync.Mutex
	modTime  time.Time
	cached   []string
}

// NewFileSource returns a Source backed by the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string          { return "file" }
func (f *FileSource) SupportsDynamic() bool { return true }

// List returns the most recently parsed URL set, re-parsing the file if its
// modification time has advanced since the last read.
func (f *FileSource) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return nil
	}
	if !info.ModTime().After(f.modTime) && f.cached != nil {
		return f.cached
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil
	}

	f.cached = parseURLFile(data)
	f.modTime = info.ModTime()
	return f.cached
}

// parseURLFile applies the file-discovery parsing rules: strip a leading
// BOM, trim each line, skip empty lines and '#'-comment lines, preserve
// order, keep duplicates verbatim.
func parseURLFile(data []byte) []string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
