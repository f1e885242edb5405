package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// URLPrefix is the path under which stored files are served.
const URLPrefix = "/uploads/"

const maxNameAttempts = 16

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Sanitize replaces every character outside [A-Za-z0-9_.-] with an
// underscore. Separators are replaced too, so the result is always a single
// path element.
func Sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	if strings.Trim(name, ".") == "" {
		return "upload"
	}
	return name
}

// Storage writes uploaded videos into a single flat directory.
type Storage struct {
	dir string
	now func() time.Time
}

func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Storage{dir: dir, now: time.Now}, nil
}

// Dir returns the upload directory.
func (s *Storage) Dir() string {
	return s.dir
}

// Save copies the uploaded file to <unix-nanos>_<sanitized-name> and returns
// the reference under which it is served. Existing files are never
// overwritten.
func (s *Storage) Save(fh *multipart.FileHeader) (ref string, size int64, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	base := Sanitize(fh.Filename)
	stamp := s.now().UnixNano()
	var (
		dst  *os.File
		name string
	)
	for i := 0; i < maxNameAttempts; i++ {
		name = strconv.FormatInt(stamp+int64(i), 10) + "_" + base
		dst, err = os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", 0, fmt.Errorf("create upload: %w", err)
		}
	}
	if dst == nil {
		return "", 0, fmt.Errorf("create upload: no free name for %q", base)
	}

	full := dst.Name()
	n, err := io.Copy(dst, src)
	if err == nil {
		err = dst.Close()
	} else {
		dst.Close()
	}
	if err != nil {
		_ = os.Remove(full)
		return "", 0, fmt.Errorf("write upload: %w", err)
	}
	return URLPrefix + name, n, nil
}

// Remove deletes the file behind ref. A file that is already gone is not an
// error.
func (s *Storage) Remove(ref string) error {
	name := path.Base(ref)
	if name == "." || name == "/" || name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// Orphan is a stored file that no catalog entry points at.
type Orphan struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Orphans lists files in the upload directory whose reference is not in
// referenced and that were last modified more than minAge ago. The result is
// sorted by name.
func (s *Storage) Orphans(referenced []string, minAge time.Duration) ([]Orphan, error) {
	keep := make(map[string]struct{}, len(referenced))
	for _, ref := range referenced {
		keep[path.Base(ref)] = struct{}{}
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}
	cutoff := s.now().Add(-minAge)
	var out []Orphan
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := keep[e.Name()]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		out = append(out, Orphan{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
