package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrCorrupt marks a data file that exists but cannot be decoded.
var ErrCorrupt = errors.New("catalog file is corrupt")

// FileStore keeps the whole catalog as a JSON array in a single file. Every
// mutation reads the file, changes the slice and rewrites the file in full.
// There is no locking: two concurrent writers can lose an update, the last
// rename wins. That is accepted for a single admin.
type FileStore struct {
	path string
	log  zerolog.Logger
}

// NewFileStore prepares path for use. When the file does not exist it is
// created holding seed (ids are assigned here), or an empty array.
func NewFileStore(path string, seed []Movie, log zerolog.Logger) (*FileStore, error) {
	s := &FileStore{path: path, log: log.With().Str("component", "catalog").Logger()}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return s, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat data file: %w", err)
	}
	movies := make([]Movie, 0, len(seed))
	for _, m := range seed {
		m.ID = uuid.NewString()
		movies = append(movies, m)
	}
	if err := s.save(movies); err != nil {
		return nil, err
	}
	s.log.Info().Str("path", path).Int("seeded", len(movies)).Msg("initialised catalog file")
	return s, nil
}

// Path returns the data file location.
func (s *FileStore) Path() string {
	return s.path
}

// List returns the full catalog in insertion order. A corrupt file is logged
// and reads as an empty catalog.
func (s *FileStore) List(ctx context.Context) ([]Movie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load()
}

// Create assigns a fresh id, appends m and persists the catalog.
func (s *FileStore) Create(ctx context.Context, m Movie) (Movie, error) {
	if err := ctx.Err(); err != nil {
		return Movie{}, err
	}
	movies, err := s.load()
	if err != nil {
		return Movie{}, err
	}
	m.ID = uuid.NewString()
	movies = append(movies, m)
	if err := s.save(movies); err != nil {
		return Movie{}, err
	}
	return m, nil
}

// Delete removes the movie with id. Deleting an absent id changes nothing.
func (s *FileStore) Delete(ctx context.Context, id string) (Movie, bool, error) {
	if err := ctx.Err(); err != nil {
		return Movie{}, false, err
	}
	movies, err := s.load()
	if err != nil {
		return Movie{}, false, err
	}
	idx := -1
	for i, m := range movies {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Movie{}, false, nil
	}
	removed := movies[idx]
	movies = append(movies[:idx], movies[idx+1:]...)
	if err := s.save(movies); err != nil {
		return Movie{}, false, err
	}
	return removed, true, nil
}

// VideoRefs returns the video reference of every movie that has one. Unlike
// List it fails with ErrCorrupt when the file cannot be decoded.
func (s *FileStore) VideoRefs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	movies, err := decode(data)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(movies))
	for _, m := range movies {
		if m.HasVideo() {
			refs = append(refs, *m.VideoURL)
		}
	}
	return refs, nil
}

func (s *FileStore) load() ([]Movie, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Movie{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	movies, err := decode(data)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("could not decode catalog, starting with empty list")
		return []Movie{}, nil
	}
	return movies, nil
}

func decode(data []byte) ([]Movie, error) {
	movies := []Movie{}
	if len(data) == 0 {
		return movies, nil
	}
	if err := json.Unmarshal(data, &movies); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if movies == nil {
		movies = []Movie{}
	}
	return movies, nil
}

// save writes movies to a temp file next to the data file and renames it into
// place so readers never see a partial write.
func (s *FileStore) save(movies []Movie) error {
	data, err := json.MarshalIndent(movies, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".movies-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close catalog: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}
