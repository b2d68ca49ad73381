package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/guidoenr/visualsound/internal/render"
)

// SongData is the scene choice remembered for one track.
type SongData struct {
	Visualizer int `yaml:"visualizer"`
	Style      int `yaml:"style"`
	Primary    RGB `yaml:"primary,flow"`
	Secondary  RGB `yaml:"secondary,flow"`
}

// Songs stores SongData per track in a YAML file keyed by
// "[artist][album][title]".
type Songs struct {
	path string

	mu        sync.Mutex
	songs     map[string]SongData
	defaulter bool
}

// SongKey builds the lookup key for a track.
func SongKey(artist, album, title string) string {
	return "[" + artist + "][" + album + "][" + title + "]"
}

// OpenSongs loads the store at path. A missing file starts empty; an empty
// path keeps the store in memory only.
func OpenSongs(path string) (*Songs, error) {
	s := &Songs{path: path, songs: map[string]SongData{}}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read song data: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.songs); err != nil {
		return nil, fmt.Errorf("parse song data: %w", err)
	}
	if s.songs == nil {
		s.songs = map[string]SongData{}
	}
	return s, nil
}

// EnableDefaulter makes Find derive a stable choice for unknown tracks from a
// hash of their identity.
func (s *Songs) EnableDefaulter(on bool) {
	s.mu.Lock()
	s.defaulter = on
	s.mu.Unlock()
}

// Len returns the number of stored tracks.
func (s *Songs) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.songs)
}

// Find returns the stored data for a track, the derived default when the
// defaulter is on, or ErrNotFound.
func (s *Songs) Find(artist, album, title string) (SongData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.songs[SongKey(artist, album, title)]; ok {
		return d, nil
	}
	if s.defaulter {
		return derive(artist, album, title), nil
	}
	return SongData{}, ErrNotFound
}

// Save stores data for a track and rewrites the file.
func (s *Songs) Save(artist, album, title string, d SongData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs[SongKey(artist, album, title)] = d
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s.songs)
	if err != nil {
		return fmt.Errorf("encode song data: %w", err)
	}
	return writeFile(s.path, data)
}

func derive(artist, album, title string) SongData {
	h := hashStr(artist, 5381)
	h = hashStr(album, h)
	h = hashStr(title, h)
	pair := render.PaletteEntry(int(hashStr("color", h) % render.PaletteSize))
	return SongData{
		Visualizer: int(hashStr("visualizer", h) % 100),
		Style:      int(hashStr("style", h) % 100),
		Primary:    FromColor(pair.Primary),
		Secondary:  FromColor(pair.Secondary),
	}
}

// hashStr continues a djb2 hash over s.
func hashStr(s string, h uint64) uint64 {
	for i := 0; i < len(s); i++ {
		h = h<<5 + h + uint64(s[i])
	}
	return h
}
