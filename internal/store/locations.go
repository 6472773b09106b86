package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

// ErrUnknownFavorite is returned when no favorite has the requested identifier.
var ErrUnknownFavorite = errors.New("unknown favorite location")

// Favorite is a saved location as persisted in the favorites document.
type Favorite struct {
	ID          string          `json:"id"`
	Name        string          `json:"Name"`
	Latitude    float64         `json:"Latitude"`
	Longitude   float64         `json:"Longitude"`
	Country     string          `json:"Country"`
	State       string          `json:"State"`
	WeatherData json.RawMessage `json:"WeatherData,omitempty"`
}

// Location returns the favorite as a fetchable location.
func (f Favorite) Location() weather.Location {
	return weather.Location{
		Name:      f.Name,
		State:     f.State,
		Country:   f.Country,
		PlaceID:   f.ID,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
	}
}

// LocationStore reads the favorites document, a JSON object keyed by place identifier.
// The file is re-read on every call so edits by other tools are picked up.
type LocationStore struct {
	path string
}

func NewLocationStore(path string) *LocationStore {
	return &LocationStore{path: path}
}

// List returns all favorites sorted by name. A missing file means no favorites.
func (s *LocationStore) List() ([]Favorite, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	favorites := make([]Favorite, 0, len(doc))
	for id, f := range doc {
		f.ID = id
		favorites = append(favorites, f)
	}
	sort.Slice(favorites, func(i, j int) bool {
		if favorites[i].Name != favorites[j].Name {
			return favorites[i].Name < favorites[j].Name
		}
		return favorites[i].ID < favorites[j].ID
	})
	return favorites, nil
}

// Get returns the favorite stored under id.
func (s *LocationStore) Get(id string) (Favorite, error) {
	doc, err := s.read()
	if err != nil {
		return Favorite{}, err
	}
	f, ok := doc[id]
	if !ok {
		return Favorite{}, fmt.Errorf("%w: %s", ErrUnknownFavorite, id)
	}
	f.ID = id
	return f, nil
}

// Locations returns the favorites as fetchable locations, dropping duplicate coordinates.
func (s *LocationStore) Locations() ([]weather.Location, error) {
	favorites, err := s.List()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(favorites))
	out := make([]weather.Location, 0, len(favorites))
	for _, f := range favorites {
		loc := f.Location()
		if seen[loc.Key()] {
			continue
		}
		seen[loc.Key()] = true
		out = append(out, loc)
	}
	return out, nil
}

func (s *LocationStore) read() (map[string]Favorite, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Favorite{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read favorites: %w", err)
	}

	doc := make(map[string]Favorite)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return doc, nil
}
