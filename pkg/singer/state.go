package singer

import (
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
)

// Bookmark marks extraction progress for one stream.
type Bookmark struct {
	ReplicationKeyValue string `json:"replication_key_value"`
}

// State is the persisted, resumable cursor object: per-stream bookmarks plus
// the stream currently being synced. Owned exclusively by the sync
// orchestrator; drivers never touch it.
type State struct {
	Bookmarks        map[string]Bookmark `json:"bookmarks,omitempty"`
	CurrentlySyncing string              `json:"currently_syncing,omitempty"`
}

// NewState creates an empty state.
func NewState() *State {
	return &State{Bookmarks: make(map[string]Bookmark)}
}

// LoadState reads a prior state snapshot from a file. An empty path yields
// a fresh state.
func LoadState(path string) (*State, error) {
	if path == "" {
		return NewState(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read state file")
	}

	var state State
	if err := gojson.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse state file")
	}
	if state.Bookmarks == nil {
		state.Bookmarks = make(map[string]Bookmark)
	}

	return &state, nil
}

// GetBookmark returns a stream's bookmark value, if any.
func (s *State) GetBookmark(stream string) (string, bool) {
	b, ok := s.Bookmarks[stream]
	if !ok || b.ReplicationKeyValue == "" {
		return "", false
	}
	return b.ReplicationKeyValue, true
}

// SetBookmark records a stream's bookmark value.
func (s *State) SetBookmark(stream, value string) {
	if s.Bookmarks == nil {
		s.Bookmarks = make(map[string]Bookmark)
	}
	s.Bookmarks[stream] = Bookmark{ReplicationKeyValue: value}
}
