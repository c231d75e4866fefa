package mapping

import (
	"encoding/json"
	"log"

	"github.com/lixenwraith/soundkey/clock"
	"github.com/lixenwraith/soundkey/kv"
)

// Namespace prefixes per-principal mapping keys
const Namespace = "sound-actions.v2"

// Store persists mapping lists per principal
type Store struct {
	kv    kv.Store
	clock clock.Clock
}

// NewStore creates a store over a kv backend
func NewStore(store kv.Store, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{kv: store, clock: clk}
}

// Key returns the storage key for principal
func Key(principal string) string {
	return Namespace + ":" + principal
}

// Load returns principal's list, or the defaults when there is none
// An empty principal always gets the read-only defaults
func (s *Store) Load(principal string) ([]Mapping, error) {
	if principal == "" {
		return Defaults(s.clock.Now()), nil
	}
	raw, ok, err := s.kv.Get(Key(principal))
	if err != nil {
		return nil, err
	}
	if !ok {
		return Defaults(s.clock.Now()), nil
	}

	var list []Mapping
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		log.Printf("Mapping: stored list for %s unreadable, using defaults: %v", principal, err)
		return Defaults(s.clock.Now()), nil
	}
	return list, nil
}

// Save replaces principal's list
func (s *Store) Save(principal string, list []Mapping) error {
	if list == nil {
		list = []Mapping{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.kv.Set(Key(principal), raw)
}
