package mapping

import (
	"log"
	"strings"

	"github.com/google/uuid"
)

// Gate decides whether mappings may be edited right now
type Gate interface {
	HasValidAttestation() bool
	AttestedPrincipalID() string
	DeviceConnected() bool
}

// Editor applies edits to the attested principal's mappings
// The gate is consulted on every call; a rejected call changes nothing
type Editor struct {
	store *Store
	gate  Gate
}

// NewEditor creates an editor
func NewEditor(store *Store, gate Gate) *Editor {
	return &Editor{store: store, gate: gate}
}

// List returns the mappings visible now: the principal's own or the defaults
func (e *Editor) List() ([]Mapping, error) {
	return e.store.Load(e.principal())
}

// CanEdit reports whether edits would currently be accepted
func (e *Editor) CanEdit() bool {
	_, err := e.authorize()
	return err == nil
}

// Add appends a new mapping with a fresh id
func (e *Editor) Add(m Mapping) (Mapping, error) {
	principal, err := e.authorize()
	if err != nil {
		return Mapping{}, err
	}
	m.Label = strings.TrimSpace(m.Label)
	if err := m.Validate(); err != nil {
		return Mapping{}, err
	}

	list, err := e.store.Load(principal)
	if err != nil {
		return Mapping{}, err
	}
	now := e.store.clock.Now().UnixMilli()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := e.store.Save(principal, append(list, m)); err != nil {
		return Mapping{}, err
	}
	log.Printf("Mapping: added %s at %vHz", m.ID, m.FrequencyHz)
	return m, nil
}

// Edit replaces frequency, label and action of mapping id
func (e *Editor) Edit(id string, m Mapping) (Mapping, error) {
	principal, err := e.authorize()
	if err != nil {
		return Mapping{}, err
	}
	m.Label = strings.TrimSpace(m.Label)
	if err := m.Validate(); err != nil {
		return Mapping{}, err
	}

	list, err := e.store.Load(principal)
	if err != nil {
		return Mapping{}, err
	}
	for i := range list {
		if list[i].ID != id {
			continue
		}
		list[i].FrequencyHz = m.FrequencyHz
		list[i].Label = m.Label
		list[i].Action = m.Action
		list[i].UpdatedAt = e.store.clock.Now().UnixMilli()
		if err := e.store.Save(principal, list); err != nil {
			return Mapping{}, err
		}
		log.Printf("Mapping: edited %s", id)
		return list[i], nil
	}
	return Mapping{}, ErrNotFound
}

// Delete removes mapping id
func (e *Editor) Delete(id string) error {
	principal, err := e.authorize()
	if err != nil {
		return err
	}

	list, err := e.store.Load(principal)
	if err != nil {
		return err
	}
	next := list[:0]
	found := false
	for _, m := range list {
		if m.ID == id {
			found = true
			continue
		}
		next = append(next, m)
	}
	if !found {
		return ErrNotFound
	}
	if err := e.store.Save(principal, next); err != nil {
		return err
	}
	log.Printf("Mapping: deleted %s", id)
	return nil
}

func (e *Editor) principal() string {
	if e.gate == nil || !e.gate.HasValidAttestation() {
		return ""
	}
	return e.gate.AttestedPrincipalID()
}

func (e *Editor) authorize() (string, error) {
	if e.gate == nil || !e.gate.HasValidAttestation() || !e.gate.DeviceConnected() {
		return "", ErrAttestationRequired
	}
	principal := e.gate.AttestedPrincipalID()
	if principal == "" {
		return "", ErrAttestationRequired
	}
	return principal, nil
}
