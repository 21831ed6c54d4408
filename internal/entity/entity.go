package entity

import (
	"fmt"
	"strings"

	"github.com/roach88/userwatch/internal/attr"
)

// Lifecycle event names fired by Store.
const (
	EventInit    = "entity:init"
	EventCreated = "entity:created"
	EventUpdated = "entity:updated"
	EventDeleted = "entity:deleted"
)

// KeyID is the reserved attribute name for the identifier. It is never stored
// in Attrs; patches carrying it are ignored for that key.
const KeyID = "id"

// Entity is an identifier-bearing record with open attributes.
type Entity struct {
	ID    string
	Attrs attr.Attributes
}

// Clone returns a copy that shares nothing with e.
func (e Entity) Clone() Entity {
	return Entity{ID: e.ID, Attrs: e.Attrs.Clone()}
}

// Get returns the attribute stored under key.
func (e Entity) Get(key string) (attr.Value, bool) {
	if key == KeyID {
		return attr.String(e.ID), e.ID != ""
	}
	v, ok := e.Attrs[key]
	return v, ok
}

// AsMap renders the entity as a flat map including "id".
func (e Entity) AsMap() map[string]any {
	m := make(map[string]any, len(e.Attrs)+1)
	for k, v := range e.Attrs {
		m[k] = v
	}
	m[KeyID] = e.ID
	return m
}

// MarshalJSON renders the entity as canonical JSON.
func (e Entity) MarshalJSON() ([]byte, error) {
	return attr.MarshalCanonical(e)
}

// String renders "id=... k=v ..." with keys in canonical order.
func (e Entity) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id=%s", e.ID)
	for _, k := range e.Attrs.SortedKeys() {
		fmt.Fprintf(&b, " %s=%s", k, attr.Format(e.Attrs[k]))
	}
	return b.String()
}

// withoutID drops the reserved id key from a patch.
func withoutID(attrs attr.Attributes) attr.Attributes {
	if _, ok := attrs[KeyID]; !ok {
		return attrs
	}
	out := attrs.Clone()
	delete(out, KeyID)
	return out
}
