package entity

import "github.com/roach88/userwatch/internal/attr"

// Record is one row read from, or written to, a bootstrap source.
type Record struct {
	// Line is the 1-based source line, 0 when the record did not come from a file.
	Line  int
	ID    string
	Attrs attr.Attributes
}

// Source is the bootstrap collaborator. It owns the on-disk format.
type Source interface {
	// Name identifies the source; it is the payload of EventInit.
	Name() string

	// Exists reports whether the source holds any data. A missing or
	// zero-length source reports false.
	Exists() (bool, error)

	// Read returns the records in source order, header excluded.
	Read() ([]Record, error)

	// Write replaces the source contents with records.
	Write(records []Record) error
}

// Seed returns the fixed sample records written to a new source.
func Seed() []Record {
	return []Record{
		{ID: "1", Attrs: attr.FromStrings(map[string]string{"name": "John Doe", "email": "john@example.com"})},
		{ID: "2", Attrs: attr.FromStrings(map[string]string{"name": "Jane Smith", "email": "jane@example.com"})},
		{ID: "3", Attrs: attr.FromStrings(map[string]string{"name": "Bob Johnson", "email": "bob@example.com"})},
	}
}

// RecordsOf converts entities back into records, preserving order.
func RecordsOf(entities []Entity) []Record {
	records := make([]Record, len(entities))
	for i, e := range entities {
		records[i] = Record{ID: e.ID, Attrs: e.Attrs.Clone()}
	}
	return records
}

// MemorySource is an in-memory Source. Scenarios and tests use it in place
// of a file.
type MemorySource struct {
	Label   string
	Records []Record
	Writes  int
}

// Name implements Source.
func (m *MemorySource) Name() string {
	if m.Label == "" {
		return "memory"
	}
	return m.Label
}

// Exists implements Source.
func (m *MemorySource) Exists() (bool, error) {
	return len(m.Records) > 0, nil
}

// Read implements Source.
func (m *MemorySource) Read() ([]Record, error) {
	out := make([]Record, len(m.Records))
	for i, r := range m.Records {
		out[i] = Record{Line: r.Line, ID: r.ID, Attrs: r.Attrs.Clone()}
	}
	return out, nil
}

// Write implements Source.
func (m *MemorySource) Write(records []Record) error {
	m.Records = make([]Record, len(records))
	for i, r := range records {
		m.Records[i] = Record{ID: r.ID, Attrs: r.Attrs.Clone()}
	}
	m.Writes++
	return nil
}
