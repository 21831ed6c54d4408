// Package csvsource reads and writes the bootstrap user file.
//
// The format is line-oriented CSV with the fields id,name,email. A first
// line equal to the header is skipped. Blank lines are ignored.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/userwatch/internal/attr"
	"github.com/roach88/userwatch/internal/entity"
)

// Header is the field list of the bootstrap format.
var Header = []string{"id", "name", "email"}

// ErrUnsupportedAttribute is returned for attributes the format has no
// column for, or values it cannot store without changing their type.
var ErrUnsupportedAttribute = errors.New("attribute not representable in the users file")

// Normalize checks that attrs fit the format and converts every value to a
// string, the only type a column holds. An "id" key is dropped since the
// store assigns identifiers itself.
func Normalize(attrs attr.Attributes) (attr.Attributes, error) {
	out := make(attr.Attributes, len(attrs))
	for _, k := range attrs.SortedKeys() {
		if k == entity.KeyID {
			continue
		}
		if !slices.Contains(Header[1:], k) {
			return nil, fmt.Errorf("%w: %q (columns are %s)", ErrUnsupportedAttribute, k, strings.Join(Header[1:], ", "))
		}
		out[k] = attr.String(attr.Format(attrs[k]))
	}
	return out, nil
}

// File is an entity.Source backed by a CSV file.
type File struct {
	Path string
}

// New creates a source for path.
func New(path string) *File {
	return &File{Path: path}
}

// Name implements entity.Source.
func (f *File) Name() string {
	return f.Path
}

// Exists implements entity.Source. A zero-length file does not exist.
// A file holding only the header exists: it is what remains after every
// user was deleted, and re-seeding it would bring them back.
func (f *File) Exists() (bool, error) {
	info, err := os.Stat(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", f.Path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", f.Path)
	}
	return info.Size() > 0, nil
}

// Read implements entity.Source.
func (f *File) Read() ([]entity.Record, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer fh.Close()
	return Decode(f.Path, fh)
}

// Write implements entity.Source. Parent directories are created as needed.
func (f *File) Write(records []entity.Record) error {
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	fh, err := os.OpenFile(f.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Path, err)
	}
	if err := Encode(fh, records); err != nil {
		fh.Close()
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	return fh.Close()
}

// Decode parses CSV records from r. name labels errors.
//
// Rows with fewer than three fields, or an empty id, fail with
// *entity.MalformedRecordError. Extra trailing fields are ignored.
func Decode(name string, r io.Reader) ([]entity.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // width is checked per row below
	cr.TrimLeadingSpace = true

	var records []entity.Record
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &entity.MalformedRecordError{Source: name, Line: perr.StartLine, Reason: perr.Err.Error()}
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if isHeader(row) {
				continue
			}
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < len(Header) {
			return nil, &entity.MalformedRecordError{
				Source: name,
				Line:   line,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(Header), len(row)),
			}
		}

		id := strings.TrimSpace(row[0])
		if id == "" {
			return nil, &entity.MalformedRecordError{Source: name, Line: line, Reason: "missing id"}
		}
		records = append(records, entity.Record{
			Line: line,
			ID:   id,
			Attrs: attr.Attributes{
				"name":  attr.String(row[1]),
				"email": attr.String(row[2]),
			},
		})
	}
	return records, nil
}

// Encode writes the header followed by records.
//
// A record carrying an attribute without a column, or a non-string value,
// fails with ErrUnsupportedAttribute before anything is written: reading
// the file back must give the same records.
func Encode(w io.Writer, records []entity.Record) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, Header)
	for _, r := range records {
		row := []string{r.ID, "", ""}
		for k, v := range r.Attrs {
			col := slices.Index(Header, k)
			if col < 1 {
				return fmt.Errorf("record %s: %w: %q", r.ID, ErrUnsupportedAttribute, k)
			}
			str, ok := v.(attr.String)
			if !ok {
				return fmt.Errorf("record %s: %w: %s=%s is not a string", r.ID, ErrUnsupportedAttribute, k, attr.Format(v))
			}
			row[col] = string(str)
		}
		rows = append(rows, row)
	}

	cw := csv.NewWriter(w)
	return cw.WriteAll(rows)
}

func isHeader(row []string) bool {
	trimmed := make([]string, len(row))
	for i, f := range row {
		trimmed[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return slices.Equal(trimmed, Header)
}
