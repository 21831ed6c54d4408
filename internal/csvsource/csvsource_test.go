package csvsource

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/userwatch/internal/attr"
	"github.com/roach88/userwatch/internal/entity"
	"github.com/roach88/userwatch/internal/testutil"
)

func TestDecode_SkipsHeader(t *testing.T) {
	in := "id,name,email\n1,Ada,ada@x\n2,Alan,alan@x\n"

	records, err := Decode("users.csv", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, 2, records[0].Line)
	assert.Equal(t, attr.String("Ada"), records[0].Attrs["name"])
	assert.Equal(t, attr.String("alan@x"), records[1].Attrs["email"])
	assert.Equal(t, 3, records[1].Line)
}

func TestDecode_NoHeader(t *testing.T) {
	records, err := Decode("users.csv", strings.NewReader("7,Grace,g@x\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].ID)
	assert.Equal(t, 1, records[0].Line)
}

func TestDecode_QuotedFieldsAndBlankLines(t *testing.T) {
	in := "id,name,email\n\n1,\"Hopper, Grace\",g@x\n\n"
	records, err := Decode("users.csv", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attr.String("Hopper, Grace"), records[0].Attrs["name"])
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		line int
	}{
		{name: "missing id", in: "id,name,email\n1,A,a@x\n,B,b@x\n", line: 3},
		{name: "too few fields", in: "id,name,email\n1,A\n", line: 2},
		{name: "bad quoting", in: "id,name,email\n1,\"A,a@x\n", line: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("users.csv", strings.NewReader(tt.in))
			require.Error(t, err)
			assert.ErrorIs(t, err, entity.ErrMalformedRecord)

			var mre *entity.MalformedRecordError
			require.True(t, errors.As(err, &mre))
			assert.Equal(t, "users.csv", mre.Source)
			assert.Equal(t, tt.line, mre.Line)
		})
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, []entity.Record{
		{ID: "1", Attrs: attr.Attributes{"name": attr.String("Ada"), "email": attr.String("ada@x")}},
		{ID: "2", Attrs: attr.Attributes{"name": attr.String("Lovelace, Ada")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,name,email\n1,Ada,ada@x\n2,\"Lovelace, Ada\",\n", buf.String())
}

func TestEncode_RejectsUnrepresentable(t *testing.T) {
	tests := []struct {
		name  string
		attrs attr.Attributes
	}{
		{"extra column", attr.Attributes{"name": attr.String("Ada"), "role": attr.String("admin")}},
		{"int value", attr.Attributes{"name": attr.Int(123)}},
		{"bool value", attr.Attributes{"email": attr.Bool(true)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Encode(&buf, []entity.Record{{ID: "1", Attrs: tt.attrs}})
			assert.ErrorIs(t, err, ErrUnsupportedAttribute)
			assert.Empty(t, buf.String(), "nothing is written on failure")
		})
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(attr.Attributes{
		"name":  attr.Int(123),
		"email": attr.String("a@x"),
		"id":    attr.String("ignored"),
	})
	require.NoError(t, err)
	assert.Equal(t, attr.Attributes{"name": attr.String("123"), "email": attr.String("a@x")}, got)

	_, err = Normalize(attr.Attributes{"role": attr.String("admin")})
	assert.ErrorIs(t, err, ErrUnsupportedAttribute)
	assert.ErrorContains(t, err, `"role"`)
}

func TestNormalize_RoundTrip(t *testing.T) {
	attrs, err := attr.ParseAll([]string{"name=123", "email=true"})
	require.NoError(t, err)
	attrs, err = Normalize(attrs)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []entity.Record{{ID: "1", Attrs: attrs}}))
	records, err := Decode("users.csv", &buf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attrs, records[0].Attrs)
}

func TestFile_Exists(t *testing.T) {
	dir := t.TempDir()

	missing := New(filepath.Join(dir, "missing.csv"))
	ok, err := missing.Exists()
	require.NoError(t, err)
	assert.False(t, ok)

	emptyPath := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o644))
	ok, err = New(emptyPath).Exists()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = New(dir).Exists()
	assert.Error(t, err)
}

func TestFile_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "users.csv")
	f := New(path)

	require.NoError(t, f.Write(entity.Seed()))

	ok, err := f.Exists()
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := f.Read()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, records[i].ID)
	}
}

func TestStoreLoad_BootstrapsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	log := testutil.NewLog()
	s := entity.NewStore()
	s.Attach(testutil.NewRecorder("all", log))

	require.NoError(t, s.Load(New(path)))

	assert.Equal(t, 3, s.Len())
	for _, id := range []string{"1", "2", "3"} {
		_, ok := s.Get(id)
		assert.True(t, ok, "seed id %s", id)
	}
	ds := log.Deliveries()
	require.Len(t, ds, 1)
	assert.Equal(t, entity.EventInit, ds[0].Event)
	assert.Equal(t, path, ds[0].Data)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,name,email\n1,"))
}

func TestStoreLoad_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name,email\n10,Ada,ada@x\n20,Alan,alan@x\n"), 0o644))

	s := entity.NewStore()
	require.NoError(t, s.Load(New(path)))

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("10")
	assert.True(t, ok)
	_, ok = s.Get("20")
	assert.True(t, ok)
}

func TestStoreLoad_HeaderOnlyFileStaysEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name,email\n"), 0o644))

	ok, err := New(path).Exists()
	require.NoError(t, err)
	assert.True(t, ok)

	s := entity.NewStore()
	require.NoError(t, s.Load(New(path)))
	assert.Equal(t, 0, s.Len(), "deleted users are not re-seeded")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,name,email\n", string(data))
}

func TestStoreLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name,email\n,Ada,ada@x\n"), 0o644))

	s := entity.NewStore()
	err := s.Load(New(path))
	assert.ErrorIs(t, err, entity.ErrMalformedRecord)
	assert.Equal(t, 0, s.Len())
}
