package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/publications/internal/reference"
)

func TestReadAll_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	pubs, err := ReadAll(path)
	require.NoError(t, err)
	assert.Empty(t, pubs)
}

func TestReadAll_NonExistentFile(t *testing.T) {
	pubs, err := ReadAll("/nonexistent/path/pubs.jsonl")
	require.NoError(t, err, "a missing file reads as an empty library")
	assert.Empty(t, pubs)
}

func TestReadAll_SinglePublication(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.jsonl")

	content := `{"type_id":1,"citekey":"Smith2026","title":"Test Paper","authors":"J. Smith","authors_list":["J. Smith"],"year":2026,"month":3,"urldate":"2026-01-02","external":false}`
	require.NoError(t, os.WriteFile(path, []byte(content+"\n\n"), 0644))

	pubs, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, pubs, 1)

	pub := pubs[0]
	assert.Equal(t, "Smith2026", pub.Citekey)
	require.NotNil(t, pub.Year)
	assert.Equal(t, 2026, *pub.Year)
	assert.Equal(t, 3, pub.Month)
	require.NotNil(t, pub.URLDate)
	assert.Equal(t, "2026-01-02", *pub.URLDate)
	assert.Nil(t, pub.Volume)
}

func TestReadAll_InvalidLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.jsonl")
	content := `{"citekey":"A"}` + "\n" + `not json` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := ReadAll(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteAll_RoundTrip(t *testing.T) {
	for _, name := range []string{"pubs.jsonl", "pubs.jsonl.xz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := testPublications()
			require.NoError(t, WriteAll(path, want))

			got, err := ReadAll(path)
			require.NoError(t, err)
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].Citekey, got[i].Citekey)
				assert.Equal(t, want[i].Title, got[i].Title)
			}
			require.NotNil(t, got[1].Volume)
			assert.Equal(t, 24, *got[1].Volume)
		})
	}
}

func TestWriteAll_Compressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.jsonl.xz")
	require.NoError(t, WriteAll(path, testPublications()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// xz stream magic
	assert.True(t, bytes.HasPrefix(data, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}),
		"file does not start with xz magic: % x", data[:6])
}

func TestWriteJSONL_OneLinePerPublication(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, testPublications()))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
}

func TestFindByCitekey(t *testing.T) {
	pubs := []reference.Publication{{Citekey: "A"}, {Citekey: "B"}}

	idx, ok := FindByCitekey(pubs, "B")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = FindByCitekey(pubs, "C")
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}
