// Package storage handles publication persistence in SQLite and JSONL dumps.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/matsen/publications/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// IsCompressed reports whether path names an xz-compressed file.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".xz")
}

// ReadAll reads all publications from a JSONL file. Files ending in .xz are
// decompressed.
func ReadAll(path string) ([]reference.Publication, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Missing file reads as empty
		}
		return nil, fmt.Errorf("opening dump file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if IsCompressed(path) {
		r, err = xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening xz stream: %w", err)
		}
	}
	return ReadJSONL(r)
}

// ReadJSONL decodes one publication per line.
func ReadJSONL(r io.Reader) ([]reference.Publication, error) {
	var pubs []reference.Publication
	scanner := bufio.NewScanner(r)

	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var pub reference.Publication
		if err := json.Unmarshal(line, &pub); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		pubs = append(pubs, pub)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dump: %w", err)
	}

	return pubs, nil
}

// WriteAll writes all publications to a JSONL file, replacing existing
// content. Files ending in .xz are compressed.
func WriteAll(path string, pubs []reference.Publication) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dump file: %w", err)
	}
	defer f.Close()

	if !IsCompressed(path) {
		return WriteJSONL(f, pubs)
	}

	zw, err := xz.NewWriter(f)
	if err != nil {
		return fmt.Errorf("opening xz stream: %w", err)
	}
	if err := WriteJSONL(zw, pubs); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing xz stream: %w", err)
	}
	return nil
}

// WriteJSONL encodes one publication per line.
func WriteJSONL(w io.Writer, pubs []reference.Publication) error {
	for i, pub := range pubs {
		data, err := json.Marshal(pub)
		if err != nil {
			return fmt.Errorf("encoding publication %d: %w", i, err)
		}

		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing publication %d: %w", i, err)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}

	return nil
}

// FindByCitekey searches for a publication by citekey.
func FindByCitekey(pubs []reference.Publication, citekey string) (int, bool) {
	for i, pub := range pubs {
		if pub.Citekey == citekey {
			return i, true
		}
	}
	return -1, false
}
