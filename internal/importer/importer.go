// Package importer turns submitted BibTeX text into publication records,
// classifying every entry it cannot accept.
package importer

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/matsen/publications/internal/bibtex"
	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
	"github.com/matsen/publications/internal/storage"
)

// Saver persists an accepted batch in one transaction.
type Saver interface {
	InsertBatch(batch storage.ImportBatch, pubs []reference.Publication) error
}

// Options controls a run.
type Options struct {
	// Save inserts accepted records even when other entries were rejected.
	Save bool
	// Legacy selects the single-field form's error classes.
	Legacy bool
	Logger *slog.Logger
}

// Result is the outcome of one submission.
type Result struct {
	BatchID  string                  `json:"batch_id"`
	Digest   string                  `json:"digest"`
	Total    int                     `json:"total"`
	Accepted []reference.Publication `json:"accepted"`
	Errors   Errors                  `json:"errors,omitempty"`
	Saved    bool                    `json:"saved"`
}

// OK reports whether every entry was accepted.
func (r *Result) OK() bool {
	return r.Errors.Len() == 0
}

// Summary returns the user-facing success line.
func (r *Result) Summary() string {
	return fmt.Sprintf("Successfully added %s.", english.Plural(len(r.Accepted), "publication", ""))
}

// Resubmit returns the rejected entries as BibTeX for correction.
func (r *Result) Resubmit() string {
	return r.Errors.Resubmit()
}

// Importer runs submissions against a type registry and a library.
type Importer struct {
	registry *pubtype.Registry
	lookup   Lookup
	saver    Saver
	opts     Options
	now      func() time.Time
}

// New creates an importer. saver may be nil when opts.Save is false.
func New(registry *pubtype.Registry, lookup Lookup, saver Saver, opts Options) *Importer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Importer{
		registry: registry,
		lookup:   lookup,
		saver:    saver,
		opts:     opts,
		now:      time.Now,
	}
}

// Run parses text and builds a record from every entry. Rejected entries are
// collected in the result rather than returned as errors; an error means the
// submission as a whole failed. ErrNoEntries is returned when nothing parses.
func (im *Importer) Run(text string) (*Result, error) {
	log := im.opts.Logger

	entries, duplicates := bibtex.Extract(text)
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	sum := blake3.Sum256([]byte(text))
	res := &Result{
		BatchID: uuid.NewString(),
		Digest:  hex.EncodeToString(sum[:]),
		Total:   len(entries),
		Errors:  Errors{},
	}

	importID := ""
	if im.opts.Save {
		importID = res.BatchID
	}
	builder := NewBuilder(im.registry, im.lookup, BuilderOptions{
		Duplicates: duplicates,
		Legacy:     im.opts.Legacy,
		ImportID:   importID,
	})

	for i, raw := range entries {
		entry := bibtex.Normalize(raw)
		pub, rej, err := builder.Build(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i+1, entry.Key, err)
		}
		if rej != nil {
			log.Debug("entry rejected", "key", rej.Citekey, "class", string(rej.Class))
			res.Errors.Add(*rej)
			continue
		}
		res.Accepted = append(res.Accepted, pub)
	}

	if im.opts.Save && len(res.Accepted) > 0 {
		if im.saver == nil {
			return nil, fmt.Errorf("saving batch %s: no saver configured", res.BatchID)
		}
		batch := storage.ImportBatch{
			ID:        res.BatchID,
			CreatedAt: im.now().UTC(),
			Digest:    res.Digest,
			Accepted:  len(res.Accepted),
			Rejected:  res.Errors.Len(),
		}
		if err := im.saver.InsertBatch(batch, res.Accepted); err != nil {
			return nil, fmt.Errorf("saving batch %s: %w", res.BatchID, err)
		}
		res.Saved = true
	}

	log.Info("import finished",
		"batch", res.BatchID,
		"entries", res.Total,
		"accepted", len(res.Accepted),
		"rejected", res.Errors.Len(),
		"saved", res.Saved,
	)

	return res, nil
}
