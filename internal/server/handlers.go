package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ulikunitz/xz"

	"github.com/matsen/publications/internal/author"
	"github.com/matsen/publications/internal/importer"
	"github.com/matsen/publications/internal/logging"
	"github.com/matsen/publications/internal/reference"
	"github.com/matsen/publications/internal/style"
)

const (
	// maxFormMemory is held in memory before multipart parts spill to disk.
	maxFormMemory = 1 << 20
	defaultLimit  = 50
)

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	Timestamp string `json:"timestamp"`
}

// ClassReport is one rejection class in a failed import.
type ClassReport struct {
	Class    importer.ErrorClass `json:"class"`
	Message  string              `json:"message"`
	Count    int                 `json:"count"`
	Citekeys []string            `json:"citekeys,omitempty"`
}

// ImportResponse is the data of a POST /import response.
type ImportResponse struct {
	BatchID      string                  `json:"batch_id"`
	Summary      string                  `json:"summary"`
	Total        int                     `json:"total"`
	Saved        bool                    `json:"saved"`
	Publications []reference.Publication `json:"publications"`
	Errors       []ClassReport           `json:"errors,omitempty"`
	Resubmit     string                  `json:"resubmit,omitempty"`
}

// Citation is a publication rendered in a named style.
type Citation struct {
	Citekey  string `json:"citekey"`
	Citation string `json:"citation"`
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, APIResponse{
		Success: status < 400,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorDetails(w, status, code, message, nil)
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleImport accepts BibTeX in the "bibliography" form field or as a
// multipart "upload" file, optionally xz-compressed.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	log := logging.LoggerFromContext(r.Context(), s.logger)
	maxBytes := s.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	text, err := readSubmission(r, maxBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, errTooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("Submission exceeds %s", humanize.IBytes(uint64(maxBytes))))
			return
		}
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	registry, err := s.lib.Registry()
	if err != nil {
		log.Error("loading types", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not load publication types")
		return
	}

	dryRun := isTrue(r.FormValue("dry_run"))
	imp := importer.New(registry, s.lib, s.lib, importer.Options{
		Save:   !dryRun,
		Legacy: s.legacy || isTrue(r.FormValue("legacy")),
		Logger: log,
	})

	res, err := imp.Run(text)
	if errors.Is(err, importer.ErrNoEntries) {
		respondError(w, http.StatusBadRequest, string(importer.NoEntries), importer.NoEntries.Message())
		return
	}
	if err != nil {
		log.Error("import failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Import failed")
		return
	}

	body := ImportResponse{
		BatchID:      res.BatchID,
		Summary:      res.Summary(),
		Total:        res.Total,
		Saved:        res.Saved,
		Publications: res.Accepted,
	}
	if body.Publications == nil {
		body.Publications = []reference.Publication{}
	}
	if res.OK() {
		respond(w, http.StatusCreated, body)
		return
	}

	body.Errors = classReports(res.Errors)
	body.Resubmit = res.Resubmit()
	respondErrorDetails(w, http.StatusUnprocessableEntity, "rejected",
		strings.Join(res.Errors.Messages(), " "), body)
}

func classReports(errs importer.Errors) []ClassReport {
	var reports []ClassReport
	for _, class := range errs.Classes() {
		rs := errs[class]
		report := ClassReport{Class: class, Message: class.Message(), Count: len(rs)}
		for _, rej := range rs {
			if rej.Citekey != "" {
				report.Citekeys = append(report.Citekeys, rej.Citekey)
			}
		}
		reports = append(reports, report)
	}
	return reports
}

// errTooLarge reports an upload whose decompressed size exceeds the limit.
var errTooLarge = errors.New("submission too large")

// readSubmission extracts the BibTeX text from a form or multipart request.
// An uploaded file may hold at most maxBytes after decompression.
func readSubmission(r *http.Request, maxBytes int64) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return "", fmt.Errorf("parsing form: %w", err)
		}
		file, header, err := r.FormFile("upload")
		if err == nil {
			defer file.Close()
			var src io.Reader = file
			if strings.EqualFold(filepath.Ext(header.Filename), ".xz") {
				xr, err := xz.NewReader(file)
				if err != nil {
					return "", fmt.Errorf("opening %s: %w", header.Filename, err)
				}
				src = xr
			}
			data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
			if err != nil {
				return "", fmt.Errorf("reading %s: %w", header.Filename, err)
			}
			if int64(len(data)) > maxBytes {
				return "", fmt.Errorf("reading %s: %w", header.Filename, errTooLarge)
			}
			return string(data), nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return "", fmt.Errorf("reading upload: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("parsing form: %w", err)
	}

	text := r.FormValue("bibliography")
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no bibliography text or upload provided")
	}
	return text, nil
}

// handlePublications lists publications. Query parameters: q (full-text
// search), batch (import ID), author (repeatable, all must match), limit,
// style (render citations instead of records).
func (s *Server) handlePublications(w http.ResponseWriter, r *http.Request) {
	log := logging.LoggerFromContext(r.Context(), s.logger)
	q := r.URL.Query()

	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	var format style.Formatter
	if name := q.Get("style"); name != "" {
		f, err := style.Lookup(name)
		if err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		format = f
	}

	authors := author.ParseQueries(q["author"])
	fetch := limit
	if len(authors) > 0 {
		fetch = 0 // filter first, then limit
	}

	var pubs []reference.Publication
	var err error
	switch {
	case q.Get("q") != "":
		pubs, err = s.lib.Search(q.Get("q"), fetch)
	case q.Get("batch") != "":
		pubs, err = s.lib.ListByImport(q.Get("batch"))
	default:
		pubs, err = s.lib.ListAll(fetch)
	}
	if err != nil {
		log.Error("listing publications", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not list publications")
		return
	}
	pubs = author.Filter(pubs, authors)
	if limit > 0 && len(pubs) > limit {
		pubs = pubs[:limit]
	}
	if pubs == nil {
		pubs = []reference.Publication{}
	}

	if format == nil {
		respond(w, http.StatusOK, pubs)
		return
	}

	registry, err := s.lib.Registry()
	if err != nil {
		log.Error("loading types", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not load publication types")
		return
	}
	citations := make([]Citation, 0, len(pubs))
	for _, pub := range pubs {
		kt, _ := registry.Lookup(pub.TypeID)
		citations = append(citations, Citation{Citekey: pub.Citekey, Citation: format(pub, kt)})
	}
	respond(w, http.StatusOK, citations)
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	registry, err := s.lib.Registry()
	if err != nil {
		logging.LoggerFromContext(r.Context(), s.logger).Error("loading types", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Could not load publication types")
		return
	}
	respond(w, http.StatusOK, registry.Types())
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
