package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/matsen/publications/internal/config"
	"github.com/matsen/publications/internal/logging"
	"github.com/matsen/publications/internal/storage"
)

const bookEntry = `
@book{Swyngedouw2004,
  title = {{Social Power and the Urbanization of Water}},
  publisher = {{Oxford University Press}},
  author = {Swyngedouw, Erik},
  year = {2004}
}
`

const articleEntry = `
@article{Kaika2000,
  title = {Fetishizing the modern city},
  journal = {International Journal of Urban and Regional Research},
  author = {Kaika, Maria and Swyngedouw, Erik},
  year = {2000},
  volume = {24},
  number = {1},
  pages = {120-138}
}
`

const unknownTypeEntry = `
@invalid{Seminario2011,
  author = {Seminario, Bruno},
  title = {Gendered Political Ecology},
  year = {2011}
}
`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T, mutate func(*config.ServerConfig)) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default().Server
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, Deps{Library: db, Logger: logging.Discard()}), db
}

func postForm(t *testing.T, h http.Handler, values url.Values) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, h, req)
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec, env := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get(logging.RequestIDHeader))
}

func TestImport_Created(t *testing.T) {
	s, db := newTestServer(t, nil)

	rec, env := postForm(t, s.Handler(), url.Values{"bibliography": {bookEntry + articleEntry}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	var data ImportResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Successfully added 2 publications.", data.Summary)
	assert.True(t, data.Saved)
	assert.Len(t, data.Publications, 2)

	count, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	byBatch, err := db.ListByImport(data.BatchID)
	require.NoError(t, err)
	assert.Len(t, byBatch, 2)
}

func TestImport_DryRunDoesNotSave(t *testing.T) {
	s, db := newTestServer(t, nil)

	rec, env := postForm(t, s.Handler(), url.Values{"bibliography": {bookEntry}, "dry_run": {"true"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	var data ImportResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.False(t, data.Saved)

	count, err := db.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImport_Rejections(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec, env := postForm(t, s.Handler(), url.Values{"bibliography": {unknownTypeEntry + articleEntry}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "rejected", env.Error.Code)
	assert.Equal(t, "Type unknown.", env.Error.Message)

	var data ImportResponse
	require.NoError(t, json.Unmarshal(env.Error.Details, &data))
	require.Len(t, data.Errors, 1)
	assert.Equal(t, ClassReport{Class: "wrong_type", Message: "Type unknown.", Count: 1, Citekeys: []string{"Seminario2011"}}, data.Errors[0])
	assert.Contains(t, data.Resubmit, "@invalid{Seminario2011,")
	assert.Len(t, data.Publications, 1)
}

func TestImport_DuplicateOfStoredEntry(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec, _ := postForm(t, h, url.Values{"bibliography": {bookEntry}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := postForm(t, h, url.Values{"bibliography": {bookEntry}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Entry already exists in the library.", env.Error.Message)

	rec, env = postForm(t, h, url.Values{"bibliography": {bookEntry}, "legacy": {"1"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Entry already exists.", env.Error.Message)
}

func TestImport_NoEntries(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec, env := postForm(t, s.Handler(), url.Values{"bibliography": {"just some text"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "no_entries", env.Error.Code)
	assert.Equal(t, "Invalid data", env.Error.Message)
}

func TestImport_MissingBody(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec, env := postForm(t, s.Handler(), url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", env.Error.Code)
}

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("upload", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImport_Upload(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec, _ := do(t, s.Handler(), multipartUpload(t, "refs.bib", []byte(bookEntry)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestImport_CompressedUpload(t *testing.T) {
	s, db := newTestServer(t, nil)

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write([]byte(articleEntry))
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	rec, _ := do(t, s.Handler(), multipartUpload(t, "refs.bib.xz", buf.Bytes()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	pub, err := db.GetByCitekey("Kaika2000")
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Equal(t, "International Journal of Urban and Regional Research", pub.Journal)
}

func TestImport_TooLarge(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.ServerConfig) { c.MaxUploadMB = 1 })

	big := strings.Repeat("x", 2<<20)
	rec, env := postForm(t, s.Handler(), url.Values{"bibliography": {big}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "too_large", env.Error.Code)
	assert.Contains(t, env.Error.Message, "1.0 MiB")
}

func TestImport_CompressedUploadTooLarge(t *testing.T) {
	s, db := newTestServer(t, func(c *config.ServerConfig) { c.MaxUploadMB = 1 })

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write([]byte(articleEntry))
	require.NoError(t, err)
	_, err = xw.Write(bytes.Repeat([]byte("%"), 4<<20))
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	require.Less(t, buf.Len(), 1<<20)

	rec, env := do(t, s.Handler(), multipartUpload(t, "refs.bib.xz", buf.Bytes()))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Equal(t, "too_large", env.Error.Code)

	pub, err := db.GetByCitekey("Kaika2000")
	require.NoError(t, err)
	assert.Nil(t, pub)
}

func TestAuth(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	s, _ := newTestServer(t, func(c *config.ServerConfig) {
		c.AdminUser = "admin"
		c.AdminPassword = hash
	})
	h := s.Handler()

	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		wantStatus int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "s3cret", true, http.StatusUnauthorized},
		{"valid", "admin", "s3cret", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/types", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec, _ := do(t, h, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}

	// Health stays public.
	rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.ServerConfig) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})
	h := s.Handler()

	rec, _ := postForm(t, h, url.Values{"bibliography": {bookEntry}, "dry_run": {"1"}})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, env := postForm(t, h, url.Values{"bibliography": {bookEntry}, "dry_run": {"1"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", env.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are not throttled.
	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/types", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublications(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec, env := postForm(t, h, url.Values{"bibliography": {bookEntry + articleEntry}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var imported ImportResponse
	require.NoError(t, json.Unmarshal(env.Data, &imported))

	t.Run("list", func(t *testing.T) {
		_, env := do(t, h, httptest.NewRequest(http.MethodGet, "/publications", nil))
		var pubs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &pubs))
		require.Len(t, pubs, 2)
		assert.Equal(t, "Swyngedouw2004", pubs[0]["citekey"]) // newest first
	})

	t.Run("limit", func(t *testing.T) {
		_, env := do(t, h, httptest.NewRequest(http.MethodGet, "/publications?limit=1", nil))
		var pubs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &pubs))
		assert.Len(t, pubs, 1)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/publications?limit=-3", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("search", func(t *testing.T) {
		_, env := do(t, h, httptest.NewRequest(http.MethodGet, "/publications?q=fetishizing", nil))
		var pubs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &pubs))
		require.Len(t, pubs, 1)
		assert.Equal(t, "Kaika2000", pubs[0]["citekey"])
	})

	t.Run("batch", func(t *testing.T) {
		_, env := do(t, h, httptest.NewRequest(http.MethodGet, "/publications?batch="+imported.BatchID, nil))
		var pubs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &pubs))
		assert.Len(t, pubs, 2)
	})

	t.Run("author", func(t *testing.T) {
		_, env := do(t, h, httptest.NewRequest(http.MethodGet, "/publications?author=Kaika", nil))
		var pubs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &pubs))
		require.Len(t, pubs, 1)
		assert.Equal(t, "Kaika2000", pubs[0]["citekey"])
	})

	t.Run("author filters before limit", func(t *testing.T) {
		_, env := do(t, h, httptest.NewRequest(http.MethodGet, "/publications?author=Erik+Swyngedouw&author=Maria+Kaika&limit=1", nil))
		var pubs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &pubs))
		require.Len(t, pubs, 1)
		assert.Equal(t, "Kaika2000", pubs[0]["citekey"])
	})

	t.Run("style", func(t *testing.T) {
		_, env := do(t, h, httptest.NewRequest(http.MethodGet, "/publications?style=harvard&q=Kaika", nil))
		var cites []Citation
		require.NoError(t, json.Unmarshal(env.Data, &cites))
		require.Len(t, cites, 1)
		assert.Equal(t, "M. Kaika and E. Swyngedouw (2000). Fetishizing the modern city. International Journal of Urban and Regional Research, 24(1), pp. 120-138.", cites[0].Citation)
	})

	t.Run("unknown style", func(t *testing.T) {
		rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/publications?style=apa", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTypes(t *testing.T) {
	s, _ := newTestServer(t, nil)

	_, env := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/types", nil))
	var types []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &types))
	require.NotEmpty(t, types)
	assert.Equal(t, "Journal Article", types[0]["name"])
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/import", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
