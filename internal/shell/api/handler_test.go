package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/artpar/jobtemplates/internal/core/domain"
	"github.com/artpar/jobtemplates/internal/shell/registry"
	"github.com/artpar/jobtemplates/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func setupServer(t *testing.T) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	s := newTestStore(t)
	reg := registry.New(s, nil)
	return SetupAPI(APIConfig{Registry: reg, Store: s}), s
}

// failingStore returns err from every operation.
type failingStore struct {
	err error
}

func (s failingStore) GetJobTemplate(context.Context, string) (*domain.JobTemplate, error) {
	return nil, s.err
}

func (s failingStore) ListJobTemplates(context.Context) ([]domain.JobTemplate, error) {
	return nil, s.err
}

func (s failingStore) PutJobTemplate(context.Context, *domain.JobTemplate) error {
	return s.err
}

func (s failingStore) DeleteJobTemplate(context.Context, string) (bool, error) {
	return false, s.err
}

func (s failingStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func (s failingStore) Ping(context.Context) error { return s.err }
func (s failingStore) Close() error               { return nil }

func setupFailingServer(t *testing.T) http.Handler {
	t.Helper()
	fs := failingStore{err: errors.New("disk I/O error")}
	return SetupAPI(APIConfig{Registry: registry.New(fs, nil), Store: fs})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) domain.BoolResult {
	t.Helper()
	var resp domain.BoolResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []domain.JobTemplate {
	t.Helper()
	var resp []domain.JobTemplate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// =============================================================================
// Job Template Route Tests
// =============================================================================

func TestList_Empty(t *testing.T) {
	h, _ := setupServer(t)

	rec := do(t, h, http.MethodGet, JobTemplatesPath, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreate_ThenList(t *testing.T) {
	h, _ := setupServer(t)

	rec := do(t, h, http.MethodPost, JobTemplatesPath, `{"name":"backup","template":{"image":"restic"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResult(t, rec).Result)

	rec = do(t, h, http.MethodGet, JobTemplatesPath, "")
	require.Equal(t, http.StatusOK, rec.Code)

	templates := decodeList(t, rec)
	require.Len(t, templates, 1)
	assert.Equal(t, "backup", templates[0].Name)
	assert.JSONEq(t, `{"image":"restic"}`, string(templates[0].Template))
	assert.False(t, templates[0].CreatedAt.IsZero())
}

func TestCreate_Overwrites(t *testing.T) {
	h, _ := setupServer(t)

	do(t, h, http.MethodPost, JobTemplatesPath, `{"name":"backup","template":{"v":1}}`)
	rec := do(t, h, http.MethodPost, JobTemplatesPath, `{"name":"backup","template":{"v":2}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	templates := decodeList(t, do(t, h, http.MethodGet, JobTemplatesPath, ""))
	require.Len(t, templates, 1)
	assert.JSONEq(t, `{"v":2}`, string(templates[0].Template))
}

func TestCreate_InvalidRequests(t *testing.T) {
	h, _ := setupServer(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty body", "", "request body is required"},
		{"malformed JSON", `{"name":`, "invalid JSON"},
		{"missing name", `{"template":{"a":1}}`, "name is required"},
		{"missing template", `{"name":"x"}`, "template is required"},
		{"template not an object", `{"name":"x","template":[1,2]}`, "template must be a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, JobTemplatesPath, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, domain.ErrCodeInvalidRequest, resp.Code)
			assert.Equal(t, ContextCreate, resp.Context)
			require.Len(t, resp.Errors, 1)
			assert.Contains(t, resp.Errors[0], tt.message)
		})
	}

	templates := decodeList(t, do(t, h, http.MethodGet, JobTemplatesPath, ""))
	assert.Empty(t, templates)
}

func TestUpdate_Existing(t *testing.T) {
	h, _ := setupServer(t)
	do(t, h, http.MethodPost, JobTemplatesPath, `{"name":"backup","template":{"v":1}}`)

	rec := do(t, h, http.MethodPatch, JobTemplatesPath, `{"name":"backup","template":{"v":2}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResult(t, rec).Result)
	templates := decodeList(t, do(t, h, http.MethodGet, JobTemplatesPath, ""))
	require.Len(t, templates, 1)
	assert.JSONEq(t, `{"v":2}`, string(templates[0].Template))
}

func TestUpdate_Missing(t *testing.T) {
	h, _ := setupServer(t)

	rec := do(t, h, http.MethodPatch, JobTemplatesPath, `{"name":"ghost","template":{"v":1}}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, domain.ErrCodeUnableToUpdate, resp.Code)
	assert.Equal(t, []string{domain.ErrNoSuchJobTemplate}, resp.Errors)
	assert.Equal(t, ContextUpdate, resp.Context)

	assert.Empty(t, decodeList(t, do(t, h, http.MethodGet, JobTemplatesPath, "")))
}

func TestUpdate_InvalidRequest(t *testing.T) {
	h, _ := setupServer(t)

	rec := do(t, h, http.MethodPatch, JobTemplatesPath, `{"name":"","template":{"v":1}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, domain.ErrCodeInvalidRequest, resp.Code)
	assert.Equal(t, ContextUpdate, resp.Context)
}

func TestDelete(t *testing.T) {
	h, _ := setupServer(t)
	do(t, h, http.MethodPost, JobTemplatesPath, `{"name":"backup","template":{"v":1}}`)

	rec := do(t, h, http.MethodDelete, JobTemplatesPath, `{"name":"backup"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResult(t, rec).Result)
	assert.Empty(t, decodeList(t, do(t, h, http.MethodGet, JobTemplatesPath, "")))

	// Deleting again succeeds and reports the name was absent.
	rec = do(t, h, http.MethodDelete, JobTemplatesPath, `{"name":"backup"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeResult(t, rec).Result)
}

func TestDelete_InvalidRequest(t *testing.T) {
	h, _ := setupServer(t)

	rec := do(t, h, http.MethodDelete, JobTemplatesPath, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, domain.ErrCodeInvalidRequest, resp.Code)
	assert.Equal(t, ContextDelete, resp.Context)
}

func TestUnsupportedMethods(t *testing.T) {
	h, _ := setupServer(t)

	for _, method := range []string{http.MethodPut, http.MethodOptions, "PURGE"} {
		t.Run(method, func(t *testing.T) {
			rec := do(t, h, method, JobTemplatesPath, `{"name":"x","template":{}}`)

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, "GET, POST, PATCH, DELETE", rec.Header().Get("Allow"))
			resp := decodeError(t, rec)
			assert.Equal(t, domain.ErrCodeUnsupportedMethod, resp.Code)
			assert.Equal(t, []string{"invalid method: " + method}, resp.Errors)
		})
	}

	// The server keeps serving afterwards.
	rec := do(t, h, http.MethodGet, JobTemplatesPath, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStoreFailures(t *testing.T) {
	h := setupFailingServer(t)

	tests := []struct {
		method  string
		body    string
		context string
	}{
		{http.MethodGet, "", ContextList},
		{http.MethodPost, `{"name":"a","template":{}}`, ContextCreate},
		{http.MethodPatch, `{"name":"a","template":{}}`, ContextUpdate},
		{http.MethodDelete, `{"name":"a"}`, ContextDelete},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := do(t, h, tt.method, JobTemplatesPath, tt.body)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, domain.ErrCodeUnableToStore, resp.Code)
			assert.Equal(t, tt.context, resp.Context)
			require.Len(t, resp.Errors, 1)
			assert.Contains(t, resp.Errors[0], "disk I/O error")
		})
	}
}

func TestRequestBodyTooLarge(t *testing.T) {
	h, _ := setupServer(t)

	big := `{"name":"big","template":{"blob":"` + strings.Repeat("x", maxRequestBytes) + `"}}`
	rec := do(t, h, http.MethodPost, JobTemplatesPath, big)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, domain.ErrCodeInvalidRequest, resp.Code)
	assert.Equal(t, []string{"request body too large"}, resp.Errors)
}

func TestCreateUpdateDeleteSequence(t *testing.T) {
	h, _ := setupServer(t)

	rec := do(t, h, http.MethodPost, JobTemplatesPath, `{"name":"repro","template":{"target":"x"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPatch, JobTemplatesPath, `{"name":"repro","template":{"target":"y"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	templates := decodeList(t, do(t, h, http.MethodGet, JobTemplatesPath, ""))
	require.Len(t, templates, 1)
	assert.JSONEq(t, `{"target":"y"}`, string(templates[0].Template))

	rec = do(t, h, http.MethodDelete, JobTemplatesPath, `{"name":"repro"}`)
	assert.True(t, decodeResult(t, rec).Result)
	rec = do(t, h, http.MethodDelete, JobTemplatesPath, `{"name":"repro"}`)
	assert.False(t, decodeResult(t, rec).Result)

	rec = do(t, h, http.MethodPatch, JobTemplatesPath, `{"name":"repro","template":{"target":"z"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ErrCodeUnableToUpdate, decodeError(t, rec).Code)
}
