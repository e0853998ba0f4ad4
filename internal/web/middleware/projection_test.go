package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fielddoc/fielddoc/internal/metrics"
	"github.com/fielddoc/fielddoc/internal/projection"
	"github.com/fielddoc/fielddoc/internal/resolve"
)

func jsonHandler(status int, contentType, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", "999")
		w.Header().Set("X-Custom", "kept")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestProjection_Filters(t *testing.T) {
	collector := metrics.NewCollector("test", nil)
	mw := Projection(ProjectionConfig{Metrics: collector})
	h := mw(jsonHandler(http.StatusOK, "application/json; charset=utf-8", `{"id":1,"profile":{"name":"x","age":2}}`))

	rec := serve(h, "/docs?fields=profile.name")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"profile":{"name":"x"}}`, rec.Body.String())
	assert.Equal(t, "kept", rec.Header().Get("X-Custom"))
	assert.Empty(t, rec.Header().Get("Content-Length"))

	n, err := testutil.GatherAndCount(collector.Registry(), "test_projection_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProjection_SkipsWithoutSelector(t *testing.T) {
	h := Projection(ProjectionConfig{})(jsonHandler(http.StatusOK, "application/json", `{"id":1,"name":"x"}`))

	for _, target := range []string{"/docs", "/docs?fields=*", "/docs?fields="} {
		rec := serve(h, target)
		assert.Equal(t, `{"id":1,"name":"x"}`, rec.Body.String(), target)
		assert.Equal(t, "999", rec.Header().Get("Content-Length"), target)
	}
}

func TestProjection_Passthrough(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
	}{
		{name: "error status", status: http.StatusNotFound, contentType: "application/json", body: `{"error":"x","message":"m"}`},
		{name: "not json", status: http.StatusOK, contentType: "text/html", body: `<p>id</p>`},
		{name: "malformed json", status: http.StatusOK, contentType: "application/json", body: `{"id":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Projection(ProjectionConfig{})(jsonHandler(tt.status, tt.contentType, tt.body))
			rec := serve(h, "/docs?fields=id")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestProjection_Rewraps(t *testing.T) {
	h := Projection(ProjectionConfig{
		Projector: projection.New(projection.Config{WrapperKey: "data"}),
	})(jsonHandler(http.StatusOK, "application/json", `{"data":[{"id":1,"name":"a"},{"id":2,"name":"b"}]}`))

	rec := serve(h, "/docs?fields=name")
	assert.Equal(t, `{"data":[{"name":"a"},{"name":"b"}]}`, rec.Body.String())
}

func TestProjection_KeepsMarkupUnescaped(t *testing.T) {
	body := `{"id":1,"comment":"Allowed values:<br>- <code>a</code> & more"}`
	h := Projection(ProjectionConfig{})(jsonHandler(http.StatusOK, "application/json", body))

	assert.Equal(t, `{"comment":"Allowed values:<br>- <code>a</code> & more"}`, serve(h, "/docs?fields=comment").Body.String())
	assert.Equal(t, body, serve(h, "/docs").Body.String())
}

func TestProjection_CustomSelectorName(t *testing.T) {
	h := Projection(ProjectionConfig{Naming: resolve.Naming{SelectorField: "only"}})(
		jsonHandler(http.StatusOK, "application/json", `{"id":1,"name":"x"}`),
	)

	assert.Equal(t, `{"id":1}`, serve(h, "/docs?only=id").Body.String())
	assert.Equal(t, `{"id":1,"name":"x"}`, serve(h, "/docs?fields=id").Body.String())
}

func TestProjection_PaginationEnvelope(t *testing.T) {
	h := Projection(ProjectionConfig{})(jsonHandler(http.StatusOK, "application/json",
		`{"links":{"next":null},"meta":{"total":1},"data":[{"id":1,"extra":"x"}]}`))

	rec := serve(h, "/docs?fields=id")
	assert.Equal(t, `{"links":{"next":null},"meta":{"total":1},"data":[{"id":1}]}`, rec.Body.String())
}
