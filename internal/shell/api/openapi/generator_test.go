package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID      string          `json:"-"`
	Label   string          `json:"label"`
	Body    json.RawMessage `json:"body"`
	Count   int64           `json:"count,omitempty"`
	Tags    []string        `json:"tags"`
	Created time.Time       `json:"created_at"`
	hidden  string
}

type widgetCommand struct {
	Label string `json:"label"`
}

type widgetResult struct {
	Result bool `json:"result"`
}

func TestNewGenerator_Defaults(t *testing.T) {
	spec := NewGenerator().Generate()

	assert.Equal(t, "Job Templates API", spec.Info.Title)
	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "/", spec.Servers[0].URL)
	assert.Contains(t, spec.Components.Schemas, "ErrorResponse")
	assert.Contains(t, spec.Components.Schemas, "Error")
}

func TestGenerate_Resource(t *testing.T) {
	g := NewGenerator(WithTitle("Test"), WithVersion("2.0.0"), WithServer("http://example"))
	g.RegisterResource(ResourceInfo{
		Name:           "widgets",
		Model:          widget{},
		SupportsFind:   true,
		SupportsCreate: true,
	})

	spec := g.Generate()

	assert.Equal(t, "2.0.0", spec.Info.Version)
	collection := spec.Paths.Find("/api/v1/widgets")
	require.NotNil(t, collection)
	assert.NotNil(t, collection.Get)
	assert.NotNil(t, collection.Post)

	item := spec.Paths.Find("/api/v1/widgets/{id}")
	require.NotNil(t, item)
	assert.NotNil(t, item.Get)
	assert.Nil(t, item.Patch)
	assert.Nil(t, item.Delete)

	attrs := spec.Components.Schemas["WidgetResourceAttributes"].Value
	require.NotNil(t, attrs)
	assert.NotContains(t, attrs.Properties, "ID")
	assert.NotContains(t, attrs.Properties, "hidden")
	assert.True(t, attrs.Properties["body"].Value.Type.Is("object"))
	assert.Equal(t, "int64", attrs.Properties["count"].Value.Format)
	assert.True(t, attrs.Properties["tags"].Value.Type.Is("array"))
	assert.Equal(t, "date-time", attrs.Properties["created_at"].Value.Format)
}

func TestGenerate_Route(t *testing.T) {
	g := NewGenerator()
	g.RegisterRoute(RouteInfo{
		Path: "/api/widgets",
		Tag:  "Widgets",
		Operations: []RouteOperation{
			{Method: http.MethodGet, OperationID: "listWidgets", Response: []widget{}},
			{Method: http.MethodPost, OperationID: "createWidget", Request: widgetCommand{}, Response: widgetResult{}},
		},
	})

	spec := g.Generate()

	item := spec.Paths.Find("/api/widgets")
	require.NotNil(t, item)
	require.NotNil(t, item.Get)
	require.NotNil(t, item.Post)
	assert.Nil(t, item.Get.RequestBody)
	assert.NotNil(t, item.Post.RequestBody)
	assert.Equal(t, "listWidgets", item.Get.OperationID)

	assert.Contains(t, spec.Components.Schemas, "widget")
	assert.Contains(t, spec.Components.Schemas, "widgetCommand")
	assert.Contains(t, spec.Components.Schemas, "widgetResult")
}

func TestGenerate_CachedUntilRegistration(t *testing.T) {
	g := NewGenerator()
	first := g.Generate()
	assert.Same(t, first, g.Generate())

	g.RegisterResource(ResourceInfo{Name: "widgets", Model: widget{}, SupportsFind: true})
	assert.NotSame(t, first, g.Generate())
}

func TestHandler(t *testing.T) {
	g := NewGenerator()
	rec := httptest.NewRecorder()

	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
}

func TestNameHelpers(t *testing.T) {
	assert.Equal(t, "JobTemplates", pascalCase("job_templates"))
	assert.Equal(t, "job_template", singularize("job_templates"))
	assert.Equal(t, "category", singularize("categories"))
	assert.Equal(t, "address", singularize("addresses"))
	assert.Equal(t, "widget", typeName(&widget{}))
}
