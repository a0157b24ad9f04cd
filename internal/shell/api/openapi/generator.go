// Package openapi generates the OpenAPI 3.0 document for the job template
// registry by reflecting on the registered models.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces an OpenAPI 3.0 document from registered resources and routes.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	resources   []ResourceInfo
	routes      []RouteInfo
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// ResourceInfo describes a JSON:API resource served under /api/v1.
type ResourceInfo struct {
	Name           string      // resource type name, e.g. "job_templates"
	Model          interface{} // attributes struct
	SupportsFind   bool        // GET /{type} and GET /{type}/{id}
	SupportsCreate bool        // POST /{type}
	SupportsUpdate bool        // PATCH /{type}/{id}
	SupportsDelete bool        // DELETE /{type}/{id}
}

// RouteInfo describes a plain JSON route where each verb takes a command body
// and returns a result.
type RouteInfo struct {
	Path       string
	Tag        string
	Operations []RouteOperation
}

// RouteOperation is one verb on a RouteInfo path.
type RouteOperation struct {
	Method      string
	OperationID string
	Summary     string
	Request     interface{} // nil when the verb takes no body
	Response    interface{}
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.version = version
	}
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.description = description
	}
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) {
		g.servers = append(g.servers, url)
	}
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "Job Templates API",
		version:     "1.0.0",
		description: "Registry of named job templates",
	}

	for _, opt := range opts {
		opt(g)
	}
	if len(g.servers) == 0 {
		g.servers = []string{"/"}
	}

	return g
}

// RegisterResource adds a JSON:API resource to the document.
func (g *Generator) RegisterResource(info ResourceInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resources = append(g.resources, info)
	g.cachedSpec = nil
}

// RegisterRoute adds a plain JSON route to the document.
func (g *Generator) RegisterRoute(info RouteInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, info)
	g.cachedSpec = nil
}

// Generate produces the OpenAPI document. The result is cached until the
// next registration.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Servers: make(openapi3.Servers, 0, len(g.servers)),
		Paths:   &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}

	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	g.addCommonSchemas(spec)

	for _, route := range g.routes {
		g.addRouteToSpec(spec, route)
	}
	for _, res := range g.resources {
		g.addResourceToSpec(spec, res)
	}

	g.cachedSpec = spec
	return spec
}

// Handler returns an HTTP handler that serves the OpenAPI document.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Schema Generation
// =============================================================================

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func schemaRef(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name}
}

// addCommonSchemas adds the error shapes shared by all operations.
func (g *Generator) addCommonSchemas(spec *openapi3.T) {
	// Error body of the plain JSON routes.
	spec.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"code": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
						Enum: []interface{}{
							"INVALID_REQUEST",
							"UNABLE_TO_UPDATE",
							"UNSUPPORTED_METHOD",
							"UNABLE_TO_STORE",
							"INTERNAL_ERROR",
						},
					},
				},
				"errors": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: stringSchema(),
					},
				},
				"context": stringSchema(),
			},
			Required: []string{"code", "errors"},
		},
	}

	// JSON:API error document.
	spec.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"errors": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"array"},
						Items: &openapi3.SchemaRef{
							Value: &openapi3.Schema{
								Type: &openapi3.Types{"object"},
								Properties: openapi3.Schemas{
									"status": stringSchema(),
									"code":   stringSchema(),
									"title":  stringSchema(),
									"detail": stringSchema(),
								},
							},
						},
					},
				},
			},
		},
	}
}

// addRouteToSpec adds a plain JSON route with one operation per verb.
func (g *Generator) addRouteToSpec(spec *openapi3.T, route RouteInfo) {
	item := &openapi3.PathItem{}

	for _, op := range route.Operations {
		operation := &openapi3.Operation{
			OperationID: op.OperationID,
			Summary:     op.Summary,
			Tags:        []string{route.Tag},
			Responses:   openapi3.NewResponses(),
		}

		if op.Request != nil {
			reqName := typeName(op.Request)
			spec.Components.Schemas[reqName] = g.extractSchema(op.Request)
			operation.RequestBody = &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().
					WithRequired(true).
					WithJSONSchemaRef(schemaRef(reqName)),
			}
		}

		ok := openapi3.NewResponse().WithDescription("OK")
		if op.Response != nil {
			ok = ok.WithJSONSchemaRef(g.responseSchema(spec, op.Response))
		}
		operation.Responses.Set("200", &openapi3.ResponseRef{Value: ok})
		operation.Responses.Set("default", &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription("Error").
				WithJSONSchemaRef(schemaRef("ErrorResponse")),
		})

		item.SetOperation(op.Method, operation)
	}

	spec.Paths.Set(route.Path, item)
}

// responseSchema registers the response model and returns a reference to it,
// wrapping slices in an array schema.
func (g *Generator) responseSchema(spec *openapi3.T, model interface{}) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Slice {
		elem := reflect.New(t.Elem()).Elem().Interface()
		name := typeName(elem)
		spec.Components.Schemas[name] = g.extractSchema(elem)
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: schemaRef(name),
			},
		}
	}
	name := typeName(model)
	spec.Components.Schemas[name] = g.extractSchema(model)
	return schemaRef(name)
}

// addResourceToSpec adds paths and schemas for a JSON:API resource.
func (g *Generator) addResourceToSpec(spec *openapi3.T, res ResourceInfo) {
	basePath := "/api/v1/" + res.Name
	schemaName := pascalCase(singularize(res.Name)) + "Resource"

	spec.Components.Schemas[schemaName+"Attributes"] = g.extractSchema(res.Model)

	spec.Components.Schemas[schemaName] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"type": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
						Enum: []interface{}{res.Name},
					},
				},
				"id":         stringSchema(),
				"attributes": schemaRef(schemaName + "Attributes"),
			},
			Required: []string{"type", "id"},
		},
	}

	spec.Components.Schemas[schemaName+"Document"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"data": schemaRef(schemaName),
			},
		},
	}

	spec.Components.Schemas[schemaName+"ListDocument"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"data": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: schemaRef(schemaName),
					},
				},
				"meta": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"total": &openapi3.SchemaRef{
								Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}},
							},
						},
					},
				},
			},
		},
	}

	tag := pascalCase(res.Name)

	collection := &openapi3.PathItem{}
	if res.SupportsFind {
		collection.Get = jsonAPIOperation("list"+tag, "List "+res.Name, tag, "", schemaName+"ListDocument")
	}
	if res.SupportsCreate {
		collection.Post = jsonAPIOperation("create"+schemaName, "Create a "+singularize(res.Name), tag, schemaName+"Document", schemaName+"Document")
	}
	spec.Paths.Set(basePath, collection)

	item := &openapi3.PathItem{
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{
				Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()),
			},
		},
	}
	if res.SupportsFind {
		item.Get = jsonAPIOperation("get"+schemaName, "Get a "+singularize(res.Name), tag, "", schemaName+"Document")
	}
	if res.SupportsUpdate {
		item.Patch = jsonAPIOperation("update"+schemaName, "Update a "+singularize(res.Name), tag, schemaName+"Document", schemaName+"Document")
	}
	if res.SupportsDelete {
		item.Delete = jsonAPIOperation("delete"+schemaName, "Delete a "+singularize(res.Name), tag, "", "")
	}
	spec.Paths.Set(basePath+"/{id}", item)
}

func jsonAPIOperation(id, summary, tag, request, response string) *openapi3.Operation {
	const contentType = "application/vnd.api+json"

	op := &openapi3.Operation{
		OperationID: id,
		Summary:     summary,
		Tags:        []string{tag},
		Responses:   openapi3.NewResponses(),
	}
	if request != "" {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithSchemaRef(schemaRef(request), []string{contentType}),
		}
	}
	ok := openapi3.NewResponse().WithDescription("OK")
	if response != "" {
		ok = ok.WithContent(openapi3.NewContentWithSchemaRef(schemaRef(response), []string{contentType}))
	}
	op.Responses.Set("200", &openapi3.ResponseRef{Value: ok})
	op.Responses.Set("default", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription("Error").
			WithContent(openapi3.NewContentWithSchemaRef(schemaRef("Error"), []string{contentType})),
	})
	return op
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	rawMessageType = reflect.TypeOf(json.RawMessage{})
)

// extractSchema extracts an OpenAPI schema from a Go struct.
func (g *Generator) extractSchema(model interface{}) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		if jsonTag != "" {
			if parts := strings.Split(jsonTag, ","); parts[0] != "" {
				name = parts[0]
			}
		}

		if propSchema := g.goTypeToSchema(field.Type); propSchema != nil {
			schema.Properties[name] = propSchema
		}
	}

	return &openapi3.SchemaRef{Value: schema}
}

// goTypeToSchema converts a Go type to an OpenAPI schema.
func (g *Generator) goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	// Template bodies are free-form JSON objects.
	if t == rawMessageType {
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Has: boolPtr(true)},
			},
		}
	}

	switch t.Kind() {
	case reflect.String:
		return stringSchema()

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}

	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: g.goTypeToSchema(t.Elem()),
			},
		}

	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: g.goTypeToSchema(t.Elem())},
			},
		}

	case reflect.Ptr:
		schema := g.goTypeToSchema(t.Elem())
		if schema != nil && schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema

	case reflect.Struct:
		if t == timeType {
			return &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"},
			}
		}
		return g.extractSchema(reflect.New(t).Interface())

	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func boolPtr(b bool) *bool { return &b }

// typeName returns the Go type name of v, dereferencing pointers.
func typeName(v interface{}) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// pascalCase turns a snake_case name into PascalCase.
func pascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "")
}

// singularize performs basic singularization.
func singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies"):
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "sses"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s"):
		return s[:len(s)-1]
	}
	return s
}
