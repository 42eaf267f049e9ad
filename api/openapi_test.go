package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/GideonLangenhoven/CKACashups/api"
)

// TestOpenAPI_documentsEveryRoute keeps the served document in step with the router.
func TestOpenAPI_documentsEveryRoute(t *testing.T) {
	var doc struct {
		OpenAPI string                    `yaml:"openapi"`
		Paths   map[string]map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(api.OpenAPI, &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)

	routes := map[string][]string{
		"/healthz":                       {"get"},
		"/readyz":                        {"get"},
		"/api/v1/guides":                 {"get", "post"},
		"/api/v1/guides/{id}":            {"put", "delete"},
		"/api/v1/guides/{id}/deactivate": {"post"},
		"/api/v1/admin/clear-email":      {"post"},
		"/api/v1/trips":                  {"get", "post"},
		"/api/v1/trips/{id}":             {"get", "delete"},
		"/api/v1/trips/{id}/status":      {"post"},
		"/api/v1/reports/{kind}":         {"get"},
		"/api/v1/reports/{kind}/email":   {"post"},
		"/api/v1/earnings/overview":      {"get"},
		"/api/v1/earnings/me":            {"get"},
		"/api/v1/earnings/invoice":       {"post"},
		"/api/v1/earnings/dispute":       {"post"},
		"/api/v1/export":                 {"get"},
	}
	for path, methods := range routes {
		ops, ok := doc.Paths[path]
		if !assert.True(t, ok, "missing path %s", path) {
			continue
		}
		for _, m := range methods {
			assert.Contains(t, ops, m, "missing %s %s", m, path)
		}
	}
}
