// Package specs fetches, parses, and caches the OpenAPI documents that
// describe each logic module's HTTP surface.
package specs

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed OpenAPI 2/3 specification reduced to what the gateway
// needs: the operation set keyed by (path, method) and the base path prefix.
// Resource PK fields come from the registry, not from the spec.
type Document struct {
	// Title and Version identify the document for diagnostics.
	Title   string
	Version string
	// BasePath is prepended to operation paths when building backend URLs
	// (OpenAPI 2 basePath; empty for OpenAPI 3 documents).
	BasePath string

	operations map[operationKey]struct{}
}

type operationKey struct {
	path   string
	method string
}

// rawDocument is the subset of an OpenAPI document the gateway reads.
type rawDocument struct {
	Swagger  string                    `json:"swagger" yaml:"swagger"`
	OpenAPI  string                    `json:"openapi" yaml:"openapi"`
	BasePath string                    `json:"basePath" yaml:"basePath"`
	Info     rawInfo                   `json:"info" yaml:"info"`
	Paths    map[string]map[string]any `json:"paths" yaml:"paths"`
}

type rawInfo struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

var httpMethods = map[string]struct{}{
	"get": {}, "post": {}, "put": {}, "patch": {}, "delete": {}, "head": {}, "options": {},
}

// Parse decodes an OpenAPI 2 or 3 document from JSON or YAML bytes.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument

	if err := json.Unmarshal(data, &raw); err != nil {
		if yerr := yaml.Unmarshal(data, &raw); yerr != nil {
			return nil, fmt.Errorf("document is neither valid JSON nor YAML: %w", err)
		}
	}

	if raw.Swagger == "" && raw.OpenAPI == "" {
		return nil, fmt.Errorf("document is missing swagger/openapi version field")
	}
	if len(raw.Paths) == 0 {
		return nil, fmt.Errorf("document declares no paths")
	}

	doc := &Document{
		Title:      raw.Info.Title,
		Version:    raw.Info.Version,
		BasePath:   strings.TrimSuffix(raw.BasePath, "/"),
		operations: make(map[operationKey]struct{}),
	}

	for path, item := range raw.Paths {
		for method := range item {
			method = strings.ToLower(method)
			if _, ok := httpMethods[method]; !ok {
				continue // parameters, $ref, extensions
			}
			doc.operations[operationKey{path: normalizePath(path), method: method}] = struct{}{}
		}
	}

	if len(doc.operations) == 0 {
		return nil, fmt.Errorf("document declares no operations")
	}

	return doc, nil
}

// HasOperation reports whether the spec declares an operation for the path
// and method. Templated path parameters ({id} and friends) match any concrete
// segment, so "/products/u1/" resolves against "/products/{product_uuid}/".
func (d *Document) HasOperation(path, method string) bool {
	method = strings.ToLower(method)
	path = normalizePath(path)

	if _, ok := d.operations[operationKey{path: path, method: method}]; ok {
		return true
	}

	want := strings.Split(path, "/")
	for op := range d.operations {
		if op.method != method {
			continue
		}
		if pathTemplateMatches(strings.Split(op.path, "/"), want) {
			return true
		}
	}
	return false
}

// Operations returns the number of declared operations.
func (d *Document) Operations() int {
	return len(d.operations)
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(path, "/")
}

func pathTemplateMatches(tmpl, concrete []string) bool {
	if len(tmpl) != len(concrete) {
		return false
	}
	for i, seg := range tmpl {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if seg != concrete[i] {
			return false
		}
	}
	return true
}
