package datamesh

import (
	"strings"

	"github.com/corebridge/corebridge/pkg/logging"
	"github.com/corebridge/corebridge/pkg/models"
)

// pkValues flattens a decoded JSON value into PK strings. Arrays yield one
// value per element; scalars yield a single value; nil and empty strings
// yield none.
func pkValues(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		pks := make([]string, 0, len(val))
		for _, item := range val {
			if pk := models.StringifyPK(item); pk != "" {
				pks = append(pks, pk)
			}
		}
		return pks
	default:
		pk := models.StringifyPK(val)
		if pk == "" {
			return nil
		}
		return []string{pk}
	}
}

// firstPK returns the single PK of a field, or the first element when the
// field is an array.
func firstPK(v any) string {
	pks := pkValues(v)
	if len(pks) == 0 {
		return ""
	}
	return pks[0]
}

// pkPairs pairs origin and related PKs without Cartesian expansion: a scalar
// side repeats against each element of a list side; two lists pair up
// index-wise, the longer tail dropped.
func pkPairs(origins, relateds []string) [][2]string {
	if len(origins) == 0 || len(relateds) == 0 {
		return nil
	}

	var pairs [][2]string
	switch {
	case len(origins) == 1:
		for _, r := range relateds {
			pairs = append(pairs, [2]string{origins[0], r})
		}
	case len(relateds) == 1:
		for _, o := range origins {
			pairs = append(pairs, [2]string{o, relateds[0]})
		}
	default:
		n := len(origins)
		if len(relateds) < n {
			n = len(relateds)
		}
		for i := 0; i < n; i++ {
			pairs = append(pairs, [2]string{origins[i], relateds[i]})
		}
	}
	return pairs
}

// subObjects extracts the list of relationship sub-objects from a body field.
// Non-list and non-object entries are skipped.
func subObjects(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	objects := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			objects = append(objects, obj)
		}
	}
	return objects
}

// stripControlFields copies a sub-object without the orchestration control
// fields, so backends never see them.
func stripControlFields(instance map[string]any) map[string]any {
	payload := make(map[string]any, len(instance))
	for k, v := range instance {
		if k == previousPKField || k == joinControlField {
			continue
		}
		payload[k] = v
	}
	return payload
}

// pkFromPath extracts the trailing PK segment of a detail path:
// "/products/u1/" yields "u1", "/products/" yields "".
func pkFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[len(segments)-1]
}

// truncateBody bounds a backend error body before it is embedded in a mesh
// error message.
func truncateBody(body []byte) string {
	return logging.TruncateString(string(body), 256)
}
