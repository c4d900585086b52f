package swaggerkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// resetMutators isolates the process-wide registry per test
func resetMutators(t *testing.T) {
	t.Helper()
	saved := mutators
	mutators = nil
	t.Cleanup(func() { mutators = saved })
}

func serveSpec(t *testing.T) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	serveDocJSON()(rec, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("doc.json returned %d", rec.Code)
	}
	var spec map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatalf("served spec is not JSON: %v", err)
	}
	return spec
}

func TestDocJSONAppliesRegisteredMutators(t *testing.T) {
	resetMutators(t)

	Register(nil) // ignored
	Register(func(spec map[string]any) {
		if info, ok := spec["info"].(map[string]any); ok {
			info["x-flavor"] = "board"
		}
	})

	spec := serveSpec(t)
	info, ok := spec["info"].(map[string]any)
	if !ok {
		t.Fatalf("spec has no info object: %v", spec)
	}
	if info["x-flavor"] != "board" {
		t.Fatalf("mutator did not run, info = %v", info)
	}
}

func TestDocJSONRejectsInvalidSpec(t *testing.T) {
	resetMutators(t)
	saved := docReader
	docReader = func() string { return "{not json" }
	t.Cleanup(func() { docReader = saved })

	rec := httptest.NewRecorder()
	serveDocJSON()(rec, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("broken spec must 500, got %d", rec.Code)
	}
}
