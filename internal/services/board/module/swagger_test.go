package module

import (
	"strings"
	"testing"
	"time"
)

func notesSpec() map[string]any {
	return map[string]any{
		"paths": map[string]any{
			"/board/notes": map[string]any{
				"get": map[string]any{"summary": "List active notes newest first"},
				"post": map[string]any{
					"requestBody": map[string]any{"content": map[string]any{}},
				},
			},
		},
	}
}

func TestSpecLimitsStampsConfiguredValues(t *testing.T) {
	spec := notesSpec()
	specLimits(Options{
		TTL:             10 * time.Minute,
		MaxActive:       20,
		MaxPayloadBytes: 1 << 20,
	})(spec)

	rb := specNode(spec, "paths", "/board/notes", "post", "requestBody")
	if rb == nil {
		t.Fatal("requestBody node lost")
	}
	desc, _ := rb["description"].(string)
	if !strings.Contains(desc, "1048576 bytes") {
		t.Fatalf("upload cap missing from %q", desc)
	}

	get := specNode(spec, "paths", "/board/notes", "get")
	if get == nil {
		t.Fatal("get node lost")
	}
	desc, _ = get["description"].(string)
	if !strings.Contains(desc, "at most 20 notes") || !strings.Contains(desc, "10m0s") {
		t.Fatalf("limits missing from %q", desc)
	}
}

func TestSpecLimitsToleratesForeignSpecShape(t *testing.T) {
	// a doc without the board paths must pass through untouched
	spec := map[string]any{"paths": map[string]any{}}
	specLimits(Options{TTL: time.Minute, MaxActive: 5, MaxPayloadBytes: 64})(spec)

	if specNode(spec, "paths", "/board/notes") != nil {
		t.Fatal("mutator must not invent nodes")
	}
	if specNode(spec, "paths", "/board/notes", "get") != nil {
		t.Fatal("missing path must read as nil")
	}
}
