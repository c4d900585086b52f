package module

import (
	"fmt"

	"mural/internal/modkit/swaggerkit"
)

// specLimits stamps the configured board limits into the served OpenAPI doc
// so the docs reflect the running deployment, not the compiled-in defaults
func specLimits(o Options) swaggerkit.SpecMutator {
	return func(spec map[string]any) {
		if rb := specNode(spec, "paths", "/board/notes", "post", "requestBody"); rb != nil {
			rb["description"] = fmt.Sprintf("multipart upload, audio part capped at %d bytes", o.MaxPayloadBytes)
		}
		if get := specNode(spec, "paths", "/board/notes", "get"); get != nil {
			get["description"] = fmt.Sprintf("at most %d notes, each expiring %s after creation", o.MaxActive, o.TTL)
		}
	}
}

func specNode(spec map[string]any, path ...string) map[string]any {
	cur := spec
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}
