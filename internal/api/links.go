package api

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoviz/internal/humastar"
)

// related lists the relations advertised on each operation path as
// rel -> href.
var related = map[string]map[string]string{
	"/health": {
		"info":   "/api/v1/info",
		"state":  "/api/v1/state",
		"stats":  "/api/v1/stats",
		"layers": "/api/v1/layers",
	},
	"/api/v1/info":         {"health": "/health", "state": "/api/v1/state"},
	"/api/v1/state/{path}": {"collection": "/api/v1/state"},
	"/api/v1/state": {
		"reset":   "/api/v1/state/reset",
		"stats":   "/api/v1/stats",
		"layers":  "/api/v1/layers",
		"history": "/api/v1/history",
	},
	"/api/v1/stats":           {"data": "/api/v1/data/filtered", "layers": "/api/v1/layers", "tiles": "/api/v1/tiles/{z}/{x}/{y}"},
	"/api/v1/layers":          {"state": "/api/v1/state", "stats": "/api/v1/stats"},
	"/api/v1/data/regenerate": {"data": "/api/v1/data/filtered", "stats": "/api/v1/stats"},
	"/api/v1/history":         {"state": "/api/v1/state"},
	"/api/v1/tables":          {"query": "/api/v1/query"},
}

func linkValue(href, rel string) string {
	return fmt.Sprintf(`<%s>; rel="%s"`, href, rel)
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link
// headers: static relations per operation, a self link for templated paths,
// and the actions of bodies implementing humastar.Actor.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		rels := related[op.Path]
		for _, rel := range slices.Sorted(maps.Keys(rels)) {
			ctx.AppendHeader("Link", linkValue(rels[rel], rel))
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", linkValue(ctx.URL().Path, "self"))
		}

		if actor, ok := v.(humastar.Actor); ok {
			for _, a := range actor.Actions() {
				ctx.AppendHeader("Link", a.LinkHeader())
			}
		}

		return v, nil
	}
}
