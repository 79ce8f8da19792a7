package engine

import (
	"github.com/rs/zerolog"
)

// watch logs where each watched name stands after a stage.
func (e *Engine) watch(logger *zerolog.Logger, stage Stage, ws *WorkingSet) {
	for _, name := range e.opts.Watch {
		event := logger.Info().Str("watch", name).Str("after", stage.String())

		shape, registry := -1, -1
		for j := range ws.Geometry {
			if ws.Geometry[j].Name == name {
				shape = j
				break
			}
		}
		for i := range ws.Canonical {
			if ws.Canonical[i].Name == name {
				registry = i
				break
			}
		}

		if shape < 0 {
			event = event.Str("shape", "not found")
		} else {
			event = event.Stringer("shape_code", ws.Geometry[shape].WorkingCode).
				Bool("shape_matched", ws.GeometryMatched(shape))
		}
		if registry < 0 {
			event = event.Str("registry", "not found")
		} else {
			event = event.Stringer("registry_code", ws.Canonical[registry].Code).
				Bool("registry_matched", ws.CanonicalMatched(registry))
		}
		event.Msg("watched record")
	}
}
