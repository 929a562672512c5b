package stage

import (
	"context"

	"argus/internal/store"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *store.Segment) error
	Execute(context.Context, *store.Segment) error
	HealthCheck(context.Context) Health
}
