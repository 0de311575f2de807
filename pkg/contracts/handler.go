package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Worker is a background loop that runs until its context is canceled.
type Worker interface {
	Run(ctx context.Context)
}

type WorkerFunc func(ctx context.Context)

func (f WorkerFunc) Run(ctx context.Context) { f(ctx) }
