package nnpcore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Frontend is one domain's half of the protocol (§4.4): request a model by
// name, wait for the backend to publish it, map the weights read-only, and
// iterate over them tensor by tensor.
type Frontend struct {
	domainID int
	store    Store
	grants   GrantFacility
	models   FrontendModelTable
	metrics  *Metrics
	log      zerolog.Logger

	model   FrontendModel
	mapped  []byte
	nextIdx int
}

// NewFrontend returns a Frontend ready to Init.
func NewFrontend(domainID int, store Store, grants GrantFacility, models FrontendModelTable, metrics *Metrics, log zerolog.Logger) *Frontend {
	return &Frontend{
		domainID: domainID,
		store:    store,
		grants:   grants,
		models:   models,
		metrics:  metrics,
		log:      log.With().Str("component", "frontend").Int("domain", domainID).Logger(),
	}
}

// Init is init_nnpfront: announce the requested model, wait for the
// backend to publish grant references, decode the directory, and map the
// weights read-only. ctx bounds the wait; a cancelled or expired ctx
// returns ctx.Err() rather than blocking forever (the original has no
// such bound and simply spins).
func (f *Frontend) Init(ctx context.Context, modelName string) error {
	model, err := f.models.Lookup(modelName)
	if err != nil {
		return err
	}

	backendDomain, err := ReadInteger(f.store, pathBackend)
	if err != nil {
		return fmt.Errorf("%w: read backend domain id: %v", ErrConfigurationFatal, err)
	}

	if err := f.store.Write(FrontendKey(f.domainID), modelName); err != nil {
		return fmt.Errorf("nnpcore: announce model request: %w", err)
	}

	statePath := StateKey(f.domainID)
	watch, err := f.store.WatchPath(ctx, statePath)
	if err != nil {
		return fmt.Errorf("nnpcore: watch backend state: %w", err)
	}

	f.log.Info().Str("model", modelName).Msg("waiting for backend to publish references")
	start := time.Now()
	for {
		if state, err := ReadInteger(f.store, statePath); err == nil && state == 1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-watch:
			if !ok {
				return fmt.Errorf("nnpcore: store watch closed before backend published")
			}
		}
	}

	totalPages := DivideRoundUp(model.TotalBytes(), PageSize)

	rawDirRefs, err := f.store.Read(GrantRefRefKey(f.domainID))
	if err != nil {
		return fmt.Errorf("nnpcore: read grant-ref-ref: %w", err)
	}
	directoryRefs, err := ParseGrantRefRef(rawDirRefs)
	if err != nil {
		return err
	}
	if want := dirPagesFor(totalPages); len(directoryRefs) != want {
		return fmt.Errorf("%w: got %d directory refs, expected %d", ErrProtocolDesync, len(directoryRefs), want)
	}

	dataGrants, err := DecodeGrantDirectory(f.grants, backendDomain, directoryRefs, totalPages)
	if err != nil {
		return err
	}

	mapped, err := f.grants.MapBatch(backendDomain, dataGrants)
	if err != nil {
		return fmt.Errorf("%w: map data pages: %v", ErrMapFailed, err)
	}

	f.model = model
	f.mapped = mapped
	f.nextIdx = 0

	f.log.Info().Str("model", modelName).Dur("elapsed", time.Since(start)).Msg("initialization completed successfully")
	if f.metrics != nil {
		f.metrics.ObserveResolve(time.Since(start))
	}
	return nil
}

// Shutdown is shutdown_nnpfront: unmap the weights and tell the backend
// this frontend is done.
func (f *Frontend) Shutdown() error {
	if f.mapped != nil {
		if err := f.grants.Unmap(f.mapped); err != nil {
			return fmt.Errorf("nnpcore: unmap weights: %w", err)
		}
		f.mapped = nil
	}
	return f.store.Write(FrontendKey(f.domainID), closeToken)
}

// NextParam is resolve_param_cb generalized into a normal Go iterator:
// each call returns the next tensor's name and decoded weights, in the
// order the model table lists them, until the model is exhausted.
func (f *Frontend) NextParam() (FrontendTensor, []float32, bool) {
	if f.nextIdx >= len(f.model.Tensors) {
		return FrontendTensor{}, nil, false
	}

	tensor := f.model.Tensors[f.nextIdx]
	offset := 0
	for i := 0; i < f.nextIdx; i++ {
		offset += f.model.Tensors[i].Count * 4
	}

	values := make([]float32, tensor.Count)
	for i := range values {
		values[i] = getFloat32(f.mapped[offset+i*4:])
	}

	f.nextIdx++
	return tensor, values, true
}
