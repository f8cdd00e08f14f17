package nnpcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Backend runs the NEW_FRONTEND / CLOSE_FRONTEND event loop (§4.3): for
// each frontend that shows up asking for a model, it publishes that
// model's weights as a two-level grant directory and records the session;
// for each frontend that closes, it revokes every grant the session held
// and evicts it from the registry.
type Backend struct {
	domainID int
	store    Store
	grants   GrantFacility
	pages    PageAllocator
	models   BackendModelTable
	registry *SessionRegistry
	log      zerolog.Logger
	metrics  *Metrics
	audit    AuditSink

	weightsMu sync.Mutex
	weights   map[string][]byte // model name -> cached, page-aligned weight buffer
}

// AuditSink receives an observational record of every session lifecycle
// transition; the gorm-backed implementation lives in nnpcore/db.
type AuditSink interface {
	RecordPublish(feID int, model string, totalPages int)
	RecordClose(feID int, model string)
}

// NopAuditSink discards every record; used where persistence isn't wired up.
type NopAuditSink struct{}

func (NopAuditSink) RecordPublish(int, string, int) {}
func (NopAuditSink) RecordClose(int, string)         {}

// NewBackend returns a Backend ready to Run.
func NewBackend(domainID int, store Store, grants GrantFacility, alloc PageAllocator, models BackendModelTable, registry *SessionRegistry, metrics *Metrics, audit AuditSink, log zerolog.Logger) *Backend {
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &Backend{
		domainID: domainID,
		store:    store,
		grants:   grants,
		pages:    alloc,
		models:   models,
		registry: registry,
		log:      log.With().Str("component", "backend").Int("domain", domainID).Logger(),
		metrics:  metrics,
		audit:    audit,
		weights:  map[string][]byte{},
	}
}

// Announce writes this backend's domain id to the store, the Go analogue
// of init_nnpback's xenbus_write("/local/domain/backend", ...).
func (b *Backend) Announce() error {
	return b.store.Write(pathBackend, fmt.Sprintf("%d", b.domainID))
}

// Run subscribes to the frontend subtree and handles events until ctx is
// cancelled.
func (b *Backend) Run(ctx context.Context) error {
	events, err := b.store.WatchSubtree(ctx, pathFrontendDir)
	if err != nil {
		return fmt.Errorf("nnpcore: backend watch: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-events:
			if !ok {
				return nil
			}
			b.handleEvent(path)
		}
	}
}

func (b *Backend) handleEvent(path string) {
	kind, feID, model := ClassifyEvent(b.store, path)
	switch kind {
	case NewFrontendEvent:
		if err := b.publish(feID, model); err != nil {
			b.log.Error().Err(err).Int("frontend", feID).Str("model", model).Msg("publish failed")
		}
	case CloseFrontendEvent:
		b.closeSession(feID)
	case IgnoreEvent:
	}
}

// publish is handle_backend_event's EV_NEWFE branch: resolve the model,
// grant its weight pages to feID, encode the two-level grant directory,
// and publish grant-ref-ref and state.
func (b *Backend) publish(feID int, modelName string) error {
	start := time.Now()

	if err := b.store.Write(BackendSessionKey(feID), fmt.Sprintf("%d", b.domainID)); err != nil {
		return fmt.Errorf("write frontend domain record: %w", err)
	}

	model, err := b.models.Lookup(modelName)
	if err != nil {
		return err
	}

	weights, err := b.weightBufferFor(model)
	if err != nil {
		return err
	}

	totalPages := DivideRoundUp(model.TotalBytes(), PageSize)

	dataGrants := make([]GrantRef, totalPages)
	for i := 0; i < totalPages; i++ {
		page := weights[i*PageSize : (i+1)*PageSize]
		ref, err := b.grants.GrantRead(feID, page)
		if err != nil {
			return fmt.Errorf("%w: grant data page %d: %v", ErrMapFailed, i, err)
		}
		dataGrants[i] = ref
	}

	dirPageCount := dirPagesFor(totalPages)
	if dirPageCount > MaxDirPages {
		return fmt.Errorf("%w: model %s needs %d directory pages", ErrTooManyDirPages, modelName, dirPageCount)
	}
	dirOrder := CeilLog2(RoundUpPowerOfTwo(uint32(dirPageCount)))
	dirBuf, err := b.pages.AllocPages(dirOrder)
	if err != nil {
		return fmt.Errorf("%w: allocate directory pages: %v", ErrMapFailed, err)
	}
	dirPages := make([][]byte, dirPageCount)
	for i := range dirPages {
		dirPages[i] = dirBuf[i*PageSize : (i+1)*PageSize]
	}

	directoryGrants, err := EncodeGrantDirectory(b.grants, feID, dataGrants, dirPages)
	if err != nil {
		return fmt.Errorf("encode grant directory: %w", err)
	}

	grantRefRef := FormatGrantRefRef(directoryGrants)
	if len(grantRefRef) > MaxGrantRefRefBytes {
		return fmt.Errorf("%w: %d bytes", ErrGrantRefRefTooLarge, len(grantRefRef))
	}
	if err := b.store.Write(GrantRefRefKey(feID), grantRefRef); err != nil {
		return fmt.Errorf("write grant-ref-ref: %w", err)
	}
	if err := b.store.Write(StateKey(feID), "1"); err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	b.registry.Put(&Session{
		FrontendDomainID: feID,
		Model:            modelName,
		DataGrants:       dataGrants,
		DirectoryGrants:  directoryGrants,
		DirectoryRefs:    directoryGrants,
		TotalPages:       totalPages,
		DirPages:         dirPageCount,
		State:            SessionReady,
	})

	b.audit.RecordPublish(feID, modelName, totalPages)
	if b.metrics != nil {
		b.metrics.ObservePublish(modelName, time.Since(start))
		b.metrics.SetSessionsActive(b.registry.Len())
		b.metrics.SetGrantsOutstanding(len(b.registry.OutstandingGrants()))
	}

	b.log.Info().Int("frontend", feID).Str("model", modelName).
		Int("total_pages", totalPages).Dur("elapsed", time.Since(start)).
		Msg("published grant references")
	return nil
}

// weightBufferFor returns the page-aligned buffer holding model's tensors
// packed tensor-after-tensor, allocating and populating it once per model
// name. Safe for concurrent callers: the buffer is immutable after it is
// first populated, so concurrently-publishing sessions only ever read it.
func (b *Backend) weightBufferFor(model BackendModel) ([]byte, error) {
	b.weightsMu.Lock()
	defer b.weightsMu.Unlock()

	if buf, ok := b.weights[model.Name]; ok {
		return buf, nil
	}

	totalPages := DivideRoundUp(model.TotalBytes(), PageSize)
	order := CeilLog2(RoundUpPowerOfTwo(uint32(totalPages)))
	buf, err := b.pages.AllocPages(order)
	if err != nil {
		return nil, fmt.Errorf("%w: allocate weight pages for %s: %v", ErrMapFailed, model.Name, err)
	}

	offset := 0
	for _, t := range model.Tensors {
		for _, f := range t.Data {
			putFloat32(buf[offset:], f)
			offset += 4
		}
	}

	b.weights[model.Name] = buf
	return buf, nil
}

// closeSession is handle_backend_event's EV_CLOSEFE branch.
func (b *Backend) closeSession(feID int) {
	session, ok := b.registry.Remove(feID)
	if !ok {
		b.log.Debug().Int("frontend", feID).Msg("close for unknown frontend, ignoring")
		return
	}

	for _, ref := range session.DataGrants {
		if err := b.grants.Revoke(ref); err != nil {
			b.log.Warn().Err(err).Int("frontend", feID).Msg("revoke data grant failed")
		}
	}
	for _, ref := range session.DirectoryGrants {
		if err := b.grants.Revoke(ref); err != nil {
			b.log.Warn().Err(err).Int("frontend", feID).Msg("revoke directory grant failed")
		}
	}

	b.audit.RecordClose(feID, session.Model)
	if b.metrics != nil {
		b.metrics.SetSessionsActive(b.registry.Len())
		b.metrics.SetGrantsOutstanding(len(b.registry.OutstandingGrants()))
	}
	b.log.Info().Int("frontend", feID).Str("model", session.Model).Msg("closed session")
}
