package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/catalogsvc/internal/cache"
	"github.com/2beens/catalogsvc/internal/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ListCacheKey           = "catalog:list"
	payloadCacheKeyBase    = "catalog:payload:"
	DefaultListCacheTTL    = 30 * time.Minute
	DefaultPayloadCacheTTL = time.Hour
)

//go:generate mockgen -source=$GOFILE -destination=registry_mocks_test.go -package=catalog_test

type entriesRepo interface {
	Create(ctx context.Context, newEntry NewEntry) (*Summary, error)
	List(ctx context.Context) ([]Summary, error)
	GetImage(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type NewRegistryParams struct {
	Repo            entriesRepo
	Cache           *cache.Aside
	ListCacheTTL    time.Duration
	PayloadCacheTTL time.Duration
	// optional
	CounterEntriesCreated prometheus.Counter
}

// Registry owns creation and cached reads of catalog entries
type Registry struct {
	repo            entriesRepo
	cache           *cache.Aside
	listCacheTTL    time.Duration
	payloadCacheTTL time.Duration
	entriesCreated  prometheus.Counter
}

func NewRegistry(params NewRegistryParams) *Registry {
	listTTL := params.ListCacheTTL
	if listTTL <= 0 {
		listTTL = DefaultListCacheTTL
	}
	payloadTTL := params.PayloadCacheTTL
	if payloadTTL <= 0 {
		payloadTTL = DefaultPayloadCacheTTL
	}

	return &Registry{
		repo:            params.Repo,
		cache:           params.Cache,
		listCacheTTL:    listTTL,
		payloadCacheTTL: payloadTTL,
		entriesCreated:  params.CounterEntriesCreated,
	}
}

func PayloadCacheKey(id uuid.UUID) string {
	return payloadCacheKeyBase + id.String()
}

// ListSummaries returns all entries ordered by sequential number, without images
func (r *Registry) ListSummaries(ctx context.Context) (_ []Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "registry.catalog.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	summaries, err := cache.GetOrSetTyped(ctx, r.cache, ListCacheKey, r.listCacheTTL, r.repo.List)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// GetPayload returns the image bytes of the entry, or ErrEntryNotFound
func (r *Registry) GetPayload(ctx context.Context, id uuid.UUID) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "registry.catalog.get_payload")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("entry.id", id.String()))

	payload, err := cache.GetOrSetTyped(ctx, r.cache, PayloadCacheKey(id), r.payloadCacheTTL,
		func(ctx context.Context) ([]byte, error) {
			return r.repo.GetImage(ctx, id)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("get payload: %w", err)
	}
	return payload, nil
}

// Create validates and stores a new entry, then drops the cached list
func (r *Registry) Create(ctx context.Context, newEntry NewEntry) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "registry.catalog.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := Validate(newEntry); err != nil {
		return nil, err
	}

	summary, err := r.repo.Create(ctx, newEntry)
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}

	r.cache.Delete(ListCacheKey)
	if r.entriesCreated != nil {
		r.entriesCreated.Inc()
	}

	span.SetAttributes(
		attribute.String("entry.id", summary.ID.String()),
		attribute.Int("entry.sequentialNumber", summary.SequentialNumber),
	)
	log.Debugf("catalog entry created: %s [%d]", summary.Name, summary.SequentialNumber)

	return summary, nil
}
