package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/cache"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// ResourceView is the cached, externally visible projection of a resource.
type ResourceView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResourceService coordinates CRUD for generic resources. Writes go to the
// store first, then invalidate the cache, then publish an event.
type ResourceService struct {
	resources repository.ResourceRepository
	publisher events.Publisher
	cache     cacheAside
	logger    *zap.Logger
	metrics   *observability.Metrics
	newID     func() string
	now       func() time.Time
}

// ResourceDependencies bundles collaborators for the resource service.
type ResourceDependencies struct {
	Resources repository.ResourceRepository
	Cache     cache.Cache
	Publisher events.Publisher
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	CacheTTL  time.Duration
}

// NewResourceService constructs the service.
func NewResourceService(deps ResourceDependencies) *ResourceService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResourceService{
		resources: deps.Resources,
		publisher: deps.Publisher,
		cache:     cacheAside{cache: deps.Cache, ttl: ttl, logger: logger, metrics: deps.Metrics},
		logger:    logger,
		metrics:   deps.Metrics,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

func resourceKey(id string) string {
	return cache.Key(domain.KindResource, "id", id)
}

// GetAll lists every resource straight from the store. Collections are never cached.
func (s *ResourceService) GetAll(ctx context.Context) ([]ResourceView, error) {
	resources, err := s.resources.GetAll(ctx)
	if err != nil {
		return nil, apperrors.NewInfrastructure("store", err)
	}
	views := make([]ResourceView, 0, len(resources))
	for _, r := range resources {
		views = append(views, resourceViewOf(r))
	}
	return views, nil
}

// GetByID returns one resource, served from cache when possible.
func (s *ResourceService) GetByID(ctx context.Context, id string) (ResourceView, error) {
	return readThrough(ctx, s.cache, domain.KindResource, resourceKey(id), func(ctx context.Context) (ResourceView, error) {
		r, err := s.resources.GetByID(ctx, id)
		if err != nil {
			return ResourceView{}, storeError(err, id)
		}
		return resourceViewOf(r), nil
	})
}

// Add creates a resource and returns its new id.
func (s *ResourceService) Add(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	created, err := s.resources.Create(ctx, domain.Resource{ID: s.newID(), Name: strings.TrimSpace(name)})
	if err != nil {
		return "", apperrors.NewInfrastructure("store", err)
	}

	s.cache.invalidate(ctx, domain.KindResource, resourceKey(created.ID))
	s.publish(ctx, events.EventCreated, created.ID)
	return created.ID, nil
}

// Update renames the resource identified by id.
func (s *ResourceService) Update(ctx context.Context, id, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := s.resources.Update(ctx, domain.Resource{ID: id, Name: strings.TrimSpace(name)}); err != nil {
		return storeError(err, id)
	}

	s.cache.invalidate(ctx, domain.KindResource, resourceKey(id))
	s.publish(ctx, events.EventUpdated, id)
	return nil
}

// Delete removes the resource identified by id.
func (s *ResourceService) Delete(ctx context.Context, id string) error {
	if err := s.resources.Delete(ctx, id); err != nil {
		return storeError(err, id)
	}

	s.cache.invalidate(ctx, domain.KindResource, resourceKey(id))
	s.publish(ctx, events.EventDeleted, id)
	return nil
}

// publish emits a change event for a committed mutation. Failures are logged
// and dropped; the mutation stands.
func (s *ResourceService) publish(ctx context.Context, eventType events.EventType, id string) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:      eventType,
		EntityID:  id,
		EmittedAt: s.now().UTC(),
		Kind:      domain.KindResource,
	})
	s.metrics.RecordPublish(domain.KindResource, string(eventType), err)
	if err != nil {
		s.logger.Warn("event publish failed; event dropped",
			zap.String("event_type", string(eventType)),
			zap.String("entity_id", id),
			zap.Error(err))
	}
}

func storeError(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(domain.KindResource, map[string]any{"id": id})
	}
	return apperrors.NewInfrastructure("store", err)
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewValidationError("invalid resource payload", map[string]any{"name": "required"})
	}
	return nil
}

func resourceViewOf(r domain.Resource) ResourceView {
	return ResourceView{ID: r.ID, Name: r.Name}
}
