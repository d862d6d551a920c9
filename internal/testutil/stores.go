// Package testutil provides in-memory stand-ins for the store, cache and
// broker so orchestrators and handlers can be exercised without Postgres,
// Redis or Kafka.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/repository"
)

// IdentityStore is a map-backed repository.IdentityRepository.
type IdentityStore struct {
	mu   sync.Mutex
	byID map[string]domain.Identity
	// Err, when set, is returned by every call.
	Err error
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{byID: make(map[string]domain.Identity)}
}

func (s *IdentityStore) Create(_ context.Context, identity domain.Identity) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return domain.Identity{}, s.Err
	}
	for _, existing := range s.byID {
		if existing.Email == domain.NormalizeEmail(identity.Email) {
			return domain.Identity{}, repository.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	identity.CreatedAt, identity.UpdatedAt = now, now
	s.byID[identity.ID] = identity
	return identity, nil
}

func (s *IdentityStore) Update(_ context.Context, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.byID[identity.ID]; !ok {
		return repository.ErrNotFound
	}
	identity.UpdatedAt = time.Now().UTC()
	s.byID[identity.ID] = identity
	return nil
}

func (s *IdentityStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *IdentityStore) GetByID(_ context.Context, id string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return domain.Identity{}, s.Err
	}
	identity, ok := s.byID[id]
	if !ok {
		return domain.Identity{}, repository.ErrNotFound
	}
	return identity, nil
}

func (s *IdentityStore) GetByEmail(_ context.Context, email string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return domain.Identity{}, s.Err
	}
	for _, identity := range s.byID {
		if identity.Email == domain.NormalizeEmail(email) {
			return identity, nil
		}
	}
	return domain.Identity{}, repository.ErrNotFound
}

// Len reports how many identities are stored.
func (s *IdentityStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// ResourceStore is a map-backed repository.ResourceRepository that counts reads.
type ResourceStore struct {
	mu    sync.Mutex
	byID  map[string]domain.Resource
	Reads int
	Err   error
}

func NewResourceStore() *ResourceStore {
	return &ResourceStore{byID: make(map[string]domain.Resource)}
}

func (s *ResourceStore) GetAll(_ context.Context) ([]domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Reads++
	out := make([]domain.Resource, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ResourceStore) GetByID(_ context.Context, id string) (domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return domain.Resource{}, s.Err
	}
	s.Reads++
	r, ok := s.byID[id]
	if !ok {
		return domain.Resource{}, repository.ErrNotFound
	}
	return r, nil
}

func (s *ResourceStore) Create(_ context.Context, resource domain.Resource) (domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return domain.Resource{}, s.Err
	}
	now := time.Now().UTC()
	resource.CreatedAt, resource.UpdatedAt = now, now
	s.byID[resource.ID] = resource
	return resource, nil
}

func (s *ResourceStore) Update(_ context.Context, resource domain.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	existing, ok := s.byID[resource.ID]
	if !ok {
		return repository.ErrNotFound
	}
	resource.CreatedAt = existing.CreatedAt
	resource.UpdatedAt = time.Now().UTC()
	s.byID[resource.ID] = resource
	return nil
}

func (s *ResourceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}
