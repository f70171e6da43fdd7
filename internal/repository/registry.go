package repository

import (
	"sort"
	"sync"

	apperrors "tenantcore-backend/internal/errors"

	"go.uber.org/zap"
)

// Registry tracks feature-entity registrations for one process. It is an
// explicit object constructed during bootstrap and passed by reference to
// every repository constructor; all registration happens before the service
// accepts requests, and the set is read-only afterward.
type Registry struct {
	mu       sync.Mutex
	entities map[string]bool
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		entities: make(map[string]bool),
		logger:   logger,
	}
}

// Register claims a feature-entity name. A duplicate registration is a
// startup configuration error: it returns a conflict error that the host is
// expected to treat as fatal. The first registration stays valid.
func (r *Registry) Register(featureEntity string) error {
	if featureEntity == "" {
		return apperrors.Validation("FEATURE_ENTITY", "feature-entity name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entities[featureEntity] {
		return apperrors.Conflict("FEATURE_ENTITY_REGISTERED",
			"feature entity %q is already registered in this process", featureEntity).
			WithResource(featureEntity)
	}
	r.entities[featureEntity] = true
	r.logger.Info("registered feature entity", zap.String("featureEntity", featureEntity))
	return nil
}

// Registered returns the claimed feature-entity names in sorted order.
func (r *Registry) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
