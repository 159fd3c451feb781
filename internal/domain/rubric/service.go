package rubric

import (
	"context"
	"errors"
	"fmt"

	"teacherhr/internal/platform/logger"
)

// Service manages versioned rubric documents. Exactly one version per key is
// active; older versions are kept for audit and restore.
type Service struct {
	store StoreAPI
	log   *logger.Logger
}

func NewService(store StoreAPI, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, log: log}
}

// Active returns the active rubric for key, seeding the built-in default when
// the key has never been configured.
func (s *Service) Active(ctx context.Context, key string) (Rubric, error) {
	v, err := s.ActiveVersion(ctx, key)
	if err != nil {
		return Rubric{}, err
	}
	return v.Value, nil
}

func (s *Service) ActiveVersion(ctx context.Context, key string) (Version, error) {
	v, err := s.store.ActiveVersion(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Version{}, err
	}

	s.log.Info("seeding default rubric", "key", key)
	return s.store.CreateVersion(ctx, key, Default(), "", "Initial default configuration")
}

func (s *Service) Update(ctx context.Context, key string, value Rubric, actorID, description string) (Version, error) {
	if err := value.Check(); err != nil {
		return Version{}, err
	}
	v, err := s.store.CreateVersion(ctx, key, value, actorID, description)
	if err != nil {
		return Version{}, err
	}
	s.log.Info("rubric updated", "key", key, "version", v.Version, "actorId", actorID)
	return v, nil
}

func (s *Service) History(ctx context.Context, key string) ([]Version, error) {
	return s.store.ListVersions(ctx, key)
}

// Restore re-publishes an older version's document as a new version.
func (s *Service) Restore(ctx context.Context, key string, version int, actorID string) (Version, error) {
	target, err := s.store.VersionByNumber(ctx, key, version)
	if err != nil {
		return Version{}, err
	}
	return s.Update(ctx, key, target.Value, actorID, fmt.Sprintf("Restored from version %d", version))
}

// CPERequirement reads the CPE minimum from the active rubric stored under key.
func (s *Service) CPERequirement(key string) CPERequirement {
	return CPERequirement{rubrics: s, key: key}
}

type CPERequirement struct {
	rubrics *Service
	key     string
}

func (c CPERequirement) RequiredPoints(ctx context.Context) (float64, error) {
	r, err := c.rubrics.Active(ctx, c.key)
	if err != nil {
		return 0, err
	}
	return r.CPE.MinimumPoints, nil
}
