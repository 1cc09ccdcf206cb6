package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/repositories"
)

// ErrSystemUnavailable indicates the health probes could not be evaluated.
var ErrSystemUnavailable = errors.New("system service: unavailable")

type systemService struct {
	health repositories.HealthRepository
}

// NewSystemService constructs a SystemService over the health repository.
func NewSystemService(health repositories.HealthRepository) (SystemService, error) {
	if health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	return &systemService{health: health}, nil
}

// Health aggregates dependency probes for readiness reporting.
func (s *systemService) Health(ctx context.Context) (domain.SystemHealthReport, error) {
	if s == nil || s.health == nil {
		return domain.SystemHealthReport{}, ErrSystemUnavailable
	}
	report, err := s.health.Collect(ctx)
	if err != nil {
		return domain.SystemHealthReport{}, fmt.Errorf("%w: %v", ErrSystemUnavailable, err)
	}
	return report, nil
}

var _ SystemService = (*systemService)(nil)
