package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// TempProjectService creates and removes the disposable analysis projects a
// branch cleanup works against.
type TempProjectService struct {
	projects domain.ProjectManager
	now      func() time.Time
	logger   *zap.Logger
}

func NewTempProjectService(projects domain.ProjectManager, logger *zap.Logger) *TempProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TempProjectService{projects: projects, now: time.Now, logger: logger}
}

// WithClock replaces the clock used to stamp project keys.
func (s *TempProjectService) WithClock(now func() time.Time) *TempProjectService {
	s.now = now
	return s
}

// Create registers a new project keyed by base, user, branch and the current time.
func (s *TempProjectService) Create(ctx context.Context, baseKey, branch, user string) (*domain.TempProjectHandle, error) {
	at := s.now().UTC()
	h := &domain.TempProjectHandle{
		Key:       domain.TempProjectKey(baseKey, user, branch, at),
		Name:      domain.TempProjectName(baseKey, branch),
		BaseKey:   baseKey,
		Branch:    branch,
		User:      user,
		CreatedAt: at,
	}
	if err := s.projects.CreateProject(ctx, h.Key, h.Name); err != nil {
		return nil, fmt.Errorf("creating temp project %s: %w", h.Key, err)
	}
	s.logger.Info("temp project created", zap.String("project", h.Key))
	return h, nil
}

// Destroy deletes the project. A project that is already gone counts as
// destroyed.
func (s *TempProjectService) Destroy(ctx context.Context, h *domain.TempProjectHandle) error {
	if h == nil {
		return nil
	}
	if err := s.projects.DeleteProject(ctx, h.Key); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("deleting temp project %s: %w", h.Key, err)
	}
	s.logger.Info("temp project deleted", zap.String("project", h.Key))
	return nil
}

// Exists reports whether a project with key is registered on the tracker.
func (s *TempProjectService) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.projects.ProjectExists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("looking up project %s: %w", key, err)
	}
	return ok, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrProjectNotFound)
}
