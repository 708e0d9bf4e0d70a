package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	RepositoryType string `json:"repository_type"`
	Snapshots      bool   `json:"snapshots"`
	Leases         bool   `json:"leases"`
	Watchable      bool   `json:"watchable"`
	Syncable       bool   `json:"syncable"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	repoType := "unknown"
	if s.repo != nil {
		repoType = "repository"
		// Try to get component type if repository implements introspection.Component
		if comp, ok := s.repo.(introspection.Component); ok {
			repoType = comp.ComponentType()
		}
	}
	_, snaps := s.repo.(SnapshotStore)
	_, leases := s.repo.(LeaseStore)
	leases = leases || s.leases != nil
	_, watch := s.repo.(Watchable)
	_, syncer := s.repo.(Syncable)

	return ServiceState{
		RepositoryType: repoType,
		Snapshots:      snaps,
		Leases:         leases,
		Watchable:      watch,
		Syncable:       syncer,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
