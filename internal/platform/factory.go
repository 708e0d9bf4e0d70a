package platform

import (
	"github.com/aretw0/marginalia/pkg/core"
)

// New initializes the storage at uri and returns the document service.
//
//	svc, err := marginalia.New("./drafts", marginalia.WithVersioning(false))
//
// The uri is adapter-specific (a directory for "fs", a database path for
// "sqlite"). Callers Close the service to release database handles.
func New(uri string, opts ...Option) (*core.Service, error) {
	o := parseOptions(opts)

	repo, err := initRepository(uri, o)
	if err != nil {
		return nil, err
	}

	leases, err := openLeases(uri, o)
	if err != nil {
		_ = core.NewService(repo).Close()
		return nil, err
	}

	var svcOpts []core.ServiceOption
	if leases != nil {
		svcOpts = append(svcOpts, core.WithLeaseStore(leases))
	}
	return core.NewService(repo, svcOpts...), nil
}
