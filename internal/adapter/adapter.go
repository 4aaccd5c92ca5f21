// Package adapter bridges each local entity collection to its remote REST
// counterpart.
//
// Every adapter shares the same protocol: CreateOnServer, UpdateOnServer,
// CheckExists, DeleteFromServer, Sync and ImportFromServer. The bodies are
// entity-specific: each remote endpoint has its own URL shape, payload
// nesting (a center create embeds its subjects, a receipt create submits the
// student's currently enrolled subject IDs rather than its own fields) and
// merge-back rules. The shared sync algorithm lives in run.go; the per-entity
// files own only the translation logic.
//
// Adapters never push sync metadata (status, local timestamps are carried for
// conflict bookkeeping only) and never throw past Sync: per-record failures
// are logged, tallied in the report, and retried on the next pass.
package adapter

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/api"
	"github.com/tutordesk/tutorsync/internal/identity"
	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

// Adapter is the uniform surface the orchestrator drives.
type Adapter interface {
	// Name returns the entity collection name (e.g. "students").
	Name() string

	// Sync pushes the collection's waiting and tombstoned records to the
	// server. Tombstones are processed first. Individual record failures are
	// aggregated into the report, never returned as errors; the error return
	// is reserved for preconditions (api.ErrOffline) and local store
	// failures.
	Sync(ctx context.Context) (*Report, error)

	// ImportFromServer replaces the collection's synced records with a fresh
	// pull, preserving records that still carry unpushed local changes.
	// Returns the number of records imported. The replacement is atomic: a
	// failure mid-import leaves the local store untouched.
	ImportFromServer(ctx context.Context) (int, error)
}

// Deps carries the shared collaborators every adapter needs.
type Deps struct {
	API    *api.Client
	Store  *store.Store
	Who    *identity.Resolver
	Online func() bool // nil means "assume online"
	Logger *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// scopeQuery builds the owning-user filter for pull queries: admins pull by
// adminId, managers by managerId. Fails when no user is cached locally,
// because an unscoped pull would fetch other managers' records.
func (d Deps) scopeQuery(ctx context.Context) (url.Values, error) {
	u, err := d.Who.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if u.Role == model.RoleAdmin {
		q.Set("adminId", u.ID)
	} else {
		q.Set("managerId", u.ID)
	}
	return q, nil
}

// All builds the seven adapters in the orchestrator's invocation order:
// parents before likely dependents (a center should exist remotely before the
// subjects that embed into its payload are pushed). The ordering is best
// effort, not an enforced dependency graph; every adapter tolerates a missing
// remote parent by recording the rejection and retrying next cycle.
func All(d Deps) []Adapter {
	return []Adapter{
		NewUserAdapter(d),
		NewCenterAdapter(d),
		NewTeacherAdapter(d),
		NewStudentAdapter(d),
		NewSubjectAdapter(d),
		NewReceiptAdapter(d),
		NewScheduleAdapter(d),
	}
}
