package adapter

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/api"
	"github.com/tutordesk/tutorsync/internal/model"
	"github.com/tutordesk/tutorsync/internal/store"
)

// ptrRecord mirrors the store's pointer-to-entity constraint.
type ptrRecord[T any] interface {
	*T
	model.Record
}

// serverOps is the per-entity remote protocol the shared sync loop drives.
// Each adapter implements it with its own endpoint shapes and payloads.
type serverOps[T any, P ptrRecord[T]] interface {
	// CheckExists probes whether the server already has this id. The client
	// generates IDs itself, so a waiting record is not necessarily new.
	CheckExists(ctx context.Context, id string) (bool, error)

	// CreateOnServer POSTs the record's business fields and returns the
	// server's canonical representation.
	CreateOnServer(ctx context.Context, rec P) (P, error)

	// UpdateOnServer pushes the record to the entity's update endpoint.
	UpdateOnServer(ctx context.Context, rec P) (P, error)

	// DeleteFromServer removes the record remotely. Callers treat a 404 as
	// "already gone", which is success.
	DeleteFromServer(ctx context.Context, id string) error

	// MergeRemote copies server-assigned fields from remote into local after
	// a successful push (normalized email, receipt number, and so on).
	MergeRemote(local, remote P)

	// AfterPush runs once a record has reached synced state locally, for
	// satellite bookkeeping such as marking embedded enrollment links synced.
	AfterPush(ctx context.Context, rec P) error
}

// runSync is the per-entity sync algorithm, identical across all seven
// adapters:
//
//  1. Fail fast with api.ErrOffline when the connectivity oracle says so.
//  2. Load the {waiting, pending} partition.
//  3. Push tombstones first, hard-deleting locally on confirmed removal, so a
//     queued delete always resolves ahead of any same-session write.
//  4. Push waiting records, branching create-vs-update on an existence probe,
//     merging canonical server fields back and marking synced on success.
//
// Failed records keep their status and are retried on the next pass; the loop
// never lets one bad record block the rest of the batch.
func runSync[T any, P ptrRecord[T]](
	ctx context.Context,
	col *store.Collection[T, P],
	ops serverOps[T, P],
	online func() bool,
	logger *zap.Logger,
) (*Report, error) {
	if online != nil && !online() {
		return nil, api.ErrOffline
	}

	targets, err := col.SyncTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s sync targets: %w", col.Name(), err)
	}

	report := NewReport(col.Name())
	if targets.Empty() {
		return report, nil
	}

	logger.Info("syncing collection",
		zap.String("collection", col.Name()),
		zap.Int("waiting", len(targets.Waiting)),
		zap.Int("pending", len(targets.Pending)))

	for _, rec := range targets.Pending {
		id := rec.EntityID()
		if err := ops.DeleteFromServer(ctx, id); err != nil && !api.IsNotFound(err) {
			logger.Warn("remote delete failed, will retry",
				zap.String("collection", col.Name()), zap.String("id", id), zap.Error(err))
			report.fail(id, ActionDelete, err)
			continue
		}
		// Remote copy confirmed gone; the tombstone must not outlive it.
		if err := col.DeleteLocal(ctx, id); err != nil {
			report.fail(id, ActionDelete, err)
			continue
		}
		report.ok(id, ActionDelete)
	}

	for _, rec := range targets.Waiting {
		id := rec.EntityID()

		exists, err := ops.CheckExists(ctx, id)
		if err != nil {
			logger.Warn("existence probe failed, will retry",
				zap.String("collection", col.Name()), zap.String("id", id), zap.Error(err))
			report.fail(id, ActionCreate, err)
			continue
		}

		action := ActionCreate
		var remote P
		if exists {
			action = ActionUpdate
			remote, err = ops.UpdateOnServer(ctx, rec)
		} else {
			remote, err = ops.CreateOnServer(ctx, rec)
		}

		if err != nil {
			if api.IsAlreadyExists(err) {
				// A previous push landed but the local status update was
				// lost. The record is on the server; just settle it.
				if err := col.MarkSynced(ctx, id); err != nil {
					report.fail(id, action, err)
					continue
				}
				report.ok(id, action)
				continue
			}
			logger.Warn("push failed, will retry",
				zap.String("collection", col.Name()), zap.String("id", id),
				zap.String("action", string(action)), zap.Error(err))
			report.fail(id, action, err)
			continue
		}

		if remote != nil {
			ops.MergeRemote(rec, remote)
		}
		rec.SetStatus(model.StatusSynced)
		if err := col.PutLocal(ctx, rec); err != nil {
			report.fail(id, action, err)
			continue
		}
		if err := ops.AfterPush(ctx, rec); err != nil {
			// The record itself is settled; satellite bookkeeping catches up
			// on the next pass.
			logger.Warn("post-push bookkeeping failed",
				zap.String("collection", col.Name()), zap.String("id", id), zap.Error(err))
		}
		report.ok(id, action)
	}

	logger.Info("collection sync complete",
		zap.String("collection", col.Name()),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))

	return report, nil
}

// existsInList is the shared existence probe: list the entity's collection
// endpoint and scan for the id. The remote API has no HEAD-by-id endpoint,
// so every adapter probes this way.
func existsInList(ctx context.Context, c *api.Client, path string, q url.Values, id string) (bool, error) {
	var items []struct {
		ID string `json:"id"`
	}
	if err := c.Get(ctx, path, q, &items); err != nil {
		return false, err
	}
	for _, it := range items {
		if it.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// runImport fetches the entity's remote set and atomically replaces the local
// synced records with it. Records holding unpushed local changes are never
// clobbered; any failure rolls the whole import back.
func runImport[T any, P ptrRecord[T]](
	ctx context.Context,
	col *store.Collection[T, P],
	fetch func(ctx context.Context) ([]P, error),
	online func() bool,
	logger *zap.Logger,
) (int, error) {
	if online != nil && !online() {
		return 0, api.ErrOffline
	}

	fresh, err := fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s from server: %w", col.Name(), err)
	}

	imported, err := col.ReplaceSynced(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("%s import rolled back: %w", col.Name(), err)
	}

	logger.Info("collection imported",
		zap.String("collection", col.Name()), zap.Int("imported", imported))
	return imported, nil
}
