// Package model defines the synchronizable entity types for the tutoring-center
// client and the record lifecycle they all share.
//
// Every entity carries a Meta header (id, status, createdAt, updatedAt). The
// status field is a closed three-state machine:
//
//	StatusWaiting ("w")       local mutations not yet pushed to the server
//	StatusSynced  ("1")       local content matches the last pushed server state
//	StatusPendingDelete ("0") deleted locally, remote delete not yet confirmed
//
// A record enters StatusWaiting on every local write, StatusPendingDelete only
// through an explicit delete from "1" or "w", and leaves the store entirely
// once the remote delete is confirmed. StatusPendingDelete must never outlive
// the record itself.
package model

import (
	"fmt"
	"time"
)

// Status is the sync lifecycle state of a local record.
//
// The wire values ("1", "w", "0") are part of the persisted format and must
// not change.
type Status string

const (
	// StatusSynced means the record matches the last known pushed server state.
	StatusSynced Status = "1"
	// StatusWaiting means the record has local changes not yet pushed.
	StatusWaiting Status = "w"
	// StatusPendingDelete means the record was deleted locally and the remote
	// delete has not been confirmed yet.
	StatusPendingDelete Status = "0"
)

// Valid reports whether s is one of the three closed states.
func (s Status) Valid() bool {
	switch s {
	case StatusSynced, StatusWaiting, StatusPendingDelete:
		return true
	}
	return false
}

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusWaiting:
		return "waiting"
	case StatusPendingDelete:
		return "pending-delete"
	default:
		return fmt.Sprintf("invalid(%q)", string(s))
	}
}

// Meta is the sync header embedded in every entity.
type Meta struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntityID returns the record's primary key.
func (m *Meta) EntityID() string { return m.ID }

// EntityStatus returns the record's current sync status.
func (m *Meta) EntityStatus() Status { return m.Status }

// SetStatus replaces the record's sync status.
func (m *Meta) SetStatus(s Status) { m.Status = s }

// LastUpdated returns the record's last-touched timestamp.
func (m *Meta) LastUpdated() time.Time { return m.UpdatedAt }

// Touch refreshes the record's updatedAt timestamp.
func (m *Meta) Touch(now time.Time) { m.UpdatedAt = now.UTC() }

// EmailKey returns the record's unique email, or "" for entities without one.
// Entities with an email secondary index override this.
func (m *Meta) EmailKey() string { return "" }

// Validate checks the sync header.
func (m *Meta) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !IsID(m.ID) {
		return fmt.Errorf("id must be a 24-character hex string (got %q)", m.ID)
	}
	if !m.Status.Valid() {
		return fmt.Errorf("status must be one of %q, %q, %q (got %q)",
			StatusSynced, StatusWaiting, StatusPendingDelete, m.Status)
	}
	return nil
}

// Record is the capability every synchronizable entity provides through its
// embedded Meta. Store collections and server adapters operate on this
// interface so all nine collections share identical lifecycle semantics.
type Record interface {
	EntityID() string
	EntityStatus() Status
	SetStatus(Status)
	LastUpdated() time.Time
	Touch(time.Time)
	EmailKey() string
	Validate() error
}

// NewMeta returns a fresh header for a locally created record: client-side ID,
// waiting status, current timestamps.
func NewMeta() Meta {
	now := time.Now().UTC()
	return Meta{
		ID:        NewID(),
		Status:    StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
