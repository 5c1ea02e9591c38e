// Package delegation lets lead agents hand work to their subordinates.
// It is a thin pass-through to the task queue scoped to a different
// assignee; the queue and the subordinate's own scheduler do the rest.
package delegation

import (
	"fmt"

	"github.com/tnsengimana/autonomous-teams/internal/store"
)

// Delegator is the lead-side delegation interface.
type Delegator interface {
	// ListSubordinates returns the agents reporting to a lead.
	ListSubordinates(leadID string) ([]store.Agent, error)
	// Delegate enqueues a task for a subordinate on the lead's behalf.
	Delegate(leadID, subordinateID, instruction string) (*store.Task, error)
}

type storeDelegator struct {
	store *store.Store
}

// NewDelegator returns a store-backed Delegator.
func NewDelegator(s *store.Store) Delegator {
	return &storeDelegator{store: s}
}

func (d *storeDelegator) ListSubordinates(leadID string) ([]store.Agent, error) {
	return d.store.ListSubordinates(leadID)
}

// Delegate verifies the subordinate actually reports to the lead before
// enqueueing, so a confused model cannot assign work across teams.
func (d *storeDelegator) Delegate(leadID, subordinateID, instruction string) (*store.Task, error) {
	sub, err := d.store.GetAgent(subordinateID)
	if err != nil {
		return nil, err
	}
	if sub.ParentID != leadID {
		return nil, fmt.Errorf("agent %s is not a subordinate of %s", subordinateID, leadID)
	}
	owner, err := sub.Owner()
	if err != nil {
		return nil, err
	}
	return d.store.EnqueueTask(owner, sub.ID, leadID, instruction, store.SourceDelegation)
}
