/*
status.go - Incentive approval state machine

PURPOSE:
  pending -> approved | rejected, terminal once set. The status update is
  the ONLY mutation allowed on an incentive after creation, and approving
  or rejecting never reaches back into the underlying task records.
*/
package incentive

import (
	"context"
	"time"

	"github.com/warp/incentive-engine/core"
)

// =============================================================================
// STATUS TRANSITION
// =============================================================================

// CheckTransition validates a status change in memory. Only a pending
// incentive may move, and only to approved or rejected.
func CheckTransition(current, next core.IncentiveStatus) error {
	if !next.Valid() || next == core.IncentivePending {
		return &core.ValidationError{Field: "status", Message: "status must be approved or rejected, got " + string(next)}
	}
	if current.Terminal() {
		return &core.InvalidStateError{
			Op:      "set incentive status",
			Current: string(current),
			Message: "only pending incentives can be approved or rejected",
		}
	}
	return nil
}

// Approver applies accountant decisions to incentive records.
type Approver struct {
	Incentives core.IncentiveStore
	Now        func() time.Time
}

func NewApprover(store core.IncentiveStore) *Approver {
	return &Approver{Incentives: store, Now: time.Now}
}

// SetStatus moves an incentive out of pending. Fails with an
// InvalidStateError when the record is already approved or rejected.
func (a *Approver) SetStatus(ctx context.Context, id core.IncentiveID, next core.IncentiveStatus, comment string) (*core.Incentive, error) {
	inc, err := a.Incentives.GetIncentive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(inc.Status, next); err != nil {
		return nil, err
	}
	if err := a.Incentives.UpdateIncentiveStatus(ctx, id, next, comment); err != nil {
		return nil, err
	}

	inc.Status = next
	inc.StatusComment = comment
	inc.UpdatedAt = a.Now()
	return inc, nil
}
