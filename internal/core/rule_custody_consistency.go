package core

import (
	"context"
	"fmt"

	"custodycore/pkg/domain"
)

// NewCustodyConsistencyRule keeps a record's state, partition and custody
// fields in agreement.
func NewCustodyConsistencyRule() domain.Rule {
	return custodyConsistencyRule{}
}

type custodyConsistencyRule struct{}

func (custodyConsistencyRule) Name() string { return "custody_consistency" }

func (r custodyConsistencyRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	pool := view.PoolName()
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityEquipment || change.Action == domain.ActionDelete {
			continue
		}
		rec, ok := change.After.(domain.Equipment)
		if !ok {
			continue
		}
		if msg := custodyProblem(rec, pool); msg != "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  msg,
				Entity:   domain.EntityEquipment,
				EntityID: rec.ID,
			})
		}
	}
	return res, nil
}

func custodyProblem(rec domain.Equipment, pool string) string {
	label := rec.Serial
	if label == "" {
		label = rec.Name
	}
	switch {
	case !rec.State.Valid():
		return fmt.Sprintf("Item %q has unknown state %q.", label, rec.State)
	case rec.State.PoolResident():
		if rec.Partition != pool {
			return fmt.Sprintf("Item %q in state %s must be kept in %s.", label, rec.State, pool)
		}
		if rec.Location != "" || rec.AgentName != "" {
			return fmt.Sprintf("Item %q in state %s cannot hold a location or agent.", label, rec.State)
		}
	default:
		if rec.Partition == pool {
			return fmt.Sprintf("Assigned item %q cannot stay in %s.", label, pool)
		}
		if rec.Location != rec.Partition {
			return fmt.Sprintf("Assigned item %q must be located on floor %s.", label, rec.Partition)
		}
		if rec.AgentName == "" || rec.AgentID == "" || rec.AgentEmail == "" {
			return fmt.Sprintf("Assigned item %q requires agent name, ID and email.", label)
		}
	}
	return ""
}
