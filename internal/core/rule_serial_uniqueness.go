package core

import (
	"context"
	"fmt"

	"custodycore/pkg/domain"
)

// NewSerialUniquenessRule blocks commits that leave two records sharing a
// case-insensitive serial.
func NewSerialUniquenessRule() domain.Rule {
	return serialUniquenessRule{}
}

type serialUniquenessRule struct{}

func (serialUniquenessRule) Name() string { return "serial_uniqueness" }

func (r serialUniquenessRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var touched []domain.Equipment
	for _, change := range changes {
		if change.Entity != domain.EntityEquipment {
			continue
		}
		after, ok := change.After.(domain.Equipment)
		if !ok || domain.FoldSerial(after.Serial) == "" {
			continue
		}
		if before, ok := change.Before.(domain.Equipment); ok && domain.FoldSerial(before.Serial) == domain.FoldSerial(after.Serial) {
			continue
		}
		touched = append(touched, after)
	}
	res := domain.Result{}
	if len(touched) == 0 {
		return res, nil
	}
	owners := make(map[string][]string)
	for _, rec := range view.ListAll() {
		key := domain.FoldSerial(rec.Serial)
		if key != "" {
			owners[key] = append(owners[key], rec.ID)
		}
	}
	for _, rec := range touched {
		if len(owners[domain.FoldSerial(rec.Serial)]) > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("Error: Serial %q already exists.", rec.Serial),
				Entity:   domain.EntityEquipment,
				EntityID: rec.ID,
			})
		}
	}
	return res, nil
}
