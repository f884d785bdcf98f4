package core

import (
	"context"
	"fmt"

	"inventario/pkg/domain"
)

const ruleRackRepair = "rack_repair"

// NewRackRepairRule warns when a commit leaves a rack whose derived status is
// reparacion.
func NewRackRepairRule() domain.Rule {
	return rackRepairRule{}
}

type rackRepairRule struct{}

func (rackRepairRule) Name() string { return ruleRackRepair }

func (rackRepairRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	racks := make(map[int64]struct{})
	note := func(v any) {
		item, ok := v.(domain.Equipment)
		if !ok {
			return
		}
		if item.IsRack() {
			racks[item.ID] = struct{}{}
		}
		if item.ParentID != nil {
			racks[*item.ParentID] = struct{}{}
		}
	}
	for _, change := range changes {
		if change.Entity != domain.EntityEquipment {
			continue
		}
		note(change.Before)
		note(change.After)
	}

	res := domain.Result{}
	if len(racks) == 0 {
		return res, nil
	}
	all := view.ListEquipment()
	for _, item := range all {
		if _, ok := racks[item.ID]; !ok || !item.IsRack() {
			continue
		}
		if domain.RackStatus(all, item.ID) != domain.StatusRepair {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     ruleRackRepair,
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("rack %q holds items in repair", item.Name),
			Entity:   domain.EntityEquipment,
			EntityID: item.ID,
		})
	}
	return res, nil
}
