package core

import (
	"context"
	"fmt"

	"inventario/pkg/domain"
)

const ruleLocationReference = "location_reference"

// NewLocationReferenceRule blocks commits that leave a top-level item pointing
// at a location name that does not exist.
func NewLocationReferenceRule() domain.Rule {
	return locationReferenceRule{}
}

type locationReferenceRule struct{}

func (locationReferenceRule) Name() string { return ruleLocationReference }

func (locationReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	check := func(item domain.Equipment) {
		if item.ParentID != nil {
			return
		}
		if _, ok := view.FindLocationByName(item.Location); ok {
			return
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     ruleLocationReference,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("equipment %q references unknown location %q", item.Name, item.Location),
			Entity:   domain.EntityEquipment,
			EntityID: item.ID,
		})
	}

	for _, id := range touchedEquipment(changes) {
		if item, ok := view.FindEquipment(id); ok {
			check(item)
		}
	}
	removed := touchedLocations(changes)
	if len(removed) == 0 {
		return res, nil
	}
	affected := make(map[string]struct{}, len(removed))
	for _, name := range removed {
		affected[name] = struct{}{}
	}
	for _, item := range view.ListEquipment() {
		if _, ok := affected[item.Location]; ok {
			check(item)
		}
	}
	return res, nil
}
