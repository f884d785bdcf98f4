package core

import (
	"context"
	"fmt"

	"inventario/pkg/domain"
)

const ruleRackContainment = "rack_containment"

// NewRackContainmentRule blocks commits that break the one-level rack hierarchy.
func NewRackContainmentRule() domain.Rule {
	return rackContainmentRule{}
}

type rackContainmentRule struct{}

func (rackContainmentRule) Name() string { return ruleRackContainment }

func (rackContainmentRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	ids := touchedEquipment(changes)
	res := domain.Result{}
	if len(ids) == 0 {
		return res, nil
	}
	all := view.ListEquipment()
	violate := func(item domain.Equipment, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     ruleRackContainment,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   domain.EntityEquipment,
			EntityID: item.ID,
		})
	}

	for _, id := range ids {
		item, ok := view.FindEquipment(id)
		if !ok {
			continue
		}
		n := len(domain.ChildrenOf(all, item.ID))
		if n > 0 && !item.IsRack() {
			violate(item, "equipment %q holds %d items but is not a rack", item.Name, n)
		}
		if item.ParentID == nil {
			continue
		}
		switch {
		case item.IsRack():
			violate(item, "rack %q cannot be placed inside another rack", item.Name)
		case n > 0:
			violate(item, "equipment %q holds items and cannot be placed inside a rack", item.Name)
		}
		if item.Location != "" {
			violate(item, "equipment %q is inside a rack but stores location %q", item.Name, item.Location)
		}
		parent, ok := view.FindEquipment(*item.ParentID)
		switch {
		case !ok:
			violate(item, "equipment %q references missing rack %d", item.Name, *item.ParentID)
		case !parent.IsRack():
			violate(item, "equipment %q is inside %q which is not a rack", item.Name, parent.Name)
		case parent.ParentID != nil:
			violate(item, "equipment %q is nested more than one level deep", item.Name)
		}
	}
	return res, nil
}
