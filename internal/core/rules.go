package core

import "inventario/pkg/domain"

type (
	Rule        = domain.Rule
	RulesEngine = domain.RulesEngine
	Result      = domain.Result
	Change      = domain.Change
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewLocationReferenceRule())
	engine.Register(NewRackContainmentRule())
	engine.Register(NewRackRepairRule())
	return engine
}

// touchedEquipment returns the ids of items created or updated by changes, in
// change order without duplicates.
func touchedEquipment(changes []domain.Change) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	add := func(v any) {
		item, ok := v.(domain.Equipment)
		if !ok {
			return
		}
		if _, dup := seen[item.ID]; dup {
			return
		}
		seen[item.ID] = struct{}{}
		ids = append(ids, item.ID)
	}
	for _, change := range changes {
		if change.Entity != domain.EntityEquipment || change.Action == domain.ActionDelete {
			continue
		}
		add(change.After)
	}
	return ids
}

// touchedLocations returns the names of locations updated or deleted by changes.
func touchedLocations(changes []domain.Change) []string {
	var names []string
	for _, change := range changes {
		if change.Entity != domain.EntityLocation || change.Action == domain.ActionCreate {
			continue
		}
		if loc, ok := change.Before.(domain.Location); ok {
			names = append(names, loc.Name)
		}
	}
	return names
}
