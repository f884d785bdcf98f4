package domain

import "fmt"

// TopLevel returns the items without a parent that satisfy pred, in input
// order. A nil predicate matches every top-level item.
func TopLevel(all []Equipment, pred func(Equipment) bool) []Equipment {
	out := make([]Equipment, 0, len(all))
	for _, item := range all {
		if item.ParentID != nil {
			continue
		}
		if pred != nil && !pred(item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ChildrenOf returns the items whose parent is rackID, in input order.
func ChildrenOf(all []Equipment, rackID int64) []Equipment {
	out := make([]Equipment, 0)
	for _, item := range all {
		if item.ParentID != nil && *item.ParentID == rackID {
			out = append(out, item)
		}
	}
	return out
}

// RackStatus derives a rack's status from its direct children: reparacion when
// any child is reparacion, operativo otherwise (including no children).
func RackStatus(all []Equipment, rackID int64) Status {
	for _, child := range ChildrenOf(all, rackID) {
		if child.Status == StatusRepair {
			return StatusRepair
		}
	}
	return StatusOperational
}

// DisplayStatus returns the derived status for racks and the stored status
// for every other item.
func DisplayStatus(all []Equipment, item Equipment) Status {
	if item.IsRack() {
		return RackStatus(all, item.ID)
	}
	return item.Status
}

// EffectiveLocation resolves where an item physically is: its own location
// when top-level, its rack's location when contained. Returns "" when the
// rack cannot be found.
func EffectiveLocation(all []Equipment, item Equipment) string {
	if item.ParentID == nil {
		return item.Location
	}
	for _, candidate := range all {
		if candidate.ID == *item.ParentID {
			return candidate.Location
		}
	}
	return ""
}

// NeedsRepairConfirmation reports whether moving item requires the repair
// confirmation gate, either because it is in repair or because it is a rack
// whose derived status is reparacion.
func NeedsRepairConfirmation(all []Equipment, item Equipment) bool {
	return item.Status == StatusRepair || DisplayStatus(all, item) == StatusRepair
}

// CheckPlacement validates where item is stored against view. Containment is
// one level deep: the parent must be an existing top-level rack and the item
// must be neither a rack nor hold children.
func CheckPlacement(view RuleView, item Equipment) error {
	if item.ParentID == nil {
		if item.Location == "" {
			return ValidationError{Field: "location", Message: "location required for items outside a rack"}
		}
		if _, ok := view.FindLocationByName(item.Location); !ok {
			return NotFoundError{Entity: EntityLocation, Name: item.Location}
		}
		return nil
	}
	parentID := *item.ParentID
	if parentID == item.ID && item.ID != 0 {
		return ValidationError{Field: "parent_id", Message: "an item cannot contain itself"}
	}
	if item.IsRack() {
		return ValidationError{Field: "parent_id", Message: fmt.Sprintf("rack %q cannot be placed inside another rack", item.Name)}
	}
	parent, ok := view.FindEquipment(parentID)
	if !ok {
		return NotFoundError{Entity: EntityEquipment, ID: parentID}
	}
	if !parent.IsRack() {
		return ValidationError{Field: "parent_id", Message: fmt.Sprintf("%q is not a rack", parent.Name)}
	}
	if parent.ParentID != nil {
		return ValidationError{Field: "parent_id", Message: fmt.Sprintf("rack %q is itself inside a rack", parent.Name)}
	}
	if item.ID != 0 && len(ChildrenOf(view.ListEquipment(), item.ID)) > 0 {
		return ValidationError{Field: "parent_id", Message: fmt.Sprintf("%q holds items and cannot be placed in a rack", item.Name)}
	}
	return nil
}
