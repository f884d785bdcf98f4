package domain

func ptr(id int64) *int64 { return &id }

func item(id int64, name string, category Category, location string, status Status) Equipment {
	return Equipment{Base: Base{ID: id}, Name: name, Category: category, Location: location, Status: status}
}

func child(id int64, name string, rackID int64, status Status) Equipment {
	return Equipment{Base: Base{ID: id}, Name: name, Category: CategoryAudio, ParentID: ptr(rackID), Status: status}
}

func ids(items []Equipment) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sliceView is a RuleView over plain slices.
type sliceView struct {
	equipment []Equipment
	locations []Location
}

func (v sliceView) ListEquipment() []Equipment      { return v.equipment }
func (v sliceView) ListLocations() []Location       { return v.locations }
func (v sliceView) ListMovements() []MovementRecord { return nil }

func (v sliceView) FindEquipment(id int64) (Equipment, bool) {
	for _, e := range v.equipment {
		if e.ID == id {
			return e, true
		}
	}
	return Equipment{}, false
}

func (v sliceView) FindLocation(id int64) (Location, bool) {
	for _, l := range v.locations {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}

func (v sliceView) FindLocationByName(name string) (Location, bool) {
	for _, l := range v.locations {
		if l.Name == name {
			return l, true
		}
	}
	return Location{}, false
}
