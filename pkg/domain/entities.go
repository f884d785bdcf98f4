// Package domain defines the inventory entities, value types, pure hierarchy and
// query functions, and rule evaluation primitives used by inventario.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the inventory.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityEquipment identifies an equipment item (including racks).
	EntityEquipment EntityType = "equipment"
	// EntityLocation identifies a physical location.
	EntityLocation EntityType = "location"
	// EntityMovement identifies an append-only movement history entry.
	EntityMovement EntityType = "movement"
)

// Category enumerates the fixed equipment categories.
type Category string

// Equipment categories.
const (
	CategoryAudio     Category = "audio"
	CategoryVideo     Category = "video"
	CategoryLighting  Category = "iluminacion"
	CategoryStands    Category = "soportes"
	CategoryFurniture Category = "mobiliario"
	CategoryRack      Category = "rack"
	CategoryMisc      Category = "varios"
)

// CategoryAll is the filter sentinel that passes every category through.
const CategoryAll Category = "Todas"

var categories = []Category{
	CategoryAudio,
	CategoryVideo,
	CategoryLighting,
	CategoryStands,
	CategoryFurniture,
	CategoryRack,
	CategoryMisc,
}

// Categories returns the enumerated categories in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Valid reports whether c is one of the enumerated categories. The filter
// sentinel is not a valid category for a stored item.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status captures the operational state of an item.
type Status string

// Equipment statuses.
const (
	StatusOperational Status = "operativo"
	StatusRepair      Status = "reparacion"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOperational || s == StatusRepair
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// NotesMaxLength bounds the free-text notes of an item.
const NotesMaxLength = 300

// Base contains common fields for stored records.
type Base struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Equipment is an inventory item. Racks are equipment of category rack that
// contain other items through ParentID.
type Equipment struct {
	Base
	Name         string   `json:"name"`
	SerialNumber string   `json:"serial_number"`
	Category     Category `json:"category"`
	// Location is meaningful only when ParentID is nil.
	Location    string `json:"location,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Status      Status `json:"status"`
	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// IsRack reports whether the item can contain other items.
func (e Equipment) IsRack() bool { return e.Category == CategoryRack }

// IsContained reports whether the item lives inside a rack.
func (e Equipment) IsContained() bool { return e.ParentID != nil }

// Placement returns where the item is stored.
func (e Equipment) Placement() Placement {
	if e.ParentID != nil {
		return ContainedIn(*e.ParentID)
	}
	return Located(e.Location)
}

// Location is a named physical place equipment can reside at.
type Location struct {
	Base
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// MovementRecord is an append-only history entry written once per transfer.
type MovementRecord struct {
	ID           int64     `json:"id"`
	UserEmail    string    `json:"user_email"`
	Destination  string    `json:"destination"`
	ItemsSummary string    `json:"items_summary"`
	DeviceInfo   string    `json:"device_info,omitempty"`
	Date         time.Time `json:"date"`
}

// PlacementKind discriminates a Placement.
type PlacementKind string

// Placement kinds.
const (
	PlacementLocated   PlacementKind = "located"
	PlacementContained PlacementKind = "contained"
)

// Placement is either Located(name) or Contained(rackID).
type Placement struct {
	Kind     PlacementKind `json:"kind"`
	Location string        `json:"location,omitempty"`
	RackID   int64         `json:"rack_id,omitempty"`
}

// Located places an item directly at the named location.
func Located(name string) Placement {
	return Placement{Kind: PlacementLocated, Location: name}
}

// ContainedIn places an item inside the rack with the given id.
func ContainedIn(rackID int64) Placement {
	return Placement{Kind: PlacementContained, RackID: rackID}
}

// Apply writes the placement onto the item, keeping location and parent
// mutually exclusive.
func (p Placement) Apply(e *Equipment) {
	switch p.Kind {
	case PlacementContained:
		id := p.RackID
		e.ParentID = &id
		e.Location = ""
	default:
		e.ParentID = nil
		e.Location = p.Location
	}
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID int64      `json:"entity_id,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}
