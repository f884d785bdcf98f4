package domain

import "context"

// Transaction exposes the operations that a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateEquipment(Equipment) (Equipment, error)
	UpdateEquipment(id int64, mutator func(*Equipment) error) (Equipment, error)
	DeleteEquipment(id int64) error
	UpsertLocation(Location) (Location, error)
	DeleteLocation(id int64) error
	AppendMovement(MovementRecord) (MovementRecord, error)
	FindEquipment(id int64) (Equipment, bool)
	FindLocation(id int64) (Location, bool)
	FindLocationByName(name string) (Location, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
}

// PersistentStore is the data-access collaborator consumed by the service.
// Every method that reads returns copies; callers cannot mutate store state.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetEquipment(id int64) (Equipment, bool)
	// ListEquipment returns items in ascending id order.
	ListEquipment() []Equipment
	// ListLocations returns locations in ascending id order.
	ListLocations() []Location
	// ListHistory returns movement records ordered by date descending.
	ListHistory() []MovementRecord
}
