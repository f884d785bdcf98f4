// Package memory provides an in-memory implementation of the inventory
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"inventario/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Equipment aliases domain.Equipment for in-memory persistence operations.
	Equipment = domain.Equipment
	// Location aliases domain.Location.
	Location = domain.Location
	// MovementRecord aliases domain.MovementRecord.
	MovementRecord = domain.MovementRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Sequences holds the last id issued per collection.
type Sequences struct {
	Equipment int64 `json:"equipment"`
	Location  int64 `json:"location"`
	Movement  int64 `json:"movement"`
}

type memoryState struct {
	equipment map[int64]Equipment
	locations map[int64]Location
	history   map[int64]MovementRecord
	seq       Sequences
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Equipment map[int64]Equipment      `json:"equipment"`
	Locations map[int64]Location       `json:"locations"`
	History   map[int64]MovementRecord `json:"history"`
	Sequences Sequences                `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		equipment: make(map[int64]Equipment),
		locations: make(map[int64]Location),
		history:   make(map[int64]MovementRecord),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Equipment: make(map[int64]Equipment, len(state.equipment)),
		Locations: make(map[int64]Location, len(state.locations)),
		History:   make(map[int64]MovementRecord, len(state.history)),
		Sequences: state.seq,
	}
	for k, v := range state.equipment {
		s.Equipment[k] = cloneEquipment(v)
	}
	for k, v := range state.locations {
		s.Locations[k] = v
	}
	for k, v := range state.history {
		s.History[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Equipment {
		state.equipment[k] = cloneEquipment(v)
	}
	for k, v := range s.Locations {
		state.locations[k] = v
	}
	for k, v := range s.History {
		state.history[k] = v
	}
	state.seq = s.Sequences
	return state
}

// migrateSnapshot normalizes snapshots written by older builds or edited by
// hand: missing collections, ids that disagree with their keys, sequences
// behind the highest id, dangling rack references, racks nested inside racks
// and contained items that still carry a location.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Equipment == nil {
		snapshot.Equipment = map[int64]Equipment{}
	}
	if snapshot.Locations == nil {
		snapshot.Locations = map[int64]Location{}
	}
	if snapshot.History == nil {
		snapshot.History = map[int64]MovementRecord{}
	}

	for id, item := range snapshot.Equipment {
		item.ID = id
		if item.ParentID != nil {
			parent, ok := snapshot.Equipment[*item.ParentID]
			switch {
			case !ok || !parent.IsRack() || *item.ParentID == id:
				item.ParentID = nil
			case item.IsRack():
				// A nested rack is lifted out to where its parent stands.
				item.ParentID = nil
				if parent.ParentID == nil && parent.Location != "" {
					item.Location = parent.Location
				}
			default:
				item.Location = ""
			}
		}
		if !item.Status.Valid() {
			item.Status = domain.StatusOperational
		}
		snapshot.Equipment[id] = item
		if id > snapshot.Sequences.Equipment {
			snapshot.Sequences.Equipment = id
		}
	}
	for id, location := range snapshot.Locations {
		location.ID = id
		snapshot.Locations[id] = location
		if id > snapshot.Sequences.Location {
			snapshot.Sequences.Location = id
		}
	}
	for id, record := range snapshot.History {
		record.ID = id
		snapshot.History[id] = record
		if id > snapshot.Sequences.Movement {
			snapshot.Sequences.Movement = id
		}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.equipment {
		cloned.equipment[k] = cloneEquipment(v)
	}
	for k, v := range s.locations {
		cloned.locations[k] = v
	}
	for k, v := range s.history {
		cloned.history[k] = v
	}
	cloned.seq = s.seq
	return cloned
}

func cloneEquipment(e Equipment) Equipment {
	cp := e
	if e.ParentID != nil {
		parent := *e.ParentID
		cp.ParentID = &parent
	}
	return cp
}

func sortedEquipment(values map[int64]Equipment) []Equipment {
	out := make([]Equipment, 0, len(values))
	for _, e := range values {
		out = append(out, cloneEquipment(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedLocations(values map[int64]Location) []Location {
	out := make([]Location, 0, len(values))
	for _, l := range values {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedMovements(values map[int64]MovementRecord) []MovementRecord {
	out := make([]MovementRecord, 0, len(values))
	for _, m := range values {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func historyOrder(records []MovementRecord) []MovementRecord {
	domain.SortHistory(records)
	return records
}

func findLocationByName(values map[int64]Location, name string) (Location, bool) {
	for _, l := range values {
		if l.Name == name {
			return l, true
		}
	}
	return Location{}, false
}

// Store provides an in-memory transactional store for the inventory.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider; nil restores the UTC wall clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListEquipment returns all items in ascending id order.
func (v transactionView) ListEquipment() []Equipment {
	return sortedEquipment(v.state.equipment)
}

// ListLocations returns all locations in ascending id order.
func (v transactionView) ListLocations() []Location {
	return sortedLocations(v.state.locations)
}

// ListMovements returns all movement records in ascending id order.
func (v transactionView) ListMovements() []MovementRecord {
	return sortedMovements(v.state.history)
}

// FindEquipment retrieves an item by id.
func (v transactionView) FindEquipment(id int64) (Equipment, bool) {
	e, ok := v.state.equipment[id]
	if !ok {
		return Equipment{}, false
	}
	return cloneEquipment(e), true
}

// FindLocation retrieves a location by id.
func (v transactionView) FindLocation(id int64) (Location, bool) {
	l, ok := v.state.locations[id]
	return l, ok
}

// FindLocationByName retrieves a location by its unique name.
func (v transactionView) FindLocationByName(name string) (Location, bool) {
	return findLocationByName(v.state.locations, name)
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	return s.RunInTransactionWithCommit(ctx, fn, nil)
}

// RunInTransactionWithCommit executes fn like RunInTransaction and, once the
// rules pass, hands the candidate state to commit while the write lock is
// still held. A commit error discards the transaction, leaving the store
// unchanged.
func (s *Store) RunInTransactionWithCommit(ctx context.Context, fn func(tx Transaction) error, commit func(context.Context, Snapshot) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if commit != nil {
		if err := commit(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			return Result{}, err
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetEquipment returns an item by id.
func (s *Store) GetEquipment(id int64) (Equipment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.equipment[id]
	if !ok {
		return Equipment{}, false
	}
	return cloneEquipment(e), true
}

// ListEquipment returns all items in ascending id order.
func (s *Store) ListEquipment() []Equipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEquipment(s.state.equipment)
}

// ListLocations returns all locations in ascending id order.
func (s *Store) ListLocations() []Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedLocations(s.state.locations)
}

// ListHistory returns movement records ordered by date descending.
func (s *Store) ListHistory() []MovementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return historyOrder(sortedMovements(s.state.history))
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindEquipment exposes item lookup within the transaction scope.
func (tx *transaction) FindEquipment(id int64) (Equipment, bool) {
	return transactionView{state: &tx.state}.FindEquipment(id)
}

// FindLocation exposes location lookup within the transaction scope.
func (tx *transaction) FindLocation(id int64) (Location, bool) {
	l, ok := tx.state.locations[id]
	return l, ok
}

// FindLocationByName exposes location lookup by name within the transaction scope.
func (tx *transaction) FindLocationByName(name string) (Location, bool) {
	return findLocationByName(tx.state.locations, name)
}

func (tx *transaction) childCount(id int64) int {
	count := 0
	for _, e := range tx.state.equipment {
		if e.ParentID != nil && *e.ParentID == id {
			count++
		}
	}
	return count
}

// CreateEquipment stores a new item within the transaction.
func (tx *transaction) CreateEquipment(e Equipment) (Equipment, error) {
	if e.ID == 0 {
		e.ID = tx.state.seq.Equipment + 1
	}
	if _, exists := tx.state.equipment[e.ID]; exists {
		return Equipment{}, fmt.Errorf("equipment %d already exists", e.ID)
	}
	if e.ParentID != nil && e.Location != "" {
		return Equipment{}, domain.ValidationError{Field: "location", Message: "items inside a rack inherit its location"}
	}
	if err := domain.CheckPlacement(tx.Snapshot(), e); err != nil {
		return Equipment{}, err
	}
	if e.ID > tx.state.seq.Equipment {
		tx.state.seq.Equipment = e.ID
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.equipment[e.ID] = cloneEquipment(e)
	tx.recordChange(Change{Entity: domain.EntityEquipment, Action: domain.ActionCreate, After: cloneEquipment(e)})
	return cloneEquipment(e), nil
}

// UpdateEquipment mutates an item using the provided mutator function.
// Mutators move items with domain.Placement so that location and rack stay
// mutually exclusive; setting a location on a contained item is refused.
func (tx *transaction) UpdateEquipment(id int64, mutator func(*Equipment) error) (Equipment, error) {
	current, ok := tx.state.equipment[id]
	if !ok {
		return Equipment{}, domain.NotFoundError{Entity: domain.EntityEquipment, ID: id}
	}
	before := cloneEquipment(current)
	current = cloneEquipment(current)
	if err := mutator(&current); err != nil {
		return Equipment{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	if current.ParentID != nil && current.Location != "" {
		return Equipment{}, domain.ValidationError{Field: "location", Message: "items inside a rack inherit its location"}
	}
	if !current.IsRack() && tx.childCount(id) > 0 {
		return Equipment{}, domain.ValidationError{Field: "category", Message: "a rack holding items must stay a rack"}
	}
	if err := domain.CheckPlacement(tx.Snapshot(), current); err != nil {
		return Equipment{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.equipment[id] = cloneEquipment(current)
	tx.recordChange(Change{Entity: domain.EntityEquipment, Action: domain.ActionUpdate, Before: before, After: cloneEquipment(current)})
	return cloneEquipment(current), nil
}

// DeleteEquipment removes an item from the transaction state. Racks must be
// emptied first.
func (tx *transaction) DeleteEquipment(id int64) error {
	current, ok := tx.state.equipment[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityEquipment, ID: id}
	}
	if n := tx.childCount(id); n > 0 {
		return domain.ValidationError{Field: "id", Message: fmt.Sprintf("rack %q still holds %d items", current.Name, n)}
	}
	delete(tx.state.equipment, id)
	tx.recordChange(Change{Entity: domain.EntityEquipment, Action: domain.ActionDelete, Before: cloneEquipment(current)})
	return nil
}

// UpsertLocation creates a location or updates the one with the same name.
func (tx *transaction) UpsertLocation(l Location) (Location, error) {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return Location{}, domain.ValidationError{Field: "name", Message: "location name required"}
	}
	if existing, ok := findLocationByName(tx.state.locations, l.Name); ok {
		before := existing
		existing.Address = l.Address
		existing.UpdatedAt = tx.now
		tx.state.locations[existing.ID] = existing
		tx.recordChange(Change{Entity: domain.EntityLocation, Action: domain.ActionUpdate, Before: before, After: existing})
		return existing, nil
	}
	tx.state.seq.Location++
	l.ID = tx.state.seq.Location
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.locations[l.ID] = l
	tx.recordChange(Change{Entity: domain.EntityLocation, Action: domain.ActionCreate, After: l})
	return l, nil
}

// DeleteLocation removes a location that no item references.
func (tx *transaction) DeleteLocation(id int64) error {
	current, ok := tx.state.locations[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityLocation, ID: id}
	}
	if count := domain.CountAt(sortedEquipment(tx.state.equipment), current.Name); count > 0 {
		return domain.IntegrityError{Location: current.Name, Count: count}
	}
	delete(tx.state.locations, id)
	tx.recordChange(Change{Entity: domain.EntityLocation, Action: domain.ActionDelete, Before: current})
	return nil
}

// AppendMovement appends a history record stamped with the commit time when
// no date is supplied.
func (tx *transaction) AppendMovement(m MovementRecord) (MovementRecord, error) {
	if strings.TrimSpace(m.Destination) == "" {
		return MovementRecord{}, domain.ValidationError{Field: "destination", Message: "destination required"}
	}
	tx.state.seq.Movement++
	m.ID = tx.state.seq.Movement
	if m.Date.IsZero() {
		m.Date = tx.now
	}
	m.Date = m.Date.UTC()
	tx.state.history[m.ID] = m
	tx.recordChange(Change{Entity: domain.EntityMovement, Action: domain.ActionCreate, After: m})
	return m, nil
}
