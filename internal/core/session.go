package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventario/pkg/domain"
)

// SessionState is the per-user screen state. It is a value: Reduce returns a
// new state and never mutates its input.
type SessionState struct {
	Search      string          `json:"search"`
	Category    domain.Category `json:"category"`
	Selection   domain.IDSet    `json:"selection"`
	Cart        domain.IDSet    `json:"cart"`
	Destination string          `json:"destination"`
}

// NewSessionState returns the initial state with the Todas filter.
func NewSessionState() SessionState {
	return SessionState{Category: domain.CategoryAll}
}

// ActionType names a session action.
type ActionType string

const (
	ActionSetSearch          ActionType = "set_search"
	ActionSetCategory        ActionType = "set_category"
	ActionToggleSelect       ActionType = "toggle_select"
	ActionToggleCart         ActionType = "toggle_cart"
	ActionAddSelectionToCart ActionType = "add_selection_to_cart"
	ActionSelectAllVisible   ActionType = "select_all_visible"
	ActionClearCart          ActionType = "clear_cart"
	ActionSetDestination     ActionType = "set_destination"
	ActionScanResult         ActionType = "scan_result"
)

// Action is one user interaction. Only the fields relevant to Type are read.
type Action struct {
	Type     ActionType      `json:"type"`
	Text     string          `json:"text,omitempty"`
	Category domain.Category `json:"category,omitempty"`
	ID       int64           `json:"id,omitempty"`
}

// Reduce applies action to state against the current inventory.
func Reduce(state SessionState, action Action, inv Inventory) (SessionState, error) {
	next := state
	switch action.Type {
	case ActionSetSearch:
		next.Search = action.Text
	case ActionSetCategory:
		if action.Category != domain.CategoryAll && action.Category != "" && !action.Category.Valid() {
			return state, domain.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", action.Category)}
		}
		next.Category = action.Category
	case ActionToggleSelect:
		if state.Cart.Contains(action.ID) {
			return state, nil
		}
		next.Selection = domain.ToggleSelection(state.Selection, action.ID)
	case ActionToggleCart:
		next.Cart = domain.ToggleCart(state.Cart, action.ID)
		next.Selection = state.Selection.Without(action.ID)
	case ActionAddSelectionToCart:
		next.Cart, next.Selection = domain.AddSelectionToCart(state.Cart, state.Selection)
	case ActionSelectAllVisible:
		visible := domain.NewIDSet(visibleIDs(state, inv)...)
		if visible.Len() > 0 && allIn(visible, state.Cart) {
			next.Cart = domain.IDSet{}
		} else {
			next.Cart = visible
		}
		next.Selection = domain.IDSet{}
	case ActionClearCart:
		next.Cart = domain.IDSet{}
	case ActionSetDestination:
		next.Destination = action.Text
	case ActionScanResult:
		next.Search = action.Text
	default:
		return state, domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown action %q", action.Type)}
	}
	return next, nil
}

func allIn(subset, set domain.IDSet) bool {
	for _, id := range subset.IDs() {
		if !set.Contains(id) {
			return false
		}
	}
	return true
}

func visibleIDs(state SessionState, inv Inventory) []int64 {
	visible := domain.Visible(inv.Equipment, state.Search, state.Category)
	ids := make([]int64, 0, len(visible))
	for _, item := range visible {
		ids = append(ids, item.ID)
	}
	return ids
}

// Row is one visible top-level item.
type Row struct {
	domain.Equipment
	DisplayStatus domain.Status      `json:"display_status"`
	Children      []domain.Equipment `json:"children"`
	InCart        bool               `json:"in_cart"`
	Selected      bool               `json:"selected"`
}

// View is everything the inventory screen renders for one session.
type View struct {
	State     SessionState            `json:"state"`
	Rows      []Row                   `json:"rows"`
	Locations []LocationSummary       `json:"locations"`
	History   []domain.MovementRecord `json:"history"`
	CartCount int                     `json:"cart_count"`
	// NeedsConfirmation is set when a cart item (or a rack in the cart) is in repair.
	NeedsConfirmation bool   `json:"needs_confirmation"`
	TransferPrompt    string `json:"transfer_prompt,omitempty"`
}

// BuildView derives the screen for state from inv.
func BuildView(state SessionState, inv Inventory) View {
	visible := domain.Visible(inv.Equipment, state.Search, state.Category)
	rows := make([]Row, 0, len(visible))
	for _, item := range visible {
		rows = append(rows, Row{
			Equipment:     item,
			DisplayStatus: domain.DisplayStatus(inv.Equipment, item),
			Children:      domain.ChildrenOf(inv.Equipment, item.ID),
			InCart:        state.Cart.Contains(item.ID),
			Selected:      state.Selection.Contains(item.ID),
		})
	}
	view := View{
		State:     state,
		Rows:      rows,
		Locations: Summaries(inv),
		History:   inv.History,
		CartCount: state.Cart.Len(),
	}
	for _, item := range inv.Equipment {
		if state.Cart.Contains(item.ID) && domain.NeedsRepairConfirmation(inv.Equipment, item) {
			view.NeedsConfirmation = true
			break
		}
	}
	if view.CartCount > 0 && state.Destination != "" {
		view.TransferPrompt = TransferPrompt(view.CartCount, state.Destination)
	}
	return view
}

// EntitySession identifies a screen session in errors.
const EntitySession domain.EntityType = "session"

// SessionTTL is how long an idle session is kept.
const SessionTTL = 12 * time.Hour

type sessionEntry struct {
	state   SessionState
	touched time.Time
}

// Sessions keeps session states by id.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
	now     func() time.Time
	ttl     time.Duration
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{entries: make(map[string]sessionEntry), now: time.Now, ttl: SessionTTL}
}

// Create starts a session with the initial state.
func (r *Sessions) Create() (string, SessionState) {
	id := uuid.New().String()
	state := NewSessionState()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	r.entries[id] = sessionEntry{state: state, touched: r.now()}
	return id, state
}

// Get returns the state of session id.
func (r *Sessions) Get(id string) (SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return SessionState{}, false
	}
	entry.touched = r.now()
	r.entries[id] = entry
	return entry.state, true
}

// Apply reduces action onto session id.
func (r *Sessions) Apply(id string, action Action, inv Inventory) (SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return SessionState{}, domain.NotFoundError{Entity: EntitySession, Name: id}
	}
	next, err := Reduce(entry.state, action, inv)
	if err != nil {
		return entry.state, err
	}
	r.entries[id] = sessionEntry{state: next, touched: r.now()}
	return next, nil
}

// Update replaces the state of session id with fn applied to its current
// state, under the registry lock. It reports whether the session exists.
func (r *Sessions) Update(id string, fn func(SessionState) SessionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	r.entries[id] = sessionEntry{state: fn(entry.state), touched: r.now()}
	return true
}

func (r *Sessions) evictLocked() {
	cutoff := r.now().Add(-r.ttl)
	for id, entry := range r.entries {
		if entry.touched.Before(cutoff) {
			delete(r.entries, id)
		}
	}
}

// TransferCart moves the cart of session id to its destination. On success
// the transferred ids leave the cart and selection; anything the session
// changed while the transfer ran is kept. On failure the state is unchanged.
func (s *Service) TransferCart(ctx context.Context, sessions *Sessions, id string, req TransferRequest) (domain.MovementRecord, domain.Result, error) {
	state, ok := sessions.Get(id)
	if !ok {
		return domain.MovementRecord{}, domain.Result{}, domain.NotFoundError{Entity: EntitySession, Name: id}
	}
	req.IDs = state.Cart.IDs()
	if req.Destination == "" {
		req.Destination = state.Destination
	}
	record, result, err := s.Transfer(ctx, req)
	if err != nil {
		return domain.MovementRecord{}, result, err
	}
	moved := req.IDs
	sessions.Update(id, func(current SessionState) SessionState {
		for _, itemID := range moved {
			current.Cart = current.Cart.Without(itemID)
			current.Selection = current.Selection.Without(itemID)
		}
		return current
	})
	return record, result, nil
}
