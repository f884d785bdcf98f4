package core

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"inventario/internal/infra/lock"
	"inventario/pkg/domain"
)

// serialAttempts bounds retries when a generated serial collides.
const serialAttempts = 8

// NewEquipment is the input of CreateEquipment. Zero values take defaults.
type NewEquipment struct {
	Name         string
	SerialNumber string
	Category     domain.Category
	Status       domain.Status
	Location     string
	ParentID     *int64
	Description  string
	Notes        string
	Actor        string
}

// EquipmentPatch is a partial update; nil fields are left unchanged.
type EquipmentPatch struct {
	Name         *string
	SerialNumber *string
	Category     *domain.Category
	Status       *domain.Status
	Description  *string
	Notes        *string
	// Location relocates a top-level item. It cannot be set on a contained
	// item unless Detach is also set.
	Location *string
	// ParentID places the item inside a rack and clears its location.
	ParentID *int64
	// Detach takes the item out of its rack; Location is then required.
	Detach bool
	Actor  string
}

// EquipmentDetail is an item with its resolved hierarchy.
type EquipmentDetail struct {
	domain.Equipment
	DisplayStatus     domain.Status      `json:"display_status"`
	EffectiveLocation string             `json:"effective_location"`
	Children          []domain.Equipment `json:"children"`
	Rack              *domain.Equipment  `json:"rack,omitempty"`
}

func detailOf(all []domain.Equipment, item domain.Equipment) EquipmentDetail {
	detail := EquipmentDetail{
		Equipment:         item,
		DisplayStatus:     domain.DisplayStatus(all, item),
		EffectiveLocation: domain.EffectiveLocation(all, item),
		Children:          domain.ChildrenOf(all, item.ID),
	}
	if item.ParentID != nil {
		for _, candidate := range all {
			if candidate.ID == *item.ParentID {
				rack := candidate
				detail.Rack = &rack
				break
			}
		}
	}
	return detail
}

func validateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > domain.NotesMaxLength {
		return domain.ValidationError{Field: "notes", Message: fmt.Sprintf("notes exceed %d characters", domain.NotesMaxLength)}
	}
	return nil
}

func validateCategory(c domain.Category) error {
	if !c.Valid() {
		return domain.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", c)}
	}
	return nil
}

func validateStatus(st domain.Status) error {
	if !st.Valid() {
		return domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", st)}
	}
	return nil
}

// GetEquipment returns an item from the snapshot with its hierarchy resolved.
func (s *Service) GetEquipment(id int64) (EquipmentDetail, error) {
	inv := s.Inventory()
	for _, item := range inv.Equipment {
		if item.ID == id {
			return detailOf(inv.Equipment, item), nil
		}
	}
	return EquipmentDetail{}, domain.NotFoundError{Entity: domain.EntityEquipment, ID: id}
}

// LookupSerial resolves a scanned code to the item with exactly that serial.
func (s *Service) LookupSerial(serial string) (EquipmentDetail, error) {
	serial = strings.TrimSpace(serial)
	inv := s.Inventory()
	item, ok := domain.FindBySerial(inv.Equipment, serial)
	if !ok {
		return EquipmentDetail{}, domain.NotFoundError{Entity: domain.EntityEquipment, Name: serial}
	}
	return detailOf(inv.Equipment, item), nil
}

// CreateEquipment validates in, fills defaults and stores the new item.
func (s *Service) CreateEquipment(ctx context.Context, in NewEquipment) (domain.Equipment, domain.Result, error) {
	item := domain.Equipment{
		Name:         strings.TrimSpace(in.Name),
		SerialNumber: strings.TrimSpace(in.SerialNumber),
		Category:     in.Category,
		Status:       in.Status,
		Location:     strings.TrimSpace(in.Location),
		ParentID:     in.ParentID,
		Description:  strings.TrimSpace(in.Description),
		Notes:        in.Notes,
	}
	if item.Name == "" {
		return domain.Equipment{}, domain.Result{}, domain.ValidationError{Field: "name", Message: "name required"}
	}
	if item.Category == "" {
		item.Category = s.defaultCategory
	}
	if item.Status == "" {
		item.Status = domain.StatusOperational
	}
	if err := validateCategory(item.Category); err != nil {
		return domain.Equipment{}, domain.Result{}, err
	}
	if err := validateStatus(item.Status); err != nil {
		return domain.Equipment{}, domain.Result{}, err
	}
	if err := validateNotes(item.Notes); err != nil {
		return domain.Equipment{}, domain.Result{}, err
	}
	if item.ParentID != nil && item.Location != "" {
		return domain.Equipment{}, domain.Result{}, domain.ValidationError{Field: "location", Message: "items inside a rack inherit its location"}
	}

	parent := ""
	if item.ParentID != nil {
		parent = fmt.Sprint(*item.ParentID)
	}
	w := write{
		op:     "create_equipment",
		entity: domain.EntityEquipment,
		actor:  s.actor(in.Actor),
		key:    lock.Key("create_equipment", nil, item.Name, item.SerialNumber, item.Location, parent),
	}
	var (
		created domain.Equipment
		result  domain.Result
	)
	err := s.mutate(ctx, w, func(ctx context.Context) (int64, error) {
		var err error
		result, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			candidate := item
			view := tx.Snapshot()
			if candidate.ParentID == nil && candidate.Location == "" {
				locations := view.ListLocations()
				if len(locations) == 0 {
					return domain.ValidationError{Field: "location", Message: "no locations defined"}
				}
				candidate.Location = locations[0].Name
			}
			if candidate.SerialNumber == "" {
				serial, err := s.uniqueSerial(view.ListEquipment())
				if err != nil {
					return err
				}
				candidate.SerialNumber = serial
			}
			var err error
			created, err = tx.CreateEquipment(candidate)
			return err
		})
		return created.ID, err
	})
	if err != nil {
		return domain.Equipment{}, result, err
	}
	return created, result, nil
}

func (s *Service) uniqueSerial(existing []domain.Equipment) (string, error) {
	for i := 0; i < serialAttempts; i++ {
		serial, err := s.serials()
		if err != nil {
			return "", err
		}
		if _, taken := domain.FindBySerial(existing, serial); !taken {
			return serial, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique serial after %d attempts", serialAttempts)
}

// UpdateEquipment applies patch to the item with id.
func (s *Service) UpdateEquipment(ctx context.Context, id int64, patch EquipmentPatch) (domain.Equipment, domain.Result, error) {
	if err := checkPatch(patch); err != nil {
		return domain.Equipment{}, domain.Result{}, err
	}
	var (
		updated domain.Equipment
		result  domain.Result
	)
	w := write{op: "update_equipment", entity: domain.EntityEquipment, actor: s.actor(patch.Actor)}
	err := s.mutate(ctx, w, func(ctx context.Context) (int64, error) {
		var err error
		result, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateEquipment(id, func(e *domain.Equipment) error {
				return applyPatch(e, patch)
			})
			return err
		})
		return id, err
	})
	if err != nil {
		return domain.Equipment{}, result, err
	}
	return updated, result, nil
}

func checkPatch(p EquipmentPatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.ValidationError{Field: "name", Message: "name required"}
	}
	if p.Category != nil {
		if err := validateCategory(*p.Category); err != nil {
			return err
		}
	}
	if p.Status != nil {
		if err := validateStatus(*p.Status); err != nil {
			return err
		}
	}
	if p.Notes != nil {
		if err := validateNotes(*p.Notes); err != nil {
			return err
		}
	}
	if p.ParentID != nil && (p.Location != nil || p.Detach) {
		return domain.ValidationError{Field: "parent_id", Message: "parent_id cannot be combined with location or detach"}
	}
	if p.Detach && (p.Location == nil || strings.TrimSpace(*p.Location) == "") {
		return domain.ValidationError{Field: "location", Message: "detaching an item requires a location"}
	}
	return nil
}

func applyPatch(e *domain.Equipment, p EquipmentPatch) error {
	if p.Name != nil {
		e.Name = strings.TrimSpace(*p.Name)
	}
	if p.SerialNumber != nil {
		e.SerialNumber = strings.TrimSpace(*p.SerialNumber)
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	switch {
	case p.ParentID != nil:
		domain.ContainedIn(*p.ParentID).Apply(e)
	case p.Location != nil:
		if e.IsContained() && !p.Detach {
			return domain.ValidationError{Field: "location", Message: "items inside a rack inherit its location; detach first"}
		}
		domain.Located(strings.TrimSpace(*p.Location)).Apply(e)
	}
	return nil
}

// DeleteEquipment removes an item. Without confirmation nothing is written.
func (s *Service) DeleteEquipment(ctx context.Context, id int64, confirmed bool, actor string) error {
	item, ok := s.store.GetEquipment(id)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityEquipment, ID: id}
	}
	if !confirmed {
		return domain.ConfirmationRequiredError{Reason: "¿Eliminar?", Items: []string{item.Name}}
	}
	w := write{op: "delete_equipment", entity: domain.EntityEquipment, actor: s.actor(actor)}
	return s.mutate(ctx, w, func(ctx context.Context) (int64, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteEquipment(id)
		})
		return id, err
	})
}
