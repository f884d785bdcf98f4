package core

import (
	"context"
	"strings"

	"inventario/pkg/domain"
)

// LocationInput is the input of UpsertLocation.
type LocationInput struct {
	Name    string
	Address string
	Actor   string
}

// LocationSummary is a location card: how many independent items sit there
// and whether it may be deleted.
type LocationSummary struct {
	domain.Location
	Count     int  `json:"count"`
	CanDelete bool `json:"can_delete"`
}

// Summaries builds one card per location in ascending id order.
func Summaries(inv Inventory) []LocationSummary {
	out := make([]LocationSummary, 0, len(inv.Locations))
	for _, loc := range inv.Locations {
		count := domain.CountAt(inv.Equipment, loc.Name)
		out = append(out, LocationSummary{Location: loc, Count: count, CanDelete: count == 0})
	}
	return out
}

// Locations returns the location cards of the current snapshot.
func (s *Service) Locations() []LocationSummary {
	return Summaries(s.Inventory())
}

// History returns movement records, newest first.
func (s *Service) History() []domain.MovementRecord {
	return s.Inventory().History
}

// UpsertLocation creates a location or updates the address of the one with
// the same name.
func (s *Service) UpsertLocation(ctx context.Context, in LocationInput) (domain.Location, error) {
	loc := domain.Location{Name: strings.TrimSpace(in.Name), Address: strings.TrimSpace(in.Address)}
	if loc.Name == "" {
		return domain.Location{}, domain.ValidationError{Field: "name", Message: "location name required"}
	}
	var saved domain.Location
	w := write{op: "upsert_location", entity: domain.EntityLocation, actor: s.actor(in.Actor)}
	err := s.mutate(ctx, w, func(ctx context.Context) (int64, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			saved, err = tx.UpsertLocation(loc)
			return err
		})
		return saved.ID, err
	})
	if err != nil {
		return domain.Location{}, err
	}
	return saved, nil
}

// DeleteLocation removes an empty location. A location still holding items
// fails with IntegrityError before confirmation is considered.
func (s *Service) DeleteLocation(ctx context.Context, id int64, confirmed bool, actor string) error {
	inv := s.Inventory()
	var target *domain.Location
	for i := range inv.Locations {
		if inv.Locations[i].ID == id {
			target = &inv.Locations[i]
			break
		}
	}
	if target == nil {
		return domain.NotFoundError{Entity: domain.EntityLocation, ID: id}
	}
	if count := domain.CountAt(inv.Equipment, target.Name); count > 0 {
		return domain.IntegrityError{Location: target.Name, Count: count}
	}
	if !confirmed {
		return domain.ConfirmationRequiredError{Reason: "¿Eliminar?", Items: []string{target.Name}}
	}
	w := write{op: "delete_location", entity: domain.EntityLocation, actor: s.actor(actor)}
	return s.mutate(ctx, w, func(ctx context.Context) (int64, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteLocation(id)
		})
		return id, err
	})
}
