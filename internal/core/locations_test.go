package core

import (
	"context"
	"errors"
	"testing"

	"inventario/pkg/domain"
)

func TestDeleteLocationBlockedUntilEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seed(t, svc, []string{"Almacén Central", "Teatro"},
		located(1, "Foco", "Teatro"),
		located(2, "Mesa", "Teatro"),
		rack(3, "Rack 1", "Almacén Central"),
	)
	teatro := svc.Locations()[1]
	if teatro.Name != "Teatro" || teatro.Count != 2 || teatro.CanDelete {
		t.Fatalf("unexpected card %+v", teatro)
	}

	err := svc.DeleteLocation(ctx, teatro.ID, true, "")
	var integrity domain.IntegrityError
	if !errors.As(err, &integrity) || integrity.Count != 2 || integrity.Location != "Teatro" {
		t.Fatalf("expected integrity error with count 2, got %v", err)
	}
	if len(svc.Inventory().Locations) != 2 {
		t.Fatalf("refused delete must not write")
	}

	if _, _, err := svc.Transfer(ctx, TransferRequest{IDs: []int64{1, 2}, Destination: "Almacén Central"}); err != nil {
		t.Fatalf("move out: %v", err)
	}
	if card := svc.Locations()[1]; card.Count != 0 || !card.CanDelete {
		t.Fatalf("expected empty Teatro, got %+v", card)
	}

	var confirm domain.ConfirmationRequiredError
	if err := svc.DeleteLocation(ctx, teatro.ID, false, ""); !errors.As(err, &confirm) {
		t.Fatalf("expected confirmation gate, got %v", err)
	}
	if err := svc.DeleteLocation(ctx, teatro.ID, true, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(svc.Locations()) != 1 {
		t.Fatalf("expected Teatro removed")
	}
	var notFound domain.NotFoundError
	if err := svc.DeleteLocation(ctx, teatro.ID, true, ""); !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteLocationIgnoresContainedItems(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seed(t, svc, []string{"Almacén Central", "Teatro"},
		rack(1, "Rack 1", "Almacén Central"),
		inRack(2, "Amp", 1, domain.StatusOperational),
	)
	teatro := svc.Locations()[1]
	if err := svc.DeleteLocation(ctx, teatro.ID, true, ""); err != nil {
		t.Fatalf("delete empty location: %v", err)
	}
}

func TestUpsertLocationKeyedByName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.UpsertLocation(ctx, LocationInput{Name: " Teatro ", Address: "Calle 1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.UpsertLocation(ctx, LocationInput{Name: "Teatro", Address: "Calle 2"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if first.ID != second.ID || second.Address != "Calle 2" {
		t.Fatalf("expected same location updated, got %+v then %+v", first, second)
	}
	if len(svc.Locations()) != 1 {
		t.Fatalf("expected a single location")
	}
	var verr domain.ValidationError
	if _, err := svc.UpsertLocation(ctx, LocationInput{Name: " "}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
