package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"inventario/pkg/domain"
)

func seedLocations(t *testing.T, store *Store, names ...string) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, name := range names {
			if _, err := tx.UpsertLocation(domain.Location{Name: name}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed locations: %v", err)
	}
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	seedLocations(t, store, "Almacén Central")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindEquipment(42); ok {
			t.Fatalf("expected missing equipment lookup")
		}
		created, err := tx.CreateEquipment(domain.Equipment{Name: "Altavoz", Category: domain.CategoryAudio, Location: "Almacén Central", Status: domain.StatusOperational})
		if err != nil {
			return err
		}
		if created.ID != 1 {
			t.Fatalf("expected first id 1, got %d", created.ID)
		}
		if len(tx.Snapshot().ListEquipment()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListEquipment()) != 1 {
		t.Fatalf("expected persisted equipment")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListEquipment()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListEquipment()) != 1 {
		t.Fatalf("expected restored state")
	}
	if snapshot.Sequences.Equipment != 1 || snapshot.Sequences.Location != 1 {
		t.Fatalf("unexpected sequences %+v", snapshot.Sequences)
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected rules engine and now func")
	}
}

func TestStoreFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := NewStore(nil)
	seedLocations(t, store, "Teatro")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateEquipment(domain.Equipment{Name: "Foco", Location: "Teatro", Status: domain.StatusOperational}); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(store.ListEquipment()) != 0 {
		t.Fatalf("failed transaction leaked writes")
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	seedLocations(t, store, "Teatro")
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateEquipment(domain.Equipment{Name: "Fail", Location: "Teatro"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListEquipment()) != 0 {
		t.Fatalf("blocked transaction committed")
	}
}

func TestStoreCommitHookFailureDiscardsTransaction(t *testing.T) {
	store := NewStore(nil)
	seedLocations(t, store, "Teatro")
	_, err := store.RunInTransactionWithCommit(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpsertLocation(domain.Location{Name: "Sótano"})
		return err
	}, func(_ context.Context, snap Snapshot) error {
		if len(snap.Locations) != 2 {
			t.Fatalf("commit hook should see candidate state, got %d locations", len(snap.Locations))
		}
		return errors.New("disk full")
	})
	if err == nil {
		t.Fatalf("expected commit error")
	}
	if got := len(store.ListLocations()); got != 1 {
		t.Fatalf("expected one location after failed commit, got %d", got)
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	if _, err := store.RunInTransaction(ctx, func(domain.Transaction) error { called = true; return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if called {
		t.Fatalf("transaction body should not run on cancelled context")
	}
	if err := store.View(ctx, func(domain.TransactionView) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled view, got %v", err)
	}
}

func TestRackContainmentAtDataLayer(t *testing.T) {
	store := NewStore(nil)
	seedLocations(t, store, "Teatro", "Almacén Central")
	ctx := context.Background()
	var rackID, otherRackID, itemID int64
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		rack, err := tx.CreateEquipment(domain.Equipment{Name: "Rack", Category: domain.CategoryRack, Location: "Teatro"})
		if err != nil {
			return err
		}
		other, err := tx.CreateEquipment(domain.Equipment{Name: "Rack 2", Category: domain.CategoryRack, Location: "Teatro"})
		if err != nil {
			return err
		}
		child := domain.Equipment{Name: "Mezclador", Category: domain.CategoryAudio}
		domain.ContainedIn(rack.ID).Apply(&child)
		created, err := tx.CreateEquipment(child)
		if err != nil {
			return err
		}
		rackID, otherRackID, itemID = rack.ID, other.ID, created.ID
		return nil
	})
	if err != nil {
		t.Fatalf("create hierarchy: %v", err)
	}

	var ve domain.ValidationError
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateEquipment(itemID, func(e *domain.Equipment) error {
			e.Location = "Almacén Central"
			return nil
		})
		return err
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected direct location edit on contained item to fail, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateEquipment(rackID, func(e *domain.Equipment) error {
			domain.ContainedIn(otherRackID).Apply(e)
			return nil
		})
		return err
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected nesting a loaded rack to fail, got %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteEquipment(rackID)
	}); !errors.As(err, &ve) {
		t.Fatalf("expected deleting a loaded rack to fail, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateEquipment(itemID, func(e *domain.Equipment) error {
			domain.Located("Almacén Central").Apply(e)
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	moved, _ := store.GetEquipment(itemID)
	if moved.ParentID != nil || moved.Location != "Almacén Central" {
		t.Fatalf("unexpected detached item %+v", moved)
	}
}

func TestLocationUpsertAndDeleteGuard(t *testing.T) {
	store := NewStore(nil)
	seedLocations(t, store, "Teatro")
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		updated, err := tx.UpsertLocation(domain.Location{Name: " Teatro ", Address: "Calle Mayor 1"})
		if err != nil {
			return err
		}
		if updated.ID != 1 || updated.Address != "Calle Mayor 1" {
			t.Fatalf("expected upsert keyed by name, got %+v", updated)
		}
		_, err = tx.CreateEquipment(domain.Equipment{Name: "Foco", Location: "Teatro"})
		return err
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteLocation(1) })
	var integrity domain.IntegrityError
	if !errors.As(err, &integrity) || integrity.Count != 1 {
		t.Fatalf("expected integrity error with count 1, got %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpsertLocation(domain.Location{Name: ""}); err == nil {
			t.Fatalf("expected empty name rejection")
		}
		return tx.DeleteLocation(99)
	}); err == nil {
		t.Fatalf("expected not found for unknown location")
	}
}

func TestHistoryOrderedByDateDescending(t *testing.T) {
	store := NewStore(nil)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for i, offset := range []time.Duration{0, 2 * time.Hour, time.Hour} {
			if _, err := tx.AppendMovement(domain.MovementRecord{Destination: fmt.Sprintf("L%d", i), Date: base.Add(offset)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	history := store.ListHistory()
	if len(history) != 3 || history[0].Destination != "L1" || history[1].Destination != "L2" || history[2].Destination != "L0" {
		t.Fatalf("unexpected history order %+v", history)
	}
}

func TestAppendMovementStampsCommitTime(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		m, err := tx.AppendMovement(domain.MovementRecord{Destination: "Teatro"})
		if err != nil {
			return err
		}
		if !m.Date.Equal(fixed) || m.ID != 1 {
			t.Fatalf("unexpected record %+v", m)
		}
		_, err = tx.AppendMovement(domain.MovementRecord{})
		if err == nil {
			t.Fatalf("expected destination required")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	res.Merge(domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}})
	return res, nil
}
