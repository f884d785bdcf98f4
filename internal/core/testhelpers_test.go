package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"inventario/internal/infra/persistence/memory"
	"inventario/pkg/domain"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine())
	store.SetNowFunc(func() time.Time { return fixedNow })
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(store, opts...), store
}

// seed writes locations and items directly and refreshes the service.
func seed(t *testing.T, svc *Service, locations []string, items ...domain.Equipment) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, name := range locations {
			if _, err := tx.UpsertLocation(domain.Location{Name: name}); err != nil {
				return err
			}
		}
		for _, item := range items {
			if item.Status == "" {
				item.Status = domain.StatusOperational
			}
			if item.Category == "" {
				item.Category = domain.CategoryMisc
			}
			if _, err := tx.CreateEquipment(item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func located(id int64, name, location string) domain.Equipment {
	return domain.Equipment{Base: domain.Base{ID: id}, Name: name, SerialNumber: name + "-sn", Location: location}
}

func rack(id int64, name, location string) domain.Equipment {
	item := located(id, name, location)
	item.Category = domain.CategoryRack
	return item
}

func inRack(id int64, name string, rackID int64, status domain.Status) domain.Equipment {
	return domain.Equipment{Base: domain.Base{ID: id}, Name: name, SerialNumber: name + "-sn", ParentID: ptr(rackID), Status: status}
}

func findItem(t *testing.T, inv Inventory, id int64) domain.Equipment {
	t.Helper()
	for _, item := range inv.Equipment {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("item %d not in inventory", id)
	return domain.Equipment{}
}

// failingStore wraps a memory store and fails every write.
type failingStore struct {
	*memory.Store
	err error
}

func (f failingStore) RunInTransaction(context.Context, func(domain.Transaction) error) (domain.Result, error) {
	return domain.Result{}, f.err
}

// blockingStore blocks writes until the context ends.
type blockingStore struct {
	*memory.Store
}

func (b blockingStore) RunInTransaction(ctx context.Context, _ func(domain.Transaction) error) (domain.Result, error) {
	<-ctx.Done()
	return domain.Result{}, ctx.Err()
}

// unreadableStore commits writes but fails every read.
type unreadableStore struct {
	*memory.Store
	err error
}

func (u unreadableStore) View(context.Context, func(domain.TransactionView) error) error {
	return u.err
}

var errConnReset = errors.New("connection reset by peer")
