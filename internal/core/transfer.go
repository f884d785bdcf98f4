package core

import (
	"context"
	"fmt"
	"strings"

	"inventario/internal/infra/lock"
	"inventario/pkg/domain"
)

// TransferRequest moves a set of items to one destination.
type TransferRequest struct {
	IDs         []int64
	Destination string
	UserEmail   string
	DeviceInfo  string
	// Confirmed acknowledges that items in repair are being moved.
	Confirmed bool
}

// TransferPrompt is the confirmation text shown before a transfer.
func TransferPrompt(n int, destination string) string {
	return fmt.Sprintf("¿Mover %d equipos a %q?", n, destination)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Transfer relocates every requested item to the destination and appends one
// movement record, all in a single transaction. Contained items are detached
// from their rack unless the rack moves with them; racks carry their children.
// An empty request is a no-op.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (domain.MovementRecord, domain.Result, error) {
	ids := dedupe(req.IDs)
	if len(ids) == 0 {
		return domain.MovementRecord{}, domain.Result{}, nil
	}
	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		return domain.MovementRecord{}, domain.Result{}, domain.ValidationError{Field: "destination", Message: "destination required"}
	}
	actor := s.actor(strings.TrimSpace(req.UserEmail))

	w := write{
		op:     "transfer",
		entity: domain.EntityMovement,
		actor:  actor,
		key:    transferKey(ids, destination),
	}
	var (
		record domain.MovementRecord
		result domain.Result
	)
	err := s.mutate(ctx, w, func(ctx context.Context) (int64, error) {
		var err error
		result, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindLocationByName(destination); !ok {
				return domain.ValidationError{Field: "destination", Message: fmt.Sprintf("unknown location %q", destination)}
			}
			all := tx.Snapshot().ListEquipment()
			names := make([]string, 0, len(ids))
			items := make([]domain.Equipment, 0, len(ids))
			movingRacks := make(map[int64]struct{})
			var inRepair []string
			for _, id := range ids {
				item, ok := tx.FindEquipment(id)
				if !ok {
					return domain.NotFoundError{Entity: domain.EntityEquipment, ID: id}
				}
				names = append(names, item.Name)
				items = append(items, item)
				if item.IsRack() {
					movingRacks[item.ID] = struct{}{}
				}
				if domain.NeedsRepairConfirmation(all, item) {
					inRepair = append(inRepair, item.Name)
				}
			}
			if len(inRepair) > 0 && !req.Confirmed {
				return domain.ConfirmationRequiredError{Reason: "items in repair: " + TransferPrompt(len(ids), destination), Items: inRepair}
			}
			placement := domain.Located(destination)
			for _, item := range items {
				if item.ParentID != nil {
					// Children riding along with their rack stay inside it.
					if _, ok := movingRacks[*item.ParentID]; ok {
						continue
					}
				}
				if _, err := tx.UpdateEquipment(item.ID, func(e *domain.Equipment) error {
					placement.Apply(e)
					return nil
				}); err != nil {
					return err
				}
			}
			var err error
			record, err = tx.AppendMovement(domain.MovementRecord{
				UserEmail:    actor,
				Destination:  destination,
				ItemsSummary: domain.SummarizeItems(names),
				DeviceInfo:   strings.TrimSpace(req.DeviceInfo),
			})
			return err
		})
		return record.ID, err
	})
	if err != nil {
		return domain.MovementRecord{}, result, err
	}
	return record, result, nil
}

func transferKey(ids []int64, destination string) string {
	return lock.Key("transfer", ids, destination)
}
