package core

import (
	"context"

	"themecore/pkg/domain"
)

// CreatePurchase records a new checkout in PENDING status.
func (s *Service) CreatePurchase(ctx context.Context, purchase Purchase) (Purchase, Result, error) {
	var created Purchase
	var res Result
	err := s.run(ctx, "create_purchase", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreatePurchase(purchase)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// GetPurchase retrieves a purchase by ID.
func (s *Service) GetPurchase(ctx context.Context, id string) (Purchase, error) {
	var purchase Purchase
	err := s.store.View(ctx, func(view TransactionView) error {
		p, ok := view.FindPurchase(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityPurchase, ID: id}
		}
		purchase = p
		return nil
	})
	return purchase, err
}

// validTransition reports whether a purchase may move from one status to
// another. PENDING resolves once to COMPLETED or FAILED; COMPLETED may later
// move to REFUNDED. FAILED and REFUNDED are terminal.
func validTransition(from, to domain.PurchaseStatus) bool {
	switch from {
	case domain.PurchasePending:
		return to == domain.PurchaseCompleted || to == domain.PurchaseFailed
	case domain.PurchaseCompleted:
		return to == domain.PurchaseRefunded
	default:
		return false
	}
}

// ApplyPurchaseEvent applies one payment-provider event. The event ID is the
// provider's event identifier; redelivered events are no-ops returning the
// purchase as it stands. A COMPLETED event provisions the purchased
// entitlement in the same transaction: team SKUs set the owning
// organization's seat capacity, the single-seat SKU confirms the owning
// user's plan. Refunds record the transition without reclaiming entitlements.
func (s *Service) ApplyPurchaseEvent(ctx context.Context, event PurchaseEvent) (Purchase, Result, error) {
	var purchase Purchase
	var res Result
	err := s.run(ctx, "apply_purchase_event", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			current, ok := view.FindPurchase(event.PurchaseID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityPurchase, ID: event.PurchaseID}
			}
			if _, applied := view.FindPurchaseEvent(event.ID); applied {
				purchase = current
				return nil
			}
			if !validTransition(current.Status, event.Status) {
				return domain.InvalidStateError{
					Entity: domain.EntityPurchase,
					ID:     current.ID,
					Reason: "cannot transition " + string(current.Status) + " to " + string(event.Status),
				}
			}
			if _, txErr := tx.CreatePurchaseEvent(event); txErr != nil {
				return txErr
			}
			var txErr error
			purchase, txErr = tx.UpdatePurchase(current.ID, func(p *Purchase) error {
				p.Status = event.Status
				return nil
			})
			if txErr != nil {
				return txErr
			}
			if event.Status == domain.PurchaseCompleted {
				return applyEntitlement(tx, purchase)
			}
			return nil
		})
		return event.PurchaseID, err
	})
	return purchase, res, err
}

// applyEntitlement provisions what a completed purchase paid for.
func applyEntitlement(tx Transaction, purchase Purchase) error {
	if purchase.OrganizationID != nil && purchase.Plan.IsTeam() {
		seats := purchase.Plan.SeatCount()
		if purchase.Seats != nil {
			seats = *purchase.Seats
		}
		_, err := tx.UpdateOrganization(*purchase.OrganizationID, func(o *Organization) error {
			o.Seats = seats
			return nil
		})
		return err
	}
	if purchase.UserID != nil {
		_, err := tx.UpdateUser(*purchase.UserID, func(u *User) error {
			u.Plan = domain.PlanPro
			return nil
		})
		return err
	}
	return nil
}

// ListPurchaseEvents returns the applied events for a purchase.
func (s *Service) ListPurchaseEvents(ctx context.Context, purchaseID string) ([]PurchaseEvent, error) {
	var out []PurchaseEvent
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindPurchase(purchaseID); !ok {
			return domain.NotFoundError{Entity: domain.EntityPurchase, ID: purchaseID}
		}
		for _, e := range view.ListPurchaseEvents() {
			if e.PurchaseID == purchaseID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
