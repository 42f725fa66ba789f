// Package order enforces the order status lifecycle and its coupled payment
// invariants.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

var (
	// ErrUnauthorized marks an ownership mismatch on a buyer action. It is
	// distinct from not-found on purpose.
	ErrUnauthorized = errors.New("order: caller does not own this order")
	// ErrIllegalTransition marks a transition whose precondition does not
	// hold; the order is left untouched.
	ErrIllegalTransition = errors.New("order: illegal transition")
)

type Store interface {
	GetOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	OrdersByEmail(ctx context.Context, email string) ([]*models.Order, error)
	UpdateOrderStatusIf(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, patch models.OrderPatch) (models.WriteResult, error)
	UpdateOrderUnlessRefunded(ctx context.Context, id primitive.ObjectID, patch models.OrderPatch) (models.WriteResult, error)
}

type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// GetOwned returns the order only when callerEmail matches its contact
// identity.
func (m *Manager) GetOwned(ctx context.Context, id primitive.ObjectID, callerEmail string) (*models.Order, error) {
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(o.Email, callerEmail) {
		return nil, ErrUnauthorized
	}
	return o, nil
}

func (m *Manager) OrdersFor(ctx context.Context, email string) ([]*models.Order, error) {
	return m.store.OrdersByEmail(ctx, email)
}

// apply resolves a conditional write result into the package's error model.
func apply(res models.WriteResult, err error) error {
	if err != nil {
		return err
	}
	switch res {
	case models.WriteConflict:
		return fmt.Errorf("%w: order changed concurrently", ErrIllegalTransition)
	case models.WriteNotFound:
		return models.ErrNotFound
	}
	return nil
}

// Cancel is a buyer action, legal only from Pending or Processing. Payment
// status is left untouched.
func (m *Manager) Cancel(ctx context.Context, id primitive.ObjectID, callerEmail string) error {
	o, err := m.GetOwned(ctx, id, callerEmail)
	if err != nil {
		return err
	}
	if o.Status != models.StatusPending && o.Status != models.StatusProcessing {
		return fmt.Errorf("%w: cannot cancel an order in status %q", ErrIllegalTransition, o.Status)
	}
	return apply(m.store.UpdateOrderStatusIf(ctx, id,
		[]models.OrderStatus{models.StatusPending, models.StatusProcessing},
		models.OrderPatch{Status: models.StatusCancelled}))
}

// RequestReturn is a buyer action, legal only from Completed. The free-text
// reason is stashed in the transaction-reference field.
func (m *Manager) RequestReturn(ctx context.Context, id primitive.ObjectID, callerEmail, reason string) error {
	o, err := m.GetOwned(ctx, id, callerEmail)
	if err != nil {
		return err
	}
	if o.Status != models.StatusCompleted {
		return fmt.Errorf("%w: returns can only be requested for completed orders, not %q", ErrIllegalTransition, o.Status)
	}
	return apply(m.store.UpdateOrderStatusIf(ctx, id,
		[]models.OrderStatus{models.StatusCompleted},
		models.OrderPatch{Status: models.StatusReturnRequested, TransactionID: &reason}))
}

// ResolveReturn is the seller's decision on a pending return request.
// Approval refunds the order; denial restores it to Completed/Paid.
func (m *Manager) ResolveReturn(ctx context.Context, id primitive.ObjectID, approve bool) error {
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != models.StatusReturnRequested {
		return fmt.Errorf("%w: order is not awaiting a return decision", ErrIllegalTransition)
	}
	patch := models.OrderPatch{Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid}
	if approve {
		patch = models.OrderPatch{Status: models.StatusReturned, PaymentStatus: models.PaymentRefunded}
	}
	return apply(m.store.UpdateOrderStatusIf(ctx, id,
		[]models.OrderStatus{models.StatusReturnRequested}, patch))
}

var knownStatuses = map[models.OrderStatus]bool{
	models.StatusPending:         true,
	models.StatusProcessing:      true,
	models.StatusCompleted:       true,
	models.StatusDelivered:       true,
	models.StatusCancelled:       true,
	models.StatusReturnRequested: true,
	models.StatusReturned:        true,
}

// SetStatus is the seller's generic status update. A refunded order is
// frozen. Moving to Completed/Delivered forces Paid; moving to Returned
// forces Refunded.
func (m *Manager) SetStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) error {
	if !knownStatuses[status] {
		return models.FieldErrors{"status": fmt.Sprintf("unknown status %q", status)}
	}
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if o.PaymentStatus == models.PaymentRefunded {
		return fmt.Errorf("%w: refunded orders cannot be updated", ErrIllegalTransition)
	}
	patch := models.OrderPatch{Status: status}
	switch status {
	case models.StatusCompleted, models.StatusDelivered:
		patch.PaymentStatus = models.PaymentPaid
	case models.StatusReturned:
		patch.PaymentStatus = models.PaymentRefunded
	}
	return apply(m.store.UpdateOrderUnlessRefunded(ctx, id, patch))
}
