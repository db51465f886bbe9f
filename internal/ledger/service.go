package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// Service records money movements against orders.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*models.PaymentRecord, bool, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data a payment record requires.
type RecordInput struct {
	OrderID          uuid.UUID
	Kind             enums.PaymentRecordKind
	AmountCents      int64
	Currency         string
	ProviderEventID  string
	ProviderObjectID string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends a payment record. The bool is false when the provider event was already recorded.
func (s *service) Record(ctx context.Context, input RecordInput) (*models.PaymentRecord, bool, error) {
	if input.OrderID == uuid.Nil {
		return nil, false, fmt.Errorf("order id is required")
	}
	if !input.Kind.IsValid() {
		return nil, false, fmt.Errorf("invalid payment record kind %q", input.Kind)
	}
	if strings.TrimSpace(input.ProviderEventID) == "" {
		return nil, false, fmt.Errorf("provider event id is required")
	}
	if input.AmountCents < 0 {
		return nil, false, fmt.Errorf("amount must not be negative")
	}

	record := &models.PaymentRecord{
		OrderID:          input.OrderID,
		Kind:             input.Kind,
		AmountCents:      input.AmountCents,
		Currency:         strings.ToLower(input.Currency),
		ProviderEventID:  input.ProviderEventID,
		ProviderObjectID: input.ProviderObjectID,
	}
	created, err := s.repo.Insert(ctx, record)
	if err != nil {
		return nil, false, err
	}
	return record, created, nil
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}
