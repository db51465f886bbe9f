package disputes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
)

// Service keeps dispute rows in step with provider events. Statuses only move forward.
type Service interface {
	Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) (*ApplyResult, error)
}

type ApplyInput struct {
	OrderID           uuid.UUID
	ProviderDisputeID string
	Reason            string
	AmountCents       int64
	Status            enums.DisputeStatus
	OccurredAt        time.Time
}

// ApplyResult reports the stored dispute and whether this call changed it.
type ApplyResult struct {
	Dispute *models.Dispute
	Changed bool
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "disputes repository required")
	}
	return &service{repo: repo}, nil
}

func rank(status enums.DisputeStatus) int {
	switch status {
	case enums.DisputeStatusCreated:
		return 0
	case enums.DisputeStatusUnderReview:
		return 1
	case enums.DisputeStatusClosedWon, enums.DisputeStatusClosedLost:
		return 2
	default:
		return -1
	}
}

// sourcesFor lists the statuses strictly behind target.
func sourcesFor(target enums.DisputeStatus) []enums.DisputeStatus {
	var out []enums.DisputeStatus
	for _, candidate := range []enums.DisputeStatus{
		enums.DisputeStatusCreated,
		enums.DisputeStatusUnderReview,
		enums.DisputeStatusClosedWon,
		enums.DisputeStatusClosedLost,
	} {
		if rank(candidate) < rank(target) {
			out = append(out, candidate)
		}
	}
	return out
}

func (s *service) Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) (*ApplyResult, error) {
	if input.ProviderDisputeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider dispute id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid dispute status %q", input.Status)
	}
	at := input.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	repo := s.repo.WithTx(tx)

	dispute := &models.Dispute{
		OrderID:           input.OrderID,
		ProviderDisputeID: input.ProviderDisputeID,
		Reason:            input.Reason,
		AmountCents:       input.AmountCents,
		Status:            input.Status,
		OpenedAt:          at,
	}
	if input.Status.IsClosed() {
		dispute.ClosedAt = &at
	}
	inserted, err := repo.InsertIfAbsent(ctx, dispute)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert dispute")
	}
	if inserted {
		return &ApplyResult{Dispute: dispute, Changed: true}, nil
	}

	changed := false
	if from := sourcesFor(input.Status); len(from) > 0 {
		changed, err = repo.Advance(ctx, input.ProviderDisputeID, from, input.Status, at)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance dispute")
		}
	}

	current, err := repo.FindByProviderID(ctx, input.ProviderDisputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("dispute %s vanished", input.ProviderDisputeID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload dispute")
	}
	return &ApplyResult{Dispute: current, Changed: changed}, nil
}
