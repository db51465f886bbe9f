package disputes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
)

func TestApplyLifecycleIsMonotonic(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	ctx := context.Background()
	orderID := uuid.New()
	now := time.Now().UTC()

	apply := func(status enums.DisputeStatus) *ApplyResult {
		t.Helper()
		res, err := svc.Apply(ctx, conn, ApplyInput{
			OrderID:           orderID,
			ProviderDisputeID: "dp_1",
			Reason:            "fraudulent",
			AmountCents:       9900,
			Status:            status,
			OccurredAt:        now,
		})
		require.NoError(t, err)
		return res
	}

	opened := apply(enums.DisputeStatusCreated)
	assert.True(t, opened.Changed)
	assert.Equal(t, enums.DisputeStatusCreated, opened.Dispute.Status)

	again := apply(enums.DisputeStatusCreated)
	assert.False(t, again.Changed)

	review := apply(enums.DisputeStatusUnderReview)
	assert.True(t, review.Changed)
	assert.Equal(t, enums.DisputeStatusUnderReview, review.Dispute.Status)

	won := apply(enums.DisputeStatusClosedWon)
	assert.True(t, won.Changed)
	require.NotNil(t, won.Dispute.ClosedAt)

	// a closed dispute is never reopened or flipped
	for _, status := range []enums.DisputeStatus{enums.DisputeStatusCreated, enums.DisputeStatusUnderReview, enums.DisputeStatusClosedLost} {
		res := apply(status)
		assert.False(t, res.Changed, status)
		assert.Equal(t, enums.DisputeStatusClosedWon, res.Dispute.Status)
	}
}

func TestApplyClosedBeforeCreated(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	res, err := svc.Apply(context.Background(), conn, ApplyInput{
		OrderID:           uuid.New(),
		ProviderDisputeID: "dp_late",
		Status:            enums.DisputeStatusClosedLost,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, enums.DisputeStatusClosedLost, res.Dispute.Status)
	require.NotNil(t, res.Dispute.ClosedAt)

	res, err = svc.Apply(context.Background(), conn, ApplyInput{
		OrderID:           uuid.New(),
		ProviderDisputeID: "dp_late",
		Status:            enums.DisputeStatusCreated,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestApplyValidates(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), nil, ApplyInput{Status: enums.DisputeStatusCreated})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Apply(context.Background(), nil, ApplyInput{ProviderDisputeID: "dp", Status: "lost"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSourcesFor(t *testing.T) {
	assert.Empty(t, sourcesFor(enums.DisputeStatusCreated))
	assert.Equal(t, []enums.DisputeStatus{enums.DisputeStatusCreated}, sourcesFor(enums.DisputeStatusUnderReview))
	assert.Len(t, sourcesFor(enums.DisputeStatusClosedLost), 2)
}
