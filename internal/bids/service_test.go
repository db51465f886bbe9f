package bids

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/internal/listings"
	dbpkg "github.com/angelmondragon/bidhouse-backend/pkg/db"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/metrics"
)

type outbidRecorder struct {
	mu    sync.Mutex
	users []uuid.UUID
}

func (o *outbidRecorder) NotifyOutbid(_ context.Context, _ models.Listing, userID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.users = append(o.users, userID)
	return nil
}

type sqliteFixture struct {
	conn     *gorm.DB
	svc      Service
	outbid   *outbidRecorder
	registry *prometheus.Registry
	seller   uuid.UUID
}

func newSQLiteFixture(t *testing.T) *sqliteFixture {
	t.Helper()
	conn := dbtest.Open(t)
	registry := prometheus.NewRegistry()
	outbid := &outbidRecorder{}
	svc, err := NewService(ServiceParams{
		Listings: listings.NewRepository(conn),
		Bids:     NewRepository(conn),
		Tx:       dbpkg.FromGorm(conn),
		Notifier: outbid,
		Metrics:  metrics.NewBidMetrics(registry),
	})
	require.NoError(t, err)
	return &sqliteFixture{conn: conn, svc: svc, outbid: outbid, registry: registry, seller: uuid.New()}
}

func (f *sqliteFixture) seedListing(t *testing.T, mutate func(*models.Listing)) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		SellerID:           f.seller,
		Title:              "Film camera",
		Currency:           "usd",
		StartingPriceCents: 1000,
		Status:             enums.ListingStatusActive,
		EndsAt:             time.Now().UTC().Add(time.Hour),
	}
	if mutate != nil {
		mutate(listing)
	}
	require.NoError(t, f.conn.Create(listing).Error)
	return listing
}

func int64Ptr(v int64) *int64 { return &v }

func TestPlaceBelowMinimumStatesMinimum(t *testing.T) {
	f := newSQLiteFixture(t)
	leader := uuid.New()
	listing := f.seedListing(t, func(l *models.Listing) {
		l.CurrentBidCents = 12000
		l.BidCount = 2
		l.HighBidderID = &leader
		l.HighBidderMaxCents = 12000
	})

	_, err := f.svc.Place(context.Background(), PlaceInput{ListingID: listing.ID, BidderID: uuid.New(), AmountCents: 12400})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "bid must be at least $125.00", typed.Message())
	assert.Equal(t, map[string]any{"minimum_cents": int64(12500)}, typed.Details())

	assert.Equal(t, 1.0, bidResultCount(t, f.registry, ResultTooLow))
}

func TestPlaceBelowActiveReserveCitesReserve(t *testing.T) {
	f := newSQLiteFixture(t)
	listing := f.seedListing(t, func(l *models.Listing) { l.ReservePriceCents = 20000 })

	_, err := f.svc.Place(context.Background(), PlaceInput{ListingID: listing.ID, BidderID: uuid.New(), AmountCents: 15000})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Contains(t, typed.Message(), "reserve price of $200.00")

	res, err := f.svc.Place(context.Background(), PlaceInput{ListingID: listing.ID, BidderID: uuid.New(), AmountCents: 20000})
	require.NoError(t, err)
	assert.True(t, res.Leading)
}

func TestPlaceRejectsSellerEndedAndBadCeiling(t *testing.T) {
	f := newSQLiteFixture(t)
	listing := f.seedListing(t, nil)
	ended := f.seedListing(t, func(l *models.Listing) { l.EndsAt = time.Now().UTC().Add(-time.Second) })

	_, err := f.svc.Place(context.Background(), PlaceInput{ListingID: listing.ID, BidderID: f.seller, AmountCents: 5000})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Place(context.Background(), PlaceInput{ListingID: ended.ID, BidderID: uuid.New(), AmountCents: 5000})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Place(context.Background(), PlaceInput{ListingID: listing.ID, BidderID: uuid.New(), AmountCents: 5000, MaxCents: int64Ptr(4000)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Place(context.Background(), PlaceInput{ListingID: uuid.New(), BidderID: uuid.New(), AmountCents: 5000})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPlaceProxyFlow(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()
	listing := f.seedListing(t, nil)
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	first, err := f.svc.Place(ctx, PlaceInput{ListingID: listing.ID, BidderID: alice, AmountCents: 1000, MaxCents: int64Ptr(5000)})
	require.NoError(t, err)
	assert.True(t, first.Leading)
	assert.Equal(t, int64(1000), first.CurrentBidCents)

	second, err := f.svc.Place(ctx, PlaceInput{ListingID: listing.ID, BidderID: bob, AmountCents: 2000})
	require.NoError(t, err)
	assert.False(t, second.Leading)
	assert.Equal(t, int64(2100), second.CurrentBidCents)
	assert.Equal(t, 3, second.BidCount)

	third, err := f.svc.Place(ctx, PlaceInput{ListingID: listing.ID, BidderID: carol, AmountCents: 3000, MaxCents: int64Ptr(8000)})
	require.NoError(t, err)
	assert.True(t, third.Leading)
	assert.Equal(t, int64(5500), third.CurrentBidCents)
	assert.True(t, third.Bid.IsProxy)

	var stored models.Listing
	require.NoError(t, f.conn.First(&stored, "id = ?", listing.ID).Error)
	require.NotNil(t, stored.HighBidderID)
	assert.Equal(t, carol, *stored.HighBidderID)
	assert.Equal(t, int64(8000), stored.HighBidderMaxCents)
	assert.Equal(t, 4, stored.BidCount)

	var rows int64
	require.NoError(t, f.conn.Model(&models.Bid{}).Where("listing_id = ?", listing.ID).Count(&rows).Error)
	assert.Equal(t, int64(4), rows)

	assert.Equal(t, []uuid.UUID{alice}, f.outbid.users)
}

func TestPlaceSequentialIdenticalBidStatesNewMinimum(t *testing.T) {
	f := newSQLiteFixture(t)
	ctx := context.Background()
	listing := f.seedListing(t, nil)

	_, err := f.svc.Place(ctx, PlaceInput{ListingID: listing.ID, BidderID: uuid.New(), AmountCents: 1500})
	require.NoError(t, err)

	_, err = f.svc.Place(ctx, PlaceInput{ListingID: listing.ID, BidderID: uuid.New(), AmountCents: 1500})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "bid must be at least $16.00", typed.Message())
}

// racingListings makes the first two readers observe the same snapshot before either writes.
type racingListings struct {
	listings.Repository
	mu      sync.Mutex
	listing models.Listing
	reads   int
	arrived sync.WaitGroup
}

func newRacingListings(listing models.Listing) *racingListings {
	r := &racingListings{listing: listing}
	r.arrived.Add(2)
	return r
}

func (r *racingListings) WithTx(*gorm.DB) listings.Repository { return r }

func (r *racingListings) FindByID(context.Context, uuid.UUID) (*models.Listing, error) {
	r.mu.Lock()
	r.reads++
	n := r.reads
	snapshot := r.listing
	r.mu.Unlock()
	if n <= 2 {
		r.arrived.Done()
		r.arrived.Wait()
	}
	return &snapshot, nil
}

func (r *racingListings) ApplyBid(_ context.Context, _ uuid.UUID, observed listings.Snapshot, update listings.BidUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listing.CurrentBidCents != observed.CurrentBidCents || r.listing.BidCount != observed.BidCount {
		return false, nil
	}
	leader := update.HighBidderID
	r.listing.CurrentBidCents = update.CurrentBidCents
	r.listing.HighBidderID = &leader
	r.listing.HighBidderMaxCents = update.HighBidderMaxCents
	r.listing.BidCount += update.AddedBids
	return true, nil
}

type memoryBids struct {
	mu   sync.Mutex
	rows []*models.Bid
}

func (m *memoryBids) WithTx(*gorm.DB) Repository { return m }

func (m *memoryBids) Insert(_ context.Context, bids ...*models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, bids...)
	return nil
}

func (m *memoryBids) ListByListing(context.Context, uuid.UUID, int) ([]models.Bid, error) {
	return nil, nil
}

type inlineTx struct{}

func (inlineTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestConcurrentIdenticalBidsOneWins(t *testing.T) {
	listing := models.Listing{
		ID:                 uuid.New(),
		SellerID:           uuid.New(),
		Currency:           "usd",
		StartingPriceCents: 1000,
		Status:             enums.ListingStatusActive,
		EndsAt:             time.Now().UTC().Add(time.Hour),
	}
	store := newRacingListings(listing)
	bidStore := &memoryBids{}
	svc, err := NewService(ServiceParams{Listings: store, Bids: bidStore, Tx: inlineTx{}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Place(context.Background(), PlaceInput{ListingID: listing.ID, BidderID: uuid.New(), AmountCents: 1000})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "unexpected error %v", err)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		assert.Equal(t, ErrBidNotHigher, typed.Message())
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Len(t, bidStore.rows, 1)
}

func bidResultCount(t *testing.T, registry *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "bidhouse_bids_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
