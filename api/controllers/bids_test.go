package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/api/middleware"
	"github.com/angelmondragon/bidhouse-backend/internal/bids"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
)

type stubBidService struct {
	placeFn func(ctx context.Context, input bids.PlaceInput) (*bids.PlaceResult, error)
}

func (s stubBidService) Place(ctx context.Context, input bids.PlaceInput) (*bids.PlaceResult, error) {
	return s.placeFn(ctx, input)
}

func bidRequest(listingID, userID uuid.UUID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/"+listingID.String()+"/bids", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	return addRouteParam(req, "listingId", listingID.String())
}

func TestPlaceBidCreated(t *testing.T) {
	listingID, userID := uuid.New(), uuid.New()
	var captured bids.PlaceInput
	svc := stubBidService{placeFn: func(ctx context.Context, input bids.PlaceInput) (*bids.PlaceResult, error) {
		captured = input
		return &bids.PlaceResult{
			Bid:              models.Bid{ID: uuid.New(), ListingID: listingID, BidderID: userID, AmountCents: input.AmountCents},
			CurrentBidCents:  input.AmountCents,
			BidCount:         1,
			Leading:          true,
			MinimumNextCents: input.AmountCents + 100,
		}, nil
	}}

	resp := httptest.NewRecorder()
	PlaceBid(svc, testLogger())(resp, bidRequest(listingID, userID, `{"amount_cents":1500,"max_cents":4000}`))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.ListingID != listingID || captured.BidderID != userID || captured.AmountCents != 1500 {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.MaxCents == nil || *captured.MaxCents != 4000 {
		t.Fatalf("expected max 4000 got %v", captured.MaxCents)
	}
	var envelope struct {
		Data struct {
			CurrentBidCents int64 `json:"current_bid_cents"`
			Leading         bool  `json:"leading"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data.CurrentBidCents != 1500 || !envelope.Data.Leading {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestPlaceBidValidation(t *testing.T) {
	svc := stubBidService{placeFn: func(context.Context, bids.PlaceInput) (*bids.PlaceResult, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	cases := map[string]string{
		"missing amount": `{}`,
		"max below":      `{"amount_cents":1500,"max_cents":1000}`,
		"unknown field":  `{"amount_cents":1500,"note":"x"}`,
		"not json":       `bid`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			PlaceBid(svc, testLogger())(resp, bidRequest(uuid.New(), uuid.New(), body))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
		})
	}
}

func TestPlaceBidSurfacesMinimum(t *testing.T) {
	svc := stubBidService{placeFn: func(context.Context, bids.PlaceInput) (*bids.PlaceResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid must be at least $16.00").
			WithDetails(map[string]any{"minimum_cents": int64(1600)})
	}}
	resp := httptest.NewRecorder()
	PlaceBid(svc, testLogger())(resp, bidRequest(uuid.New(), uuid.New(), `{"amount_cents":1500}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Message != "bid must be at least $16.00" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
	if envelope.Error.Details["minimum_cents"] != float64(1600) {
		t.Fatalf("unexpected details %v", envelope.Error.Details)
	}
}
