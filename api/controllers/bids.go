package controllers

import (
	"net/http"

	"github.com/angelmondragon/bidhouse-backend/api/middleware"
	"github.com/angelmondragon/bidhouse-backend/api/responses"
	"github.com/angelmondragon/bidhouse-backend/api/validators"
	"github.com/angelmondragon/bidhouse-backend/internal/bids"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
)

type placeBidRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	MaxCents    *int64 `json:"max_cents,omitempty" validate:"omitempty,gtefield=AmountCents"`
}

// PlaceBid accepts a bid on a listing and answers 201 with the resulting price.
func PlaceBid(svc bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bids service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req placeBidRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Place(r.Context(), bids.PlaceInput{
			ListingID:   listingID,
			BidderID:    userID,
			AmountCents: req.AmountCents,
			MaxCents:    req.MaxCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
