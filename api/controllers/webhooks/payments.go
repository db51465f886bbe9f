package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/bidhouse-backend/api/responses"
	"github.com/angelmondragon/bidhouse-backend/internal/webhooks/payments"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
)

const signatureHeader = "Stripe-Signature"

type eventVerifier interface {
	Verify(payload []byte, signature string) (*stripe.Event, error)
}

type eventHandler interface {
	Handle(ctx context.Context, event *stripe.Event) (*payments.Result, error)
}

type rejectionCounter interface {
	IncRejected(reason string)
}

type receipt struct {
	Received   bool `json:"received"`
	Idempotent bool `json:"idempotent,omitempty"`
}

// PaymentWebhook verifies a provider delivery and hands it to the reconciler.
// Duplicates are acknowledged with idempotent=true so the provider stops retrying.
func PaymentWebhook(gate eventVerifier, svc eventHandler, rejections rejectionCounter, maxBody int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if gate == nil || svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				countRejection(rejections, payments.RejectTooLarge)
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload too large").
					WithDetails(map[string]any{"reason": payments.RejectTooLarge}))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := gate.Verify(payload, r.Header.Get(signatureHeader))
		if err != nil {
			countRejection(rejections, payments.RejectionReason(err))
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})
		}

		result, err := svc.Handle(ctx, event)
		if err != nil {
			if reason := payments.RejectionReason(err); reason != "" {
				countRejection(rejections, reason)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "payment webhook processed")
		}
		responses.WriteJSON(w, http.StatusOK, receipt{Received: true, Idempotent: result.Duplicate})
	}
}

func countRejection(counter rejectionCounter, reason string) {
	if counter == nil || reason == "" {
		return
	}
	counter.IncRejected(reason)
}
