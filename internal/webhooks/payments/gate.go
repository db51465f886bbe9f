package payments

import (
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
)

// Rejection reasons, also used as metric labels.
const (
	RejectMissingSignature = "missing_signature"
	RejectInvalidSignature = "invalid_signature"
	RejectMalformed        = "malformed"
	RejectStale            = "stale"
	RejectFuture           = "future"
	RejectTooLarge         = "too_large"
)

// Gate authenticates provider deliveries before anything touches the database.
type Gate struct {
	secret string
	stale  time.Duration
	future time.Duration
	now    func() time.Time
}

type GateParams struct {
	SigningSecret   string
	StaleTolerance  time.Duration
	FutureTolerance time.Duration
	Clock           func() time.Time
}

func NewGate(params GateParams) (*Gate, error) {
	if strings.TrimSpace(params.SigningSecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "webhook signing secret required")
	}
	if params.StaleTolerance <= 0 || params.FutureTolerance <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "webhook tolerances must be positive")
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Gate{
		secret: params.SigningSecret,
		stale:  params.StaleTolerance,
		future: params.FutureTolerance,
		now:    now,
	}, nil
}

// Verify checks the signature, the envelope shape and the event age, in that order.
func (g *Gate) Verify(payload []byte, signature string) (*stripe.Event, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, reject(RejectMissingSignature, "missing Stripe-Signature header", nil)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.secret, webhook.ConstructEventOptions{
		Tolerance:                g.stale,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrTooOld) {
			return nil, reject(RejectStale, "signature timestamp outside tolerance", err)
		}
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrNoValidSignature) || errors.Is(err, webhook.ErrInvalidHeader) {
			return nil, reject(RejectInvalidSignature, "invalid webhook signature", err)
		}
		return nil, reject(RejectMalformed, "malformed webhook payload", err)
	}

	if err := validateEnvelope(payload); err != nil {
		return nil, reject(RejectMalformed, "webhook envelope failed validation", err)
	}

	created := time.Unix(event.Created, 0).UTC()
	now := g.now()
	if now.Sub(created) > g.stale {
		return nil, reject(RejectStale, "event is too old", nil)
	}
	if created.Sub(now) > g.future {
		return nil, reject(RejectFuture, "event timestamp is in the future", nil)
	}
	return &event, nil
}

func reject(reason, message string, cause error) error {
	var typed *pkgerrors.Error
	if cause != nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeValidation, cause, message)
	} else {
		typed = pkgerrors.New(pkgerrors.CodeValidation, message)
	}
	return typed.WithDetails(map[string]any{"reason": reason})
}

// RejectionReason extracts the reason label from a gate error, or "" for other errors.
func RejectionReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return ""
	}
	reason, _ := details["reason"].(string)
	return reason
}
