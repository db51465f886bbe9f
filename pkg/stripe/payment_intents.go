package stripe

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
)

// MetadataOrderID is the metadata key webhook reconciliation resolves orders by.
const MetadataOrderID = "order_id"

// CreateIntentInput describes the PaymentIntent created at checkout.
type CreateIntentInput struct {
	OrderID        string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

// Intent is the subset of a PaymentIntent the checkout flow returns.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// PaymentIntentClient is the PaymentIntent surface checkout depends on.
type PaymentIntentClient interface {
	Create(ctx context.Context, input CreateIntentInput) (*Intent, error)
	Get(ctx context.Context, id string) (*Intent, error)
}

type paymentIntentClient struct{}

// NewPaymentIntentClient returns the live client. The API key is set by NewClient.
func NewPaymentIntentClient(client *Client) PaymentIntentClient {
	if client == nil {
		return nil
	}
	return &paymentIntentClient{}
}

func (c *paymentIntentClient) Create(ctx context.Context, input CreateIntentInput) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.AmountCents),
		Currency: stripe.String(strings.ToLower(input.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, input.OrderID)
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

func (c *paymentIntentClient) Get(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}
}
