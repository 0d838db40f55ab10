package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Gateway is the external payment collaborator. CreateIntent registers the
// charge and returns an order reference; Verify checks the signature the
// gateway sent with its callback. No retry logic lives here: a duplicate
// intent could mean a duplicate charge.
type Gateway interface {
	CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount int64, currency string) (orderRef string, err error)
	Verify(orderRef, paymentRef, signature string) bool
}

// StripeGateway collects via Stripe payment intents. Callback signatures
// are HMAC-SHA256 over "orderRef|paymentRef" keyed with the webhook secret.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(apiKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	params.AddMetadata("appointment_id", appointmentID.String())

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return "", err
	}
	return intent.ID, nil
}

func (g *StripeGateway) Verify(orderRef, paymentRef, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
