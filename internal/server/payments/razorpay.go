// Package payments talks to the Razorpay payment gateway.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"github.com/dmitrijs2005/skybox/internal/common"
)

// Proof is evidence that the gateway signed a payment for an order.
// Only Gateway.Verify can produce a non-zero Proof.
type Proof struct {
	orderID   string
	paymentID string
}

func (p Proof) OrderID() string   { return p.orderID }
func (p Proof) PaymentID() string { return p.paymentID }

// Valid reports whether p came from a successful verification.
func (p Proof) Valid() bool { return p.orderID != "" && p.paymentID != "" }

// Gateway creates checkout orders and verifies their payment signatures.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	Verify(orderID, paymentID, signature string) (Proof, error)
}

type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway implements Gateway with the Razorpay REST client.
type RazorpayGateway struct {
	orders    orderCreator
	keySecret string
	timeout   time.Duration
}

// NewRazorpayGateway builds a gateway whose REST calls give up after timeout.
// A zero timeout keeps the client default.
func NewRazorpayGateway(keyID, keySecret string, timeout time.Duration) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	if timeout > 0 {
		client.SetTimeout(int16((timeout + time.Second - 1) / time.Second))
	}
	return &RazorpayGateway{orders: client.Order, keySecret: keySecret, timeout: timeout}
}

type createResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder registers an order for amountMinor and returns the gateway order id.
// The REST client takes no context, so the call is abandoned once ctx is done.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan createResult, 1)
	go func() {
		body, err := g.orders.Create(map[string]interface{}{
			"amount":   amountMinor,
			"currency": currency,
			"receipt":  receipt,
		}, nil)
		done <- createResult{body: body, err: err}
	}()

	var res createResult
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: create order: %w", common.ErrExternalStore, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		return "", fmt.Errorf("%w: create order: %w", common.ErrExternalStore, res.err)
	}
	id, ok := res.body["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: create order: response has no id", common.ErrExternalStore)
	}
	return id, nil
}

// Verify checks the checkout signature and returns a Proof on success.
func (g *RazorpayGateway) Verify(orderID, paymentID, signature string) (Proof, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return Proof{}, common.ErrInvalidSignature
	}
	ok := utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, g.keySecret)
	if !ok {
		return Proof{}, common.ErrInvalidSignature
	}
	return Proof{orderID: orderID, paymentID: paymentID}, nil
}

// Signature computes the checkout signature the gateway hands to the client:
// hex HMAC-SHA256 of "orderID|paymentID" keyed by the key secret.
func Signature(orderID, paymentID, keySecret string) string {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
