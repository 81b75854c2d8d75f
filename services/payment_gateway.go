package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/yeremiapane/library-seat-app/models"
)

// CheckoutSession is what the client needs to open the payment page.
type CheckoutSession struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// GatewayNotification is the subset of a Midtrans HTTP notification we act on.
type GatewayNotification struct {
	OrderID           string `json:"order_id" binding:"required"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

type PaymentGateway interface {
	CreateCheckout(ctx context.Context, payment *models.Payment, user *models.User, plan *models.MembershipPlan) (*CheckoutSession, error)
	VerifySignature(n GatewayNotification) bool
}

// MidtransGateway creates Snap transactions for membership payments.
type MidtransGateway struct {
	client    snap.Client
	serverKey string
}

// NewMidtransGateway returns nil when no server key is configured.
func NewMidtransGateway(serverKey, env string) *MidtransGateway {
	if serverKey == "" {
		return nil
	}
	g := &MidtransGateway{serverKey: serverKey}
	if env == "production" {
		g.client.New(serverKey, midtrans.Production)
	} else {
		g.client.New(serverKey, midtrans.Sandbox)
	}
	return g
}

func (g *MidtransGateway) CreateCheckout(_ context.Context, payment *models.Payment, user *models.User, plan *models.MembershipPlan) (*CheckoutSession, error) {
	if payment.Reference == "" {
		return nil, errors.New("payment reference is required (used as OrderID)")
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  payment.Reference,
			GrossAmt: int64(math.Round(payment.Amount)),
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    payment.Reference,
			Name:  truncate(plan.Name, 50),
			Price: int64(math.Round(payment.Amount)),
			Qty:   1,
		}},
	}
	if user != nil {
		req.CustomerDetail = &midtrans.CustomerDetails{
			FName: user.Name,
			Email: user.Email,
			Phone: user.Phone,
		}
	}

	resp, mErr := g.client.CreateTransaction(req)
	if mErr != nil {
		return nil, mErr
	}
	return &CheckoutSession{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// VerifySignature checks sha512(order_id + status_code + gross_amount + server_key).
func (g *MidtransGateway) VerifySignature(n GatewayNotification) bool {
	expected := SignNotification(n.OrderID, n.StatusCode, n.GrossAmount, g.serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

func SignNotification(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
