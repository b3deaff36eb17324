package sdk

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/globalassist/globalassist/sdk/go/routes"
)

// Plan is a subscription plan offered by GET /payment/plans.
type Plan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Billing  string   `json:"billing"`
	Savings  string   `json:"savings,omitempty"`
	Features []string `json:"features"`
}

// IsFree reports whether the plan is the free plan.
func (p Plan) IsFree() bool { return p.ID == string(TierFree) || p.Price == 0 }

// CheckoutSession is the hosted checkout the caller should be sent to.
type CheckoutSession struct {
	SessionID string `json:"session_id,omitempty"`
	URL       string `json:"url"`
}

// Subscription describes the caller's current plan.
type Subscription struct {
	Tier   Tier   `json:"subscription_tier"`
	Status string `json:"subscription_status"`
	PlanID string `json:"plan_id,omitempty"`
}

// PortalSession is a link to the billing provider's self-service portal.
type PortalSession struct {
	URL string `json:"url"`
}

// PaymentClient provides plan listing and subscription self-service.
//
// Plans is public; every other method requires an authenticated user.
//
// Example:
//
//	plans, err := client.Payment.PaidPlans(ctx)
//	session, err := client.Payment.CreateCheckout(ctx, plans[0].ID)
//	fmt.Println("Continue at", session.URL)
type PaymentClient struct {
	client *Client
}

func (c *PaymentClient) ensureInitialized() error {
	if c == nil || c.client == nil {
		return ConfigError{Reason: "payment client not initialized"}
	}
	return nil
}

// Plans returns every plan, including the free plan.
func (c *PaymentClient) Plans(ctx context.Context) ([]Plan, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	var payload struct {
		Plans []Plan `json:"plans"`
	}
	if err := c.client.sendAndDecode(ctx, http.MethodGet, routes.PaymentPlans, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Plans == nil {
		return []Plan{}, nil
	}
	return payload.Plans, nil
}

// PaidPlans returns the plans a user can upgrade to.
func (c *PaymentClient) PaidPlans(ctx context.Context) ([]Plan, error) {
	plans, err := c.Plans(ctx)
	if err != nil {
		return nil, err
	}
	paid := make([]Plan, 0, len(plans))
	for _, p := range plans {
		if !p.IsFree() {
			paid = append(paid, p)
		}
	}
	return paid, nil
}

// CreateCheckout creates a hosted checkout session for planID. The caller is
// responsible for sending the user to the returned URL.
func (c *PaymentClient) CreateCheckout(ctx context.Context, planID string) (CheckoutSession, error) {
	if err := c.ensureInitialized(); err != nil {
		return CheckoutSession{}, err
	}
	if strings.TrimSpace(planID) == "" {
		return CheckoutSession{}, ValidationError{Field: "plan_id", Message: "plan id required"}
	}
	var out CheckoutSession
	body := map[string]string{"plan_id": planID}
	if err := c.client.sendAndDecode(ctx, http.MethodPost, routes.PaymentCreateCheckout, body, &out); err != nil {
		return CheckoutSession{}, err
	}
	if out.URL == "" {
		return CheckoutSession{}, fmt.Errorf("sdk: missing checkout url in response")
	}
	return out, nil
}

// Subscription returns the caller's subscription details.
func (c *PaymentClient) Subscription(ctx context.Context) (Subscription, error) {
	if err := c.ensureInitialized(); err != nil {
		return Subscription{}, err
	}
	var out Subscription
	if err := c.client.sendAndDecode(ctx, http.MethodGet, routes.PaymentSubscription, nil, &out); err != nil {
		return Subscription{}, err
	}
	return out, nil
}

// Cancel cancels the caller's subscription at the end of the billing period.
func (c *PaymentClient) Cancel(ctx context.Context) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	return c.client.sendAndDecode(ctx, http.MethodPost, routes.PaymentCancel, nil, nil)
}

// Portal returns a billing portal link.
func (c *PaymentClient) Portal(ctx context.Context) (PortalSession, error) {
	if err := c.ensureInitialized(); err != nil {
		return PortalSession{}, err
	}
	var out PortalSession
	if err := c.client.sendAndDecode(ctx, http.MethodGet, routes.PaymentPortal, nil, &out); err != nil {
		return PortalSession{}, err
	}
	return out, nil
}
