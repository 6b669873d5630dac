package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/vkral/souffleur/internal/store"
)

// Stripe price IDs for one-time minute packs (set via environment variables)
var (
	stripePricePackSmall  = os.Getenv("STRIPE_PRICE_PACK_SMALL")  // 60 minutes
	stripePricePackMedium = os.Getenv("STRIPE_PRICE_PACK_MEDIUM") // 180 minutes
	stripePricePackLarge  = os.Getenv("STRIPE_PRICE_PACK_LARGE")  // 600 minutes
	stripeWebhookSecret   = os.Getenv("STRIPE_WEBHOOK_SECRET")
	stripeSuccessURL      = os.Getenv("STRIPE_SUCCESS_URL")
	stripeCancelURL       = os.Getenv("STRIPE_CANCEL_URL")
)

func init() {
	// Set Stripe API key from environment
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
}

// minutePacks maps the purchasable pack names to price IDs and minute grants.
func minutePack(pack string) (priceID string, minutes int) {
	switch pack {
	case "small":
		return stripePricePackSmall, 60
	case "medium":
		return stripePricePackMedium, 180
	case "large":
		return stripePricePackLarge, 600
	default:
		return "", 0
	}
}

// handleGetBalance returns the caller's remaining prepaid minutes.
func (r *Router) handleGetBalance(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	balance, err := r.store.GetMinutesBalance(req.Context(), authUser.ID)
	if err != nil {
		r.logger.Printf("billing: failed to read balance for %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"minutes_balance": balance})
}

// handleCreateCheckout creates a Stripe Checkout session for a minute pack
func (r *Router) handleCreateCheckout(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	var body struct {
		Pack string `json:"pack"` // "small", "medium" or "large"
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	priceID, minutes := minutePack(body.Pack)
	if priceID == "" {
		http.Error(w, `{"error": "invalid pack"}`, http.StatusBadRequest)
		return
	}

	user, err := r.store.GetUserByID(req.Context(), authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "user not found"}`, http.StatusNotFound)
		return
	}

	customerID, err := r.getOrCreateStripeCustomer(req.Context(), user)
	if err != nil {
		r.logger.Printf("billing: failed to get/create customer: %v", err)
		http.Error(w, `{"error": "failed to create customer"}`, http.StatusInternalServerError)
		return
	}

	successURL := stripeSuccessURL
	if successURL == "" {
		successURL = r.cfg.PublicBaseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := stripeCancelURL
	if cancelURL == "" {
		cancelURL = r.cfg.PublicBaseURL + "/billing/cancel"
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Metadata: map[string]string{
			"user_id": user.ID,
			"pack":    body.Pack,
			"minutes": strconv.Itoa(minutes),
		},
	}

	s, err := checkoutsession.New(params)
	if err != nil {
		r.logger.Printf("billing: failed to create checkout session: %v", err)
		http.Error(w, `{"error": "failed to create checkout session"}`, http.StatusInternalServerError)
		return
	}

	r.logger.Printf("billing: created checkout session %s for user %s (pack=%s)", s.ID, user.ID, body.Pack)

	writeJSON(w, http.StatusOK, map[string]string{
		"checkout_url": s.URL,
		"session_id":   s.ID,
	})
}

// handleCreatePortal creates a Stripe Customer Portal session
func (r *Router) handleCreatePortal(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	user, err := r.store.GetUserByID(req.Context(), authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "user not found"}`, http.StatusNotFound)
		return
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		http.Error(w, `{"error": "no purchases found"}`, http.StatusNotFound)
		return
	}

	returnURL := r.cfg.PublicBaseURL + "/settings"

	params := &stripe.BillingPortalSessionParams{
		Customer:  user.StripeCustomerID,
		ReturnURL: stripe.String(returnURL),
	}

	s, err := session.New(params)
	if err != nil {
		r.logger.Printf("billing: failed to create portal session: %v", err)
		http.Error(w, `{"error": "failed to create portal session"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"portal_url": s.URL,
	})
}

// handleStripeWebhook processes Stripe webhook events
func (r *Router) handleStripeWebhook(w http.ResponseWriter, req *http.Request) {
	const MaxBodyBytes = int64(65536)
	req.Body = http.MaxBytesReader(w, req.Body, MaxBodyBytes)

	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.logger.Printf("billing webhook: failed to read body: %v", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Verify webhook signature
	sigHeader := req.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(body, sigHeader, stripeWebhookSecret)
	if err != nil {
		r.logger.Printf("billing webhook: signature verification failed: %v", err)
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}

	r.logger.Printf("billing webhook: received event %s (type=%s)", event.ID, event.Type)

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			r.logger.Printf("billing webhook: failed to parse session: %v", err)
			http.Error(w, "failed to parse event", http.StatusBadRequest)
			return
		}
		r.handleCheckoutCompleted(&session)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			r.logger.Printf("billing webhook: failed to parse charge: %v", err)
			http.Error(w, "failed to parse event", http.StatusBadRequest)
			return
		}
		r.handleChargeRefunded(&charge)
	}

	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted credits the purchased minutes to the buyer
func (r *Router) handleCheckoutCompleted(session *stripe.CheckoutSession) {
	userID, ok := session.Metadata["user_id"]
	if !ok {
		r.logger.Printf("billing webhook: checkout session missing user_id")
		return
	}

	minutes, err := strconv.Atoi(session.Metadata["minutes"])
	if err != nil || minutes <= 0 {
		r.logger.Printf("billing webhook: checkout session %s has invalid minutes metadata", session.ID)
		return
	}

	// Use background context since webhooks are async
	ctx := context.Background()
	if err := r.store.AddMinutes(ctx, userID, minutes); err != nil {
		r.logger.Printf("billing webhook: failed to credit %d minutes to user %s: %v", minutes, userID, err)
		return
	}

	r.logger.Printf("billing webhook: credited %d minutes to user %s (pack=%s)",
		minutes, userID, session.Metadata["pack"])
}

// handleChargeRefunded logs refunds for manual review. Minutes are not clawed
// back automatically since part of them may already be spent.
func (r *Router) handleChargeRefunded(charge *stripe.Charge) {
	ctx := context.Background()
	userID, err := r.store.GetUserIDByStripeCustomer(ctx, charge.Customer.ID)
	if err != nil {
		r.logger.Printf("billing webhook: user not found for customer %s: %v", charge.Customer.ID, err)
		return
	}
	r.logger.Printf("billing webhook: refund for user %s (charge=%s, amount=%d)", userID, charge.ID, charge.AmountRefunded)
}

// getOrCreateStripeCustomer gets an existing Stripe customer or creates a new one
func (r *Router) getOrCreateStripeCustomer(ctx context.Context, user *store.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Metadata: map[string]string{
			"user_id": user.ID,
		},
	}
	if user.Name != nil {
		params.Name = stripe.String(*user.Name)
	}

	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe customer: %w", err)
	}

	if err := r.store.SetStripeCustomer(ctx, user.ID, c.ID); err != nil {
		r.logger.Printf("billing: failed to save customer id for user %s: %v", user.ID, err)
	}

	return c.ID, nil
}
