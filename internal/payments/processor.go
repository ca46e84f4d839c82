package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"credit-ledger-go/internal/common"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

// Processor turns verified payment events into credit grants. Each grant
// carries the upstream event id, so a redelivered event is a no-op instead of
// a double credit.
type Processor struct {
	ledger  store.LedgerStore
	pricing *common.PricingCatalog
}

func NewProcessor(ledger store.LedgerStore, pricing *common.PricingCatalog) *Processor {
	return &Processor{
		ledger:  ledger,
		pricing: pricing,
	}
}

// ProcessEvent dispatches one payment event. Unknown event types are logged
// and skipped. A duplicate delivery returns nil so the sender stops retrying.
func (p *Processor) ProcessEvent(ctx context.Context, event stripe.Event) error {
	zap.L().Info("Processing payment event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		return p.handleCheckoutCompleted(ctx, event.ID, &session)

	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		var subscription stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return p.handleSubscriptionUpdate(ctx, event.ID, &subscription)

	case stripe.EventTypeInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return p.handlePaymentSucceeded(ctx, event.ID, &invoice)

	case stripe.EventTypeInvoicePaymentFailed:
		zap.L().Warn("Payment failed for invoice", zap.String("event_id", event.ID))
		return nil

	default:
		zap.L().Debug("Skipping unhandled event type", zap.String("event_type", string(event.Type)))
		return nil
	}
}

// handleCheckoutCompleted grants the credits sold in a one-time checkout.
// The checkout flow stamps userId, credits and packageName into the session
// metadata when the session is created.
func (p *Processor) handleCheckoutCompleted(ctx context.Context, eventId string, session *stripe.CheckoutSession) error {
	userId := session.Metadata["userId"]
	credits, _ := strconv.ParseInt(session.Metadata["credits"], 10, 64)
	packageName := session.Metadata["packageName"]

	if userId == "" || credits <= 0 {
		zap.L().Error("Checkout session missing userId or credits metadata",
			zap.String("session_id", session.ID))
		return nil
	}

	if packageName == "" {
		packageName = "credits package"
	}

	metadata := map[string]string{
		"stripe_session_id": session.ID,
		"package_name":      packageName,
		"amount_usd":        formatCents(session.AmountTotal),
		"currency":          string(session.Currency),
	}
	if session.Customer != nil {
		metadata["stripe_customer_id"] = session.Customer.ID
	}

	_, _, err := p.ledger.GrantCredits(ctx, store.GrantParams{
		UserId:      userId,
		Amount:      credits,
		Kind:        models.KindPurchase,
		Description: fmt.Sprintf("Purchased %s: %d credits", packageName, credits),
		Metadata:    metadata,
		EventId:     eventId,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			zap.L().Info("Checkout event already processed", zap.String("event_id", eventId))
			return nil
		}
		return fmt.Errorf("failed to grant purchase credits: %w", err)
	}

	zap.L().Info("Checkout completed",
		zap.String("user_id", userId),
		zap.Int64("credits", credits),
		zap.String("package", packageName))
	return nil
}

// handleSubscriptionUpdate grants the plan's monthly credits when a
// subscription becomes active.
func (p *Processor) handleSubscriptionUpdate(ctx context.Context, eventId string, subscription *stripe.Subscription) error {
	userId := subscription.Metadata["userId"]
	if userId == "" {
		zap.L().Error("Subscription missing userId metadata",
			zap.String("subscription_id", subscription.ID))
		return nil
	}

	if subscription.Status != stripe.SubscriptionStatusActive {
		zap.L().Info("Subscription not active, no credits granted",
			zap.String("subscription_id", subscription.ID),
			zap.String("status", string(subscription.Status)))
		return nil
	}

	priceId := subscriptionPriceId(subscription)
	plan := p.pricing.PlanByPriceId(priceId)
	if plan == nil {
		zap.L().Warn("No plan found for subscription price",
			zap.String("subscription_id", subscription.ID),
			zap.String("price_id", priceId))
		return nil
	}

	_, _, err := p.ledger.GrantCredits(ctx, store.GrantParams{
		UserId:      userId,
		Amount:      plan.MonthlyCredits,
		Kind:        models.KindSubscription,
		Description: fmt.Sprintf("Monthly subscription credits (%d)", plan.MonthlyCredits),
		Metadata: map[string]string{
			"subscription_id": subscription.ID,
			"price_id":        priceId,
			"plan_id":         plan.Id,
			"period_start":    strconv.FormatInt(subscription.CurrentPeriodStart, 10),
			"period_end":      strconv.FormatInt(subscription.CurrentPeriodEnd, 10),
		},
		EventId: eventId,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			zap.L().Info("Subscription event already processed", zap.String("event_id", eventId))
			return nil
		}
		return fmt.Errorf("failed to grant subscription credits: %w", err)
	}

	zap.L().Info("Subscription credits granted",
		zap.String("user_id", userId),
		zap.String("plan_id", plan.Id),
		zap.Int64("credits", plan.MonthlyCredits))
	return nil
}

// handlePaymentSucceeded grants renewal credits on a subscription cycle
// invoice. Other billing reasons (subscription_create, manual) are covered by
// the subscription and checkout handlers.
func (p *Processor) handlePaymentSucceeded(ctx context.Context, eventId string, invoice *stripe.Invoice) error {
	if invoice.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle {
		zap.L().Debug("Invoice is not a subscription renewal, skipping",
			zap.String("invoice_id", invoice.ID),
			zap.String("billing_reason", string(invoice.BillingReason)))
		return nil
	}

	if invoice.SubscriptionDetails == nil {
		zap.L().Warn("Renewal invoice has no subscription details", zap.String("invoice_id", invoice.ID))
		return nil
	}
	userId := invoice.SubscriptionDetails.Metadata["userId"]
	if userId == "" {
		zap.L().Error("Renewal invoice missing userId metadata", zap.String("invoice_id", invoice.ID))
		return nil
	}

	priceId := invoicePriceId(invoice)
	plan := p.pricing.PlanByPriceId(priceId)
	if plan == nil {
		zap.L().Warn("No plan found for renewal invoice price",
			zap.String("invoice_id", invoice.ID),
			zap.String("price_id", priceId))
		return nil
	}

	metadata := map[string]string{
		"invoice_id": invoice.ID,
		"price_id":   priceId,
		"plan_id":    plan.Id,
	}
	if invoice.Subscription != nil {
		metadata["subscription_id"] = invoice.Subscription.ID
	}

	_, _, err := p.ledger.GrantCredits(ctx, store.GrantParams{
		UserId:      userId,
		Amount:      plan.MonthlyCredits,
		Kind:        models.KindSubscription,
		Description: "Monthly subscription credits renewal",
		Metadata:    metadata,
		EventId:     eventId,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			zap.L().Info("Renewal event already processed", zap.String("event_id", eventId))
			return nil
		}
		return fmt.Errorf("failed to grant renewal credits: %w", err)
	}

	zap.L().Info("Renewal credits granted",
		zap.String("user_id", userId),
		zap.String("plan_id", plan.Id),
		zap.Int64("credits", plan.MonthlyCredits))
	return nil
}

func subscriptionPriceId(subscription *stripe.Subscription) string {
	if subscription.Items == nil || len(subscription.Items.Data) == 0 {
		return ""
	}
	if subscription.Items.Data[0].Price == nil {
		return ""
	}
	return subscription.Items.Data[0].Price.ID
}

func invoicePriceId(invoice *stripe.Invoice) string {
	if invoice.Lines == nil || len(invoice.Lines.Data) == 0 {
		return ""
	}
	if invoice.Lines.Data[0].Price == nil {
		return ""
	}
	return invoice.Lines.Data[0].Price.ID
}

func formatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
