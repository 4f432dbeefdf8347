package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/gateway"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"

	reconcileBatchSize = 100
)

// PaymentGateway is the outbound side of a payment provider.
type PaymentGateway interface {
	Name() string
	Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error)
	Status(ctx context.Context, merchantTxnID string) (*gateway.StatusResult, error)
	VerifyWebhook(responseB64, header string) bool
}

// ReturnURLs are handed to the gateway for the browser redirect and the
// server-to-server callback.
type ReturnURLs struct {
	Redirect string
	Callback string
}

type PaymentService interface {
	Gateways() []gateway.Info
	Initiate(ctx context.Context, caller policy.Principal, req dto.PaymentInitiateDTO, urls ReturnURLs) (*dto.PaymentInitiateResultDTO, error)
	// HandleCallback polls the gateway for the named transaction and applies
	// the result. Unknown ids and gateway errors are logged, never returned.
	HandleCallback(ctx context.Context, merchantTxnID string) error
	// HandleWebhook verifies and applies a signed notification and reports
	// whether it changed anything.
	HandleWebhook(ctx context.Context, responseB64, xVerify string, headers map[string]string) (string, error)
	CheckStatus(ctx context.Context, caller policy.Principal, transactionID string) (*dto.PaymentStatusDTO, error)
	History(ctx context.Context, caller policy.Principal) ([]dto.PaymentDTO, error)
	MarkRefunded(ctx context.Context, caller policy.Principal, transactionID string) (*dto.PaymentDTO, error)
	// Reconcile polls payments left pending or processing since before
	// olderThan and returns how many changed.
	Reconcile(ctx context.Context, olderThan time.Time) (int, error)
}

type paymentService struct {
	paymentRepo repository.PaymentRepository
	batchRepo   repository.BatchRepository
	gateways    map[string]PaymentGateway
	now         func() time.Time
}

func NewPaymentService(paymentRepo repository.PaymentRepository, batchRepo repository.BatchRepository, gateways ...PaymentGateway) PaymentService {
	byName := make(map[string]PaymentGateway, len(gateways))
	for _, g := range gateways {
		if g != nil {
			byName[g.Name()] = g
		}
	}
	return &paymentService{paymentRepo: paymentRepo, batchRepo: batchRepo, gateways: byName, now: time.Now}
}

func (s *paymentService) Gateways() []gateway.Info {
	infos := gateway.Available()
	for i := range infos {
		if infos[i].Available {
			_, ok := s.gateways[infos[i].ID]
			infos[i].Available = ok
		}
	}
	return infos
}

func (s *paymentService) Initiate(ctx context.Context, caller policy.Principal, req dto.PaymentInitiateDTO, urls ReturnURLs) (*dto.PaymentInitiateResultDTO, error) {
	name := req.Gateway
	if name == "" {
		name = gateway.PhonePe
	}
	if name == gateway.Razorpay {
		return nil, ErrComingSoon
	}
	gw, ok := s.gateways[name]
	if !ok {
		if name == gateway.PhonePe {
			return nil, fmt.Errorf("%w: %s is not configured", ErrUnavailable, name)
		}
		return nil, fmt.Errorf("%w: unknown gateway %q", ErrInvalidInput, name)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	batch, err := s.batchRepo.FindByID(ctx, req.BatchID)
	if err != nil {
		return nil, notFound(err, "batch", req.BatchID)
	}
	price := batch.EffectivePrice()
	if price == 0 {
		return nil, fmt.Errorf("%w: batch %d is free, enroll directly", ErrInvalidInput, batch.ID)
	}
	if math.Abs(price-req.Amount) > 0.005 {
		return nil, fmt.Errorf("%w: amount %.2f does not match batch price %.2f", ErrInvalidInput, req.Amount, price)
	}

	merchantTxnID := gateway.NewMerchantTransactionID()
	result, err := gw.Initiate(ctx, gateway.InitiateRequest{
		MerchantTransactionID: merchantTxnID,
		UserID:                caller.UserID,
		Amount:                req.Amount,
		RedirectURL:           urls.Redirect,
		CallbackURL:           urls.Callback,
	})
	if err != nil {
		log.Error().Err(err).Str("gateway", name).Uint("batchID", batch.ID).Uint("studentID", caller.UserID).Msg("Payment initiation failed")
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	payment := model.Payment{
		StudentID:             caller.UserID,
		BatchID:               batch.ID,
		Amount:                req.Amount,
		Currency:              "INR",
		PaymentMethod:         name,
		Status:                model.PaymentPending,
		TransactionID:         gateway.NewTransactionID(),
		MerchantTransactionID: &merchantTxnID,
		GatewayResponse:       jsonOrNil(result.Raw),
	}
	if err := s.paymentRepo.Create(ctx, &payment); err != nil {
		log.Error().Err(err).Str("merchantTxnID", merchantTxnID).Msg("Failed to persist initiated payment")
		return nil, fmt.Errorf("database error creating payment: %w", err)
	}
	log.Info().Str("transactionID", payment.TransactionID).Str("merchantTxnID", merchantTxnID).Float64("amount", payment.Amount).Msg("Payment initiated")

	return &dto.PaymentInitiateResultDTO{
		Success:       true,
		PaymentURL:    result.PaymentURL,
		TransactionID: payment.TransactionID,
	}, nil
}

func jsonOrNil(raw []byte) []byte {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return raw
}

// transitionFromState maps a gateway transaction state. Non-final states
// only move to processing when withProcessing is set.
func transitionFromState(status *gateway.StatusResult, withProcessing bool, now time.Time) (repository.PaymentTransition, bool) {
	t := repository.PaymentTransition{GatewayResponse: jsonOrNil(status.Raw)}
	switch status.State {
	case gateway.StateCompleted:
		t.To = model.PaymentCompleted
		t.PaidAt = &now
		if status.TransactionID != "" {
			id := status.TransactionID
			t.GatewayTransactionID = &id
		}
	case gateway.StateFailed:
		t.To = model.PaymentFailed
		t.FailedReason = status.Message
		if t.FailedReason == "" {
			t.FailedReason = status.Code
		}
	default:
		if !withProcessing {
			return t, false
		}
		t.To = model.PaymentProcessing
	}
	return t, true
}

func transitionFromWebhook(p *gateway.WebhookPayload, now time.Time) (repository.PaymentTransition, bool) {
	t := repository.PaymentTransition{GatewayResponse: jsonOrNil(p.Raw)}
	switch p.Code {
	case gateway.CodePaymentSuccess:
		t.To = model.PaymentCompleted
		t.PaidAt = &now
		if p.TransactionID != "" {
			id := p.TransactionID
			t.GatewayTransactionID = &id
		}
	case gateway.CodePaymentError:
		t.To = model.PaymentFailed
		t.FailedReason = p.Message
		if t.FailedReason == "" {
			t.FailedReason = p.Code
		}
	case gateway.CodePaymentPending:
		t.To = model.PaymentProcessing
	default:
		return t, false
	}
	return t, true
}

func (s *paymentService) apply(ctx context.Context, payment *model.Payment, t repository.PaymentTransition, source string) (bool, error) {
	updated, changed, err := s.paymentRepo.ApplyTransition(ctx, payment.ID, t)
	if err != nil {
		log.Error().Err(err).Str("transactionID", payment.TransactionID).Str("to", string(t.To)).Msg("Failed to apply payment transition")
		return false, fmt.Errorf("database error updating payment: %w", err)
	}
	if !changed {
		log.Info().
			Str("transactionID", payment.TransactionID).
			Str("from", string(updated.Status)).
			Str("to", string(t.To)).
			Str("source", source).
			Msg("Payment transition ignored")
	} else {
		log.Info().
			Str("transactionID", payment.TransactionID).
			Str("status", string(updated.Status)).
			Str("source", source).
			Msg("Payment status changed")
	}
	*payment = *updated
	return changed, nil
}

func (s *paymentService) recordEvent(ctx context.Context, event model.PaymentGatewayEvent) {
	if err := s.paymentRepo.RecordEvent(ctx, &event); err != nil {
		log.Error().Err(err).Str("kind", event.Kind).Msg("Failed to record gateway event")
	}
}

func (s *paymentService) HandleCallback(ctx context.Context, merchantTxnID string) error {
	event := model.PaymentGatewayEvent{Provider: gateway.PhonePe, Kind: model.GatewayEventCallback, Status: model.GatewayEventIgnored}
	defer func() { s.recordEvent(ctx, event) }()

	if merchantTxnID == "" {
		event.Error = "missing merchant transaction id"
		log.Warn().Msg("Payment callback without merchant transaction id")
		return nil
	}
	event.MerchantTransactionID = &merchantTxnID

	payment, err := s.paymentRepo.FindByMerchantTransactionID(ctx, merchantTxnID)
	if err != nil {
		event.Error = err.Error()
		log.Warn().Err(err).Str("merchantTxnID", merchantTxnID).Msg("Payment callback for unknown transaction")
		return nil
	}
	event.PaymentID = &payment.ID
	event.Provider = payment.PaymentMethod

	gw, ok := s.gateways[payment.PaymentMethod]
	if !ok {
		event.Error = "gateway not configured"
		log.Warn().Str("gateway", payment.PaymentMethod).Msg("Payment callback for unconfigured gateway")
		return nil
	}
	status, err := gw.Status(ctx, merchantTxnID)
	if err != nil {
		event.Error = err.Error()
		log.Error().Err(err).Str("merchantTxnID", merchantTxnID).Msg("Status check after callback failed")
		return nil
	}
	event.Payload = jsonOrNil(status.Raw)

	t, ok := transitionFromState(status, true, s.now())
	if !ok {
		return nil
	}
	changed, err := s.apply(ctx, payment, t, model.GatewayEventCallback)
	if err != nil {
		event.Error = err.Error()
		return nil
	}
	if changed {
		event.Status = model.GatewayEventProcessed
	}
	return nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, responseB64, xVerify string, headers map[string]string) (string, error) {
	if responseB64 == "" || xVerify == "" {
		return "", fmt.Errorf("%w: missing response or X-VERIFY header", ErrInvalidInput)
	}
	gw, ok := s.gateways[gateway.PhonePe]
	if !ok {
		return "", fmt.Errorf("%w: %s is not configured", ErrUnavailable, gateway.PhonePe)
	}

	event := model.PaymentGatewayEvent{
		Provider:  gw.Name(),
		Kind:      model.GatewayEventWebhook,
		Signature: xVerify,
		Status:    model.GatewayEventReceived,
	}
	if raw, err := json.Marshal(headers); err == nil && len(headers) > 0 {
		event.Headers = raw
	}
	defer func() { s.recordEvent(ctx, event) }()

	if !gw.VerifyWebhook(responseB64, xVerify) {
		event.Status = model.GatewayEventRejected
		event.Error = "signature mismatch"
		log.Warn().Msg("Rejected webhook with invalid signature")
		return "", ErrInvalidSignature
	}

	payload, err := gateway.DecodeWebhook(responseB64)
	if err != nil {
		event.Status = model.GatewayEventIgnored
		event.Error = err.Error()
		log.Warn().Err(err).Msg("Ignoring undecodable webhook")
		return WebhookIgnored, nil
	}
	event.Payload = jsonOrNil(payload.Raw)
	if payload.MerchantTransactionID != "" {
		id := payload.MerchantTransactionID
		event.MerchantTransactionID = &id
	}

	if payload.MerchantTransactionID == "" {
		event.Status = model.GatewayEventIgnored
		event.Error = "missing merchant transaction id"
		log.Warn().Str("code", payload.Code).Msg("Webhook without merchant transaction id")
		return WebhookIgnored, nil
	}
	payment, err := s.paymentRepo.FindByMerchantTransactionID(ctx, payload.MerchantTransactionID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			event.Error = err.Error()
			return "", fmt.Errorf("loading payment: %w", err)
		}
		event.Status = model.GatewayEventIgnored
		event.Error = "unknown merchant transaction id"
		log.Warn().Str("merchantTxnID", payload.MerchantTransactionID).Msg("Webhook for unknown transaction")
		return WebhookIgnored, nil
	}
	event.PaymentID = &payment.ID

	t, ok := transitionFromWebhook(payload, s.now())
	if !ok {
		event.Status = model.GatewayEventIgnored
		event.Error = "unhandled code " + payload.Code
		log.Info().Str("code", payload.Code).Str("merchantTxnID", payload.MerchantTransactionID).Msg("Webhook code not handled")
		return WebhookIgnored, nil
	}
	changed, err := s.apply(ctx, payment, t, model.GatewayEventWebhook)
	if err != nil {
		event.Error = err.Error()
		return "", err
	}
	if !changed {
		event.Status = model.GatewayEventIgnored
		return WebhookIgnored, nil
	}
	event.Status = model.GatewayEventProcessed
	return WebhookProcessed, nil
}

func (s *paymentService) ownPayment(ctx context.Context, caller policy.Principal, transactionID string) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: payment %s", ErrNotFound, transactionID)
		}
		return nil, fmt.Errorf("loading payment %s: %w", transactionID, err)
	}
	if payment.StudentID != caller.UserID {
		return nil, fmt.Errorf("%w: payment %s", ErrNotFound, transactionID)
	}
	return payment, nil
}

// poll asks the gateway about a payment and applies a final state.
func (s *paymentService) poll(ctx context.Context, payment *model.Payment, withProcessing bool) (bool, error) {
	if payment.MerchantTransactionID == nil {
		return false, nil
	}
	gw, ok := s.gateways[payment.PaymentMethod]
	if !ok {
		return false, nil
	}
	status, err := gw.Status(ctx, *payment.MerchantTransactionID)
	if err != nil {
		return false, err
	}
	t, ok := transitionFromState(status, withProcessing, s.now())
	if !ok {
		return false, nil
	}
	return s.apply(ctx, payment, t, model.GatewayEventPoll)
}

func (s *paymentService) CheckStatus(ctx context.Context, caller policy.Principal, transactionID string) (*dto.PaymentStatusDTO, error) {
	payment, err := s.ownPayment(ctx, caller, transactionID)
	if err != nil {
		return nil, err
	}
	if payment.Status == model.PaymentPending {
		if _, err := s.poll(ctx, payment, false); err != nil {
			log.Warn().Err(err).Str("transactionID", transactionID).Msg("Gateway status poll failed")
		}
	}
	return &dto.PaymentStatusDTO{Success: true, Payment: toPaymentDTO(*payment)}, nil
}

func (s *paymentService) History(ctx context.Context, caller policy.Principal) ([]dto.PaymentDTO, error) {
	payments, err := s.paymentRepo.FindByStudent(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("error fetching payments: %w", err)
	}
	out := make([]dto.PaymentDTO, len(payments))
	for i, p := range payments {
		out[i] = toPaymentDTO(p)
	}
	return out, nil
}

func (s *paymentService) MarkRefunded(ctx context.Context, caller policy.Principal, transactionID string) (*dto.PaymentDTO, error) {
	if !caller.Can(policy.ViewAdminDashboard) {
		return nil, fmt.Errorf("%w: only admins can record refunds", ErrForbidden)
	}
	payment, err := s.paymentRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: payment %s", ErrNotFound, transactionID)
		}
		return nil, fmt.Errorf("loading payment %s: %w", transactionID, err)
	}
	if !payment.Status.CanTransitionTo(model.PaymentRefunded) {
		return nil, fmt.Errorf("%w: %s payments cannot be refunded", ErrInvalidState, payment.Status)
	}
	changed, err := s.apply(ctx, payment, repository.PaymentTransition{To: model.PaymentRefunded}, "admin")
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: payment %s changed concurrently", ErrInvalidState, transactionID)
	}
	out := toPaymentDTO(*payment)
	return &out, nil
}

func (s *paymentService) Reconcile(ctx context.Context, olderThan time.Time) (int, error) {
	stale, err := s.paymentRepo.FindStale(ctx, []model.PaymentStatus{model.PaymentPending, model.PaymentProcessing}, olderThan, reconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("error fetching stale payments: %w", err)
	}
	changed := 0
	for i := range stale {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		ok, err := s.poll(ctx, &stale[i], false)
		if err != nil {
			log.Warn().Err(err).Str("transactionID", stale[i].TransactionID).Msg("Reconcile poll failed")
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}
