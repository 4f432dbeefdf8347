package user

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/config"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/service"
	"github.com/rs/zerolog/log"
)

const (
	callbackPath = "/api/v1/payments/callback"
	webhookPath  = "/api/v1/payments/webhook"
)

type PaymentController struct {
	paymentService service.PaymentService
	redirectURL    string
	callbackURL    string
}

func NewPaymentController(paymentService service.PaymentService, cfg *config.Config) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		redirectURL:    cfg.PhonePe.RedirectURL,
		callbackURL:    cfg.PhonePe.CallbackURL,
	}
}

// returnURLs falls back to this server's own callback and webhook routes.
func (c *PaymentController) returnURLs(ctx *gin.Context) service.ReturnURLs {
	scheme := "http"
	if ctx.Request.TLS != nil || ctx.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	base := scheme + "://" + ctx.Request.Host
	urls := service.ReturnURLs{Redirect: c.redirectURL, Callback: c.callbackURL}
	if urls.Redirect == "" {
		urls.Redirect = base + callbackPath
	}
	if urls.Callback == "" {
		urls.Callback = base + webhookPath
	}
	return urls
}

// ListGateways godoc
// @Summary List payment gateways
// @Tags Payments
// @Produce json
// @Success 200 {object} dto.GatewayListDTO
// @Router /payments/gateways [get]
func (c *PaymentController) ListGateways(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.GatewayListDTO{Success: true, Gateways: c.paymentService.Gateways()})
}

// InitiatePayment godoc
// @Summary (Student) Start paying for a batch
// @Description The amount must equal the batch's effective price. Returns the gateway checkout URL.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payment body dto.PaymentInitiateDTO true "Gateway, amount and batch"
// @Success 200 {object} dto.PaymentInitiateResultDTO
// @Failure 400 {object} dto.PaymentFailureDTO "Invalid request or gateway coming soon"
// @Failure 502 {object} dto.PaymentFailureDTO "Gateway refused the request"
// @Failure 503 {object} dto.PaymentFailureDTO "Gateway not configured"
// @Router /payments/initiate [post]
func (c *PaymentController) InitiatePayment(ctx *gin.Context) {
	var req dto.PaymentInitiateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.PaymentFailureDTO{Error: err.Error()})
		return
	}
	result, err := c.paymentService.Initiate(ctx.Request.Context(), controller.Caller(ctx), req, c.returnURLs(ctx))
	if err != nil {
		failure := dto.PaymentFailureDTO{Error: err.Error()}
		if errors.Is(err, service.ErrComingSoon) {
			failure.ComingSoon = true
			failure.Error = displayName(req.Gateway) + " integration is coming soon!"
		}
		status := controller.StatusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Uint("batchID", req.BatchID).Msg("Payment initiation failed")
			failure.Error = "Payment initiation failed"
		}
		ctx.JSON(status, failure)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// PaymentCallback godoc
// @Summary Gateway redirect callback
// @Description Polls the gateway for the named transaction. Always acknowledges.
// @Tags Payments
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param notification body dto.GatewayNotificationDTO false "Transaction reference"
// @Success 200 {object} dto.GatewayAckDTO
// @Router /payments/callback [post]
func (c *PaymentController) PaymentCallback(ctx *gin.Context) {
	var req dto.GatewayNotificationDTO
	if err := ctx.ShouldBind(&req); err != nil {
		log.Warn().Err(err).Msg("Unreadable payment callback body")
	}
	merchantTxnID := req.TransactionID
	if merchantTxnID == "" {
		merchantTxnID = req.MerchantTransactionID
	}
	if err := c.paymentService.HandleCallback(ctx.Request.Context(), merchantTxnID); err != nil {
		log.Error().Err(err).Str("merchantTxnID", merchantTxnID).Msg("Payment callback failed")
	}
	ctx.JSON(http.StatusOK, dto.GatewayAckDTO{Status: "received", Message: "Payment callback processed"})
}

// PaymentWebhook godoc
// @Summary Signed server-to-server notification
// @Description The X-VERIFY header must carry sha256(response + salt key) followed by ### and the key index.
// @Tags Payments
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param X-VERIFY header string true "Signature"
// @Param notification body dto.GatewayNotificationDTO true "Base64 payload in response"
// @Success 200 {object} dto.GatewayAckDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse "Invalid signature"
// @Failure 503 {object} dto.ErrorResponse
// @Router /payments/webhook [post]
func (c *PaymentController) PaymentWebhook(ctx *gin.Context) {
	var req dto.GatewayNotificationDTO
	if err := ctx.ShouldBind(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid webhook request", Details: []string{err.Error()}})
		return
	}
	xVerify := ctx.GetHeader("X-VERIFY")
	headers := map[string]string{
		"X-VERIFY":     xVerify,
		"Content-Type": ctx.ContentType(),
		"User-Agent":   ctx.Request.UserAgent(),
	}
	outcome, err := c.paymentService.HandleWebhook(ctx.Request.Context(), req.Response, xVerify, headers)
	if err != nil {
		controller.RespondError(ctx, err, "Webhook rejected")
		return
	}
	ctx.JSON(http.StatusOK, dto.GatewayAckDTO{Status: "success", Message: outcome})
}

// CheckPaymentStatus godoc
// @Summary (Student) Payment status
// @Description Polls the gateway while the payment is still pending.
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param transaction_id path string true "Transaction ID"
// @Success 200 {object} dto.PaymentStatusDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /payments/status/{transaction_id} [get]
func (c *PaymentController) CheckPaymentStatus(ctx *gin.Context) {
	out, err := c.paymentService.CheckStatus(ctx.Request.Context(), controller.Caller(ctx), ctx.Param("transaction_id"))
	if err != nil {
		controller.RespondError(ctx, err, "Payment not found")
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// PaymentHistory godoc
// @Summary (Student) Payment history
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.PaymentHistoryDTO
// @Router /payments/history [get]
func (c *PaymentController) PaymentHistory(ctx *gin.Context) {
	payments, err := c.paymentService.History(ctx.Request.Context(), controller.Caller(ctx))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve payments")
		return
	}
	ctx.JSON(http.StatusOK, dto.PaymentHistoryDTO{Success: true, Payments: payments})
}

func displayName(gatewayID string) string {
	if gatewayID == "" {
		return "Gateway"
	}
	return strings.ToUpper(gatewayID[:1]) + gatewayID[1:]
}
