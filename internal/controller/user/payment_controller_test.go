package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/config"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/middleware"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPayments overrides the methods a test needs. Calling any other
// method panics on the nil embedded interface.
type stubPayments struct {
	service.PaymentService

	initiateErr error
	urls        service.ReturnURLs
	callbackID  string
	webhookB64  string
	webhookSig  string
	webhookErr  error
}

func (s *stubPayments) Initiate(_ context.Context, _ policy.Principal, req dto.PaymentInitiateDTO, urls service.ReturnURLs) (*dto.PaymentInitiateResultDTO, error) {
	s.urls = urls
	if s.initiateErr != nil {
		return nil, s.initiateErr
	}
	return &dto.PaymentInitiateResultDTO{Success: true, PaymentURL: "https://pay.example/checkout", TransactionID: "TXN1"}, nil
}

func (s *stubPayments) HandleCallback(_ context.Context, merchantTxnID string) error {
	s.callbackID = merchantTxnID
	return nil
}

func (s *stubPayments) HandleWebhook(_ context.Context, responseB64, xVerify string, _ map[string]string) (string, error) {
	s.webhookB64, s.webhookSig = responseB64, xVerify
	if s.webhookErr != nil {
		return "", s.webhookErr
	}
	return service.WebhookProcessed, nil
}

func newPaymentRouter(stub *stubPayments) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctrl := NewPaymentController(stub, &config.Config{})
	r := gin.New()
	student := func(ctx *gin.Context) {
		middleware.SetPrincipal(ctx, policy.Principal{UserID: 7, Role: policy.RoleStudent})
	}
	r.POST("/api/v1/payments/initiate", student, ctrl.InitiatePayment)
	r.POST("/api/v1/payments/callback", ctrl.PaymentCallback)
	r.POST("/api/v1/payments/webhook", ctrl.PaymentWebhook)
	return r
}

func TestInitiatePaymentBuildsReturnURLs(t *testing.T) {
	stub := &stubPayments{}
	r := newPaymentRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", strings.NewReader(`{"gateway":"phonepe","amount":499,"batch_id":3}`))
	req.Host = "api.example.com"
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://api.example.com/api/v1/payments/callback", stub.urls.Redirect)
	assert.Equal(t, "http://api.example.com/api/v1/payments/webhook", stub.urls.Callback)
}

func TestInitiatePaymentFailures(t *testing.T) {
	cases := []struct {
		err        error
		status     int
		comingSoon bool
	}{
		{service.ErrComingSoon, http.StatusBadRequest, true},
		{service.ErrGatewayFailure, http.StatusBadGateway, false},
		{service.ErrUnavailable, http.StatusServiceUnavailable, false},
	}
	for _, c := range cases {
		r := newPaymentRouter(&stubPayments{initiateErr: c.err})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", strings.NewReader(`{"gateway":"razorpay","amount":499,"batch_id":3}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, c.status, w.Code, c.err.Error())
		var body dto.PaymentFailureDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, c.comingSoon, body.ComingSoon)
		if c.comingSoon {
			assert.Equal(t, "Razorpay integration is coming soon!", body.Error)
		}
	}

	r := newPaymentRouter(&stubPayments{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", strings.NewReader(`{"amount":0}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentCallbackPrefersTransactionID(t *testing.T) {
	stub := &stubPayments{}
	r := newPaymentRouter(stub)

	form := url.Values{"transactionId": {"MT-1"}, "merchantTransactionId": {"MT-2"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MT-1", stub.callbackID)
	assert.JSONEq(t, `{"status":"received","message":"Payment callback processed"}`, w.Body.String())
}

func TestPaymentWebhook(t *testing.T) {
	stub := &stubPayments{}
	r := newPaymentRouter(stub)

	form := url.Values{"response": {"eyJjb2RlIjoiUEFZTUVOVF9TVUNDRVNTIn0="}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-VERIFY", "abc###1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc###1", stub.webhookSig)
	assert.Equal(t, "eyJjb2RlIjoiUEFZTUVOVF9TVUNDRVNTIn0=", stub.webhookB64)
	assert.JSONEq(t, `{"status":"success","message":"processed"}`, w.Body.String())

	stub.webhookErr = service.ErrInvalidSignature
	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(`{"response":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", "forged")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
