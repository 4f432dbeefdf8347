// Package gateway talks to the PhonePe payment gateway: request signing,
// webhook verification and the pay/status HTTP calls.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/padhoplus/config"
	"github.com/rs/zerolog/log"
)

const (
	PhonePe  = "phonepe"
	Razorpay = "razorpay"

	ModeUAT        = "UAT"
	ModeProduction = "PRODUCTION"

	payEndpoint = "/pg/v1/pay"

	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StatePending   = "PENDING"

	CodePaymentSuccess = "PAYMENT_SUCCESS"
	CodePaymentError   = "PAYMENT_ERROR"
	CodePaymentPending = "PAYMENT_PENDING"
)

var baseURLs = map[string]string{
	ModeUAT:        "https://api-preprod.phonepe.com/apis/pg-sandbox",
	ModeProduction: "https://api.phonepe.com/apis/hermes",
}

var (
	ErrNotConfigured = errors.New("payment gateway credentials not configured")
	ErrTimeout       = errors.New("payment gateway timeout")
	ErrUnavailable   = errors.New("payment gateway unavailable")
	ErrRejected      = errors.New("payment gateway rejected the request")
	ErrComingSoon    = errors.New("payment gateway integration is coming soon")
	ErrUnknown       = errors.New("unknown payment gateway")
)

// Info describes a gateway offered to clients.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
	ComingSoon  bool   `json:"coming_soon"`
}

func Available() []Info {
	return []Info{
		{ID: PhonePe, Name: "PhonePe", Description: "Pay using UPI, Cards, Net Banking via PhonePe", Available: true},
		{ID: Razorpay, Name: "Razorpay", Description: "Pay using UPI, Cards, Net Banking, Wallets via Razorpay", ComingSoon: true},
	}
}

// Checksum builds the X-VERIFY header value for an outbound call.
func Checksum(payloadB64, endpoint, secret string, keyIndex int) string {
	sum := sha256.Sum256([]byte(payloadB64 + endpoint + secret))
	return hex.EncodeToString(sum[:]) + "###" + strconv.Itoa(keyIndex)
}

// VerifyWebhook checks the X-VERIFY header of an inbound webhook against
// sha256(responseB64 + secret). The key index suffix is ignored.
func VerifyWebhook(responseB64, header, secret string) bool {
	if responseB64 == "" || header == "" || secret == "" {
		return false
	}
	digest := header
	if i := strings.Index(header, "###"); i >= 0 {
		digest = header[:i]
	}
	sum := sha256.Sum256([]byte(responseB64 + secret))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(digest)), []byte(expected)) == 1
}

// NewMerchantTransactionID returns "MT" followed by 20 hex characters.
func NewMerchantTransactionID() string {
	return "MT" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// NewTransactionID returns the platform id, "TXN" followed by 16 upper hex characters.
func NewTransactionID() string {
	return "TXN" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

// ToPaise converts rupees to the integer paise amount the gateway expects.
func ToPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type InitiateRequest struct {
	MerchantTransactionID string
	UserID                uint
	Amount                float64
	RedirectURL           string
	CallbackURL           string
}

type InitiateResult struct {
	PaymentURL            string
	MerchantTransactionID string
	Raw                   json.RawMessage
}

// StatusResult is the gateway's view of one transaction.
type StatusResult struct {
	Success       bool
	Code          string
	Message       string
	State         string
	TransactionID string
	Raw           json.RawMessage
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type transactionData struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	State                 string `json:"state"`
	Amount                int64  `json:"amount"`
	ResponseCode          string `json:"responseCode"`
}

// WebhookPayload is the decoded "response" field of a webhook.
type WebhookPayload struct {
	Success               bool
	Code                  string
	Message               string
	MerchantTransactionID string
	TransactionID         string
	State                 string
	Raw                   json.RawMessage
}

// DecodeWebhook decodes the base64 JSON body. The merchant transaction id is
// read from the top level first and from data otherwise.
func DecodeWebhook(responseB64 string) (*WebhookPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(responseB64)
	if err != nil {
		return nil, fmt.Errorf("decode webhook base64: %w", err)
	}
	var body struct {
		envelope
		MerchantTransactionID string `json:"merchantTransactionId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode webhook json: %w", err)
	}
	p := &WebhookPayload{
		Success:               body.Success,
		Code:                  body.Code,
		Message:               body.Message,
		MerchantTransactionID: body.MerchantTransactionID,
		Raw:                   raw,
	}
	if len(body.Data) > 0 {
		var data transactionData
		if err := json.Unmarshal(body.Data, &data); err == nil {
			if p.MerchantTransactionID == "" {
				p.MerchantTransactionID = data.MerchantTransactionID
			}
			p.TransactionID = data.TransactionID
			p.State = data.State
		}
	}
	return p, nil
}

// PhonePeClient performs signed calls against the PhonePe PG API.
type PhonePeClient struct {
	merchantID string
	secret     string
	keyIndex   int
	baseURL    string
	http       *http.Client
}

func NewPhonePeClient(cfg *config.Config) (*PhonePeClient, error) {
	if cfg.PhonePe.ClientID == "" || cfg.PhonePe.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	base, ok := baseURLs[strings.ToUpper(cfg.PhonePe.Mode)]
	if !ok {
		log.Warn().Str("mode", cfg.PhonePe.Mode).Msg("Unknown PHONEPE_MODE, falling back to UAT")
		base = baseURLs[ModeUAT]
	}
	timeout := cfg.PhonePe.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	keyIndex := cfg.PhonePe.KeyIndex
	if keyIndex <= 0 {
		keyIndex = 1
	}
	return &PhonePeClient{
		merchantID: cfg.PhonePe.ClientID,
		secret:     cfg.PhonePe.ClientSecret,
		keyIndex:   keyIndex,
		baseURL:    base,
		http:       &http.Client{Timeout: timeout},
	}, nil
}

// WithBaseURL points the client at another host, used against test servers.
func (c *PhonePeClient) WithBaseURL(u string) *PhonePeClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

func (c *PhonePeClient) Name() string { return PhonePe }

func (c *PhonePeClient) VerifyWebhook(responseB64, header string) bool {
	return VerifyWebhook(responseB64, header, c.secret)
}

func (c *PhonePeClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	merchantTxnID := req.MerchantTransactionID
	if merchantTxnID == "" {
		merchantTxnID = NewMerchantTransactionID()
	}
	payload := map[string]any{
		"merchantId":            c.merchantID,
		"merchantTransactionId": merchantTxnID,
		"merchantUserId":        fmt.Sprintf("USER%d", req.UserID),
		"amount":                ToPaise(req.Amount),
		"redirectUrl":           req.RedirectURL,
		"redirectMode":          "POST",
		"callbackUrl":           req.CallbackURL,
		"paymentInstrument":     map[string]string{"type": "PAY_PAGE"},
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode pay payload: %w", err)
	}
	payloadB64 := base64.StdEncoding.EncodeToString(payloadJSON)
	body, _ := json.Marshal(map[string]string{"request": payloadB64})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+payEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build pay request: %w", err)
	}
	c.setHeaders(httpReq, Checksum(payloadB64, payEndpoint, c.secret, c.keyIndex))

	raw, env, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "Payment initiation failed"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	var data struct {
		InstrumentResponse struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.InstrumentResponse.RedirectInfo.URL == "" {
		return nil, fmt.Errorf("%w: missing redirect url", ErrRejected)
	}
	return &InitiateResult{
		PaymentURL:            data.InstrumentResponse.RedirectInfo.URL,
		MerchantTransactionID: merchantTxnID,
		Raw:                   raw,
	}, nil
}

func (c *PhonePeClient) Status(ctx context.Context, merchantTxnID string) (*StatusResult, error) {
	endpoint := fmt.Sprintf("/pg/v1/status/%s/%s", c.merchantID, merchantTxnID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	c.setHeaders(httpReq, Checksum("", endpoint, c.secret, c.keyIndex))

	raw, env, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	res := &StatusResult{Success: env.Success, Code: env.Code, Message: env.Message, Raw: raw}
	if len(env.Data) > 0 {
		var data transactionData
		if err := json.Unmarshal(env.Data, &data); err == nil {
			res.State = data.State
			res.TransactionID = data.TransactionID
		}
	}
	return res, nil
}

func (c *PhonePeClient) setHeaders(req *http.Request, xVerify string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-VERIFY", xVerify)
	req.Header.Set("X-MERCHANT-ID", c.merchantID)
}

func (c *PhonePeClient) do(req *http.Request) (json.RawMessage, *envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn().Int("status", resp.StatusCode).Str("url", req.URL.Path).Msg("Gateway returned a non-JSON body")
		return nil, nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return raw, &env, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
