package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/SimelweN/rebooked-backend/pkg/config"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
)

var (
	errSecretKeyRequired     = errors.New("paystack secret key is required")
	errWebhookSecretRequired = errors.New("paystack webhook secret is required")
	errLoggerRequired        = errors.New("paystack logger is required")
)

// Client wraps the Paystack REST API with centralized auth, timeouts and
// error mapping. Only the surface the fulfillment engine needs is exposed:
// refunds, transfer recipients and webhook signature verification.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient initializes the Paystack wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:       baseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		logger:        logg,
	}

	logg.Info(ctx, "paystack client initialized")
	return c, nil
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// VerifyWebhookSignature checks the hex HMAC-SHA512 digest of the raw body
// against the signature header using a constant-time comparison.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	return VerifySignature(payload, c.SigningSecret(), signature)
}

// VerifySignature is the bare signature check, exported so tests and the
// webhook controller can use it without a full client.
func VerifySignature(payload []byte, secret, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// envelope is Paystack's standard response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RefundParams identifies the charge to reverse. AmountCents is the original
// order amount in minor currency units.
type RefundParams struct {
	TransactionReference string
	AmountCents          int64
	Reason               string
}

// RefundResult is the gateway's view of the refund after creation.
type RefundResult struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	Raw         []byte `json:"-"`
}

// Succeeded reports whether the gateway already settled the refund; anything
// else is still pending on their side.
func (r *RefundResult) Succeeded() bool {
	if r == nil {
		return false
	}
	switch strings.ToLower(r.Status) {
	case "processed", "success":
		return true
	default:
		return false
	}
}

// Refund asks the gateway to reverse the original charge.
func (c *Client) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if strings.TrimSpace(params.TransactionReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	body := map[string]any{
		"transaction":   params.TransactionReference,
		"amount":        params.AmountCents,
		"merchant_note": params.Reason,
	}

	raw, err := c.post(ctx, "/refund", body)
	if err != nil {
		return nil, err
	}

	var result RefundResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode refund response")
	}
	result.Raw = raw
	return &result, nil
}

// RecipientParams describes the seller bank destination to register.
type RecipientParams struct {
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

// Recipient is the gateway-issued transfer destination.
type Recipient struct {
	RecipientCode string `json:"recipient_code"`
	Active        bool   `json:"active"`
}

// CreateTransferRecipient registers a bank account and returns its code.
func (c *Client) CreateTransferRecipient(ctx context.Context, params RecipientParams) (*Recipient, error) {
	if strings.TrimSpace(params.AccountNumber) == "" || strings.TrimSpace(params.BankCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account number and bank code are required")
	}
	currency := params.Currency
	if currency == "" {
		currency = "ZAR"
	}

	body := map[string]any{
		"type":           "nuban",
		"name":           params.Name,
		"account_number": params.AccountNumber,
		"bank_code":      params.BankCode,
		"currency":       currency,
	}

	raw, err := c.post(ctx, "/transferrecipient", body)
	if err != nil {
		return nil, err
	}

	var recipient Recipient
	if err := json.Unmarshal(raw, &recipient); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode recipient response")
	}
	if recipient.RecipientCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned empty recipient code")
	}
	return &recipient, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paystack %s", path))
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway envelope")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("paystack %s returned %d", path, resp.StatusCode)
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msg).
			WithDetails(map[string]any{"path": path, "http_status": resp.StatusCode})
	}

	return env.Data, nil
}
