package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"propertyhub/internal/config"
)

// CheckoutRequest is what the orchestrator sends to the provider.
type CheckoutRequest struct {
	ReferenceID string
	Amount      float64
	Currency    string
	Phone       string
	AccountName string
	Provider    string
	CallbackURL string
	Properties  map[string]interface{}
}

// CheckoutResult is the provider's answer to a checkout.
type CheckoutResult struct {
	Success       bool
	TransactionID string
	PaymentLink   string
	Message       string
	RawRequest    []byte
	RawResponse   []byte
}

// QueryResult is the provider's answer to a transaction status query.
type QueryResult struct {
	Status      string // successful, failed, pending
	Amount      float64
	ReferenceID string
}

type tokenResponse struct {
	Data struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
	AccessToken string `json:"accessToken"`
}

// AzamClient speaks the AZAM Pay HTTP API: token issuance, MNO and bank
// checkout, transaction query, webhook signatures. Tokens are cached for an
// hour under a mutex.
type AzamClient struct {
	cfg  config.AzamPayConfig
	http *http.Client
	log  *logrus.Entry

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewAzamClient(cfg config.AzamPayConfig, timeout time.Duration) *AzamClient {
	return &AzamClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  logrus.WithField("component", "azampay"),
	}
}

func (c *AzamClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	body, _ := json.Marshal(map[string]string{
		"appName":      c.cfg.AppName,
		"clientId":     c.cfg.ClientID,
		"clientSecret": c.cfg.ClientSecret,
		"grantType":    "client_credentials",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/Token/GetToken", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("token request: provider returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	token := tr.Data.AccessToken
	if token == "" {
		token = tr.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("token response: empty access token")
	}

	c.accessToken = token
	c.tokenExpiry = time.Now().Add(time.Hour)
	c.log.Info("access token refreshed")
	return token, nil
}

// InitiateMNO starts a mobile money checkout (M-Pesa, TigoPesa, AzamPesa).
func (c *AzamClient) InitiateMNO(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	payload := map[string]interface{}{
		"vendorName":           c.cfg.AppName,
		"amount":               fmt.Sprintf("%.2f", req.Amount),
		"currency":             req.Currency,
		"customerPhoneNumber":  NormalizePhone(req.Phone),
		"merchantMobileNumber": NormalizePhone(req.Phone),
		"merchantName":         c.cfg.AppName,
		"provider":             req.Provider,
		"referenceId":          req.ReferenceID,
		"redirectUrl":          req.CallbackURL,
		"cancelUrl":            req.CallbackURL,
		"additionalProperties": req.Properties,
	}
	return c.checkout(ctx, "/api/v1/azampay/mno/checkout", payload)
}

// InitiateBank starts a bank checkout.
func (c *AzamClient) InitiateBank(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	payload := map[string]interface{}{
		"accountNumber":        NormalizePhone(req.Phone),
		"accountName":          req.AccountName,
		"amount":               fmt.Sprintf("%.2f", req.Amount),
		"currency":             req.Currency,
		"referenceId":          req.ReferenceID,
		"redirectUrl":          req.CallbackURL,
		"cancelUrl":            req.CallbackURL,
		"merchantName":         c.cfg.AppName,
		"paymentProvider":      req.Provider,
		"additionalProperties": req.Properties,
	}
	return c.checkout(ctx, "/api/v1/bank/checkout", payload)
}

func (c *AzamClient) checkout(ctx context.Context, path string, payload map[string]interface{}) (*CheckoutResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var parsed struct {
		Success       bool   `json:"success"`
		Status        string `json:"status"`
		Message       string `json:"message"`
		TransactionID string `json:"transactionId"`
		RedirectURL   string `json:"redirectUrl"`
		Data          struct {
			TransactionID string `json:"transactionId"`
			RedirectURL   string `json:"redirectUrl"`
			PaymentURL    string `json:"paymentUrl"`
		} `json:"data"`
	}
	_ = json.Unmarshal(raw, &parsed)

	result := &CheckoutResult{
		Success:       (parsed.Success || strings.EqualFold(parsed.Status, "success")) && resp.StatusCode/100 == 2,
		TransactionID: firstNonEmpty(parsed.Data.TransactionID, parsed.TransactionID),
		PaymentLink:   firstNonEmpty(parsed.Data.RedirectURL, parsed.Data.PaymentURL, parsed.RedirectURL),
		Message:       parsed.Message,
		RawRequest:    body,
		RawResponse:   raw,
	}
	if !result.Success && result.Message == "" {
		result.Message = fmt.Sprintf("provider returned %d", resp.StatusCode)
	}
	return result, nil
}

// Query asks the provider for the current state of a transaction. The
// returned status is normalized to successful/failed/pending.
func (c *AzamClient) Query(ctx context.Context, referenceID string) (*QueryResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]string{"referenceId": referenceID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/Transaction/Query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transaction query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("transaction query: provider returned %d", resp.StatusCode)
	}

	var parsed struct {
		Status      string  `json:"status"`
		Amount      float64 `json:"amount,string"`
		ReferenceID string  `json:"referenceId"`
		Data        *struct {
			Status      string  `json:"status"`
			Amount      float64 `json:"amount,string"`
			ReferenceID string  `json:"referenceId"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("transaction query response: %w", err)
	}
	status, amount, ref := parsed.Status, parsed.Amount, parsed.ReferenceID
	if parsed.Data != nil {
		status, amount, ref = parsed.Data.Status, parsed.Data.Amount, parsed.Data.ReferenceID
	}
	if ref == "" {
		ref = referenceID
	}
	return &QueryResult{
		Status:      NormalizeStatus(status),
		Amount:      amount,
		ReferenceID: ref,
	}, nil
}

// VerifySignature checks the webhook HMAC-SHA256 hex signature against the
// raw body. With no secret configured, sandbox mode accepts everything and
// production accepts nothing.
func (c *AzamClient) VerifySignature(body []byte, signature string) bool {
	if c.cfg.WebhookSecret == "" {
		return c.cfg.Sandbox
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// NormalizePhone coerces local numbers into +255 international form.
func NormalizePhone(phone string) string {
	p := strings.TrimSpace(phone)
	if p == "" || strings.HasPrefix(p, "+") {
		return p
	}
	if strings.HasPrefix(p, "0") {
		return "+255" + p[1:]
	}
	if strings.HasPrefix(p, "255") {
		return "+" + p
	}
	return "+255" + p
}

// NormalizeStatus maps the provider's status vocabulary onto
// successful/failed/pending.
func NormalizeStatus(status string) string {
	switch strings.ToLower(status) {
	case "success", "successful", "completed", "paid":
		return "successful"
	case "failed", "failure", "error", "cancelled":
		return "failed"
	default:
		return "pending"
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
