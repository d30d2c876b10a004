package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tawandakembo/PikichaPay/internal/pkg/env"
)

const defaultEcocashChargeURL = "https://api.ecocash.co.zw/payments/v2/charge"

// EcocashClient talks to the EcoCash open API. Inbound webhooks are
// JSON; authenticity comes from an HMAC-SHA256 signature header over
// the raw body.
type EcocashClient struct {
	APIKey       string
	APISecret    string
	MerchantCode string
	ChargeURL    string
	ResultURL    string

	HTTPClient *http.Client
}

func NewEcocashClientFromEnv() *EcocashClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	resultURL := strings.TrimSpace(env.GetEnv("ECOCASH_RESULT_URL", ""))
	if resultURL == "" && base != "" {
		resultURL = base + "/api/v1/payments/webhook/ecocash"
	}

	return &EcocashClient{
		APIKey:       strings.TrimSpace(env.GetEnv("ECOCASH_API_KEY", "")),
		APISecret:    strings.TrimSpace(env.GetEnv("ECOCASH_API_SECRET", "")),
		MerchantCode: strings.TrimSpace(env.GetEnv("ECOCASH_MERCHANT_CODE", "")),
		ChargeURL:    strings.TrimSpace(env.GetEnv("ECOCASH_CHARGE_URL", defaultEcocashChargeURL)),
		ResultURL:    resultURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// VerifySignature checks the X-Ecocash-Signature header (hex HMAC-SHA256
// of the raw body with the API secret).
func (c *EcocashClient) VerifySignature(payload []byte, signatureHeader string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || c.APISecret == "" {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.APISecret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}

// ClassifyEcocashStatus maps the EcoCash status vocabulary onto the
// normalized outcome; unknown words stay PENDING.
func ClassifyEcocashStatus(status string) Outcome {
	s := strings.ToUpper(strings.TrimSpace(status))
	switch s {
	case "COMPLETED", "SUCCESS", "SUCCESSFUL", "PAID":
		return OutcomeSuccess
	case "FAILED", "CANCELLED", "CANCELED", "EXPIRED", "DECLINED":
		return OutcomeFailed
	}
	if strings.Contains(s, "INSUFFICIENT") {
		return OutcomeFailed
	}
	return OutcomePending
}

type ecocashWebhookPayload struct {
	TransactionID   string            `json:"transactionId"`
	SourceReference string            `json:"sourceReference"`
	Amount          json.Number       `json:"amount"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`
	CustomerMsisdn  string            `json:"customerMsisdn"`
	Metadata        map[string]string `json:"metadata"`
}

// ParseWebhook validates and normalizes an EcoCash callback body.
func (c *EcocashClient) ParseWebhook(rawBody []byte) (*PaymentEvent, error) {
	var p ecocashWebhookPayload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(p.TransactionID) == "" ||
		strings.TrimSpace(p.SourceReference) == "" ||
		strings.TrimSpace(p.Status) == "" {
		return nil, fmt.Errorf("%w: missing transactionId/sourceReference/status", ErrInvalidPayload)
	}

	currency, err := ParseCurrency(p.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(p.Amount.String(), currency)
	if err != nil {
		return nil, err
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["status"] = strings.TrimSpace(p.Status)

	return &PaymentEvent{
		Provider:     ProviderEcocash,
		Reference:    strings.TrimSpace(p.SourceReference),
		ProviderTxID: strings.TrimSpace(p.TransactionID),
		Amount:       amount,
		Outcome:      ClassifyEcocashStatus(p.Status),
		PayerPhone:   strings.TrimSpace(p.CustomerMsisdn),
		Metadata:     metadata,
	}, nil
}

type ecocashChargeRequest struct {
	MerchantCode    string            `json:"merchantCode"`
	SourceReference string            `json:"sourceReference"`
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	CustomerMsisdn  string            `json:"customerMsisdn"`
	ResultURL       string            `json:"resultUrl"`
	Description     string            `json:"description"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type ecocashChargeResponse struct {
	Status  string `json:"status"`
	PollURL string `json:"pollUrl"`
	Message string `json:"message"`
}

// InitiateMobile pushes a USSD payment prompt to the payer's handset.
// The call is bounded by the client timeout; a timeout means pending,
// never success.
func (c *EcocashClient) InitiateMobile(ctx context.Context, reference string, amount Amount, phone string, intent Intent) (*InitiateResult, error) {
	if c.APIKey == "" || c.APISecret == "" || c.MerchantCode == "" {
		return nil, errors.New("ECOCASH_API_KEY/ECOCASH_API_SECRET/ECOCASH_MERCHANT_CODE are not configured")
	}
	msisdn, err := NormalizeMsisdn(phone)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{"purpose": string(intent.Kind)}
	if intent.Kind == IntentOrder && intent.OrderID != "" {
		metadata["orderId"] = intent.OrderID
	}

	payload, err := json.Marshal(ecocashChargeRequest{
		MerchantCode:    c.MerchantCode,
		SourceReference: reference,
		Amount:          amount.String(),
		Currency:        string(amount.Currency),
		CustomerMsisdn:  msisdn,
		ResultURL:       resultURLFor(c.ResultURL, intent),
		Description:     "Pikicha payment",
		Metadata:        metadata,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ChargeURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ecocash charge failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ecocash charge failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out ecocashChargeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return &InitiateResult{
		Reference:    reference,
		PollURL:      out.PollURL,
		Instructions: "Enter your EcoCash PIN on the payment prompt sent to " + msisdn + " to complete the transaction.",
	}, nil
}
