package payments

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tawandakembo/PikichaPay/internal/pkg/env"
)

const (
	defaultPaynowInitiateURL = "https://www.paynow.co.zw/interface/initiatetransaction"
	defaultPaynowRemoteURL   = "https://www.paynow.co.zw/interface/remotetransaction"
)

// PaynowClient talks to the Paynow gateway. It handles the card
// redirect flow (initiate + browser URL + poll) and the express mobile
// flow, and normalizes Paynow's form-encoded status webhooks.
type PaynowClient struct {
	IntegrationID  string
	IntegrationKey string
	ResultURL      string
	ReturnURL      string

	InitiateURL string
	RemoteURL   string

	HTTPClient *http.Client
}

func NewPaynowClientFromEnv() *PaynowClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	resultURL := strings.TrimSpace(env.GetEnv("PAYNOW_RESULT_URL", ""))
	if resultURL == "" && base != "" {
		resultURL = base + "/api/v1/payments/webhook/paynow"
	}
	returnURL := strings.TrimSpace(env.GetEnv("PAYNOW_RETURN_URL", ""))
	if returnURL == "" && base != "" {
		returnURL = base + "/payments/return"
	}

	return &PaynowClient{
		IntegrationID:  strings.TrimSpace(env.GetEnv("PAYNOW_INTEGRATION_ID", "")),
		IntegrationKey: strings.TrimSpace(env.GetEnv("PAYNOW_INTEGRATION_KEY", "")),
		ResultURL:      resultURL,
		ReturnURL:      returnURL,
		InitiateURL:    strings.TrimSpace(env.GetEnv("PAYNOW_INITIATE_URL", defaultPaynowInitiateURL)),
		RemoteURL:      strings.TrimSpace(env.GetEnv("PAYNOW_REMOTE_URL", defaultPaynowRemoteURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// formField keeps one key/value pair with its wire position. Paynow
// hashes are computed over values in the order the fields were posted,
// which url.Values cannot preserve.
type formField struct {
	key   string
	value string
}

func parseOrderedForm(raw []byte) ([]formField, error) {
	fields := make([]formField, 0, 8)
	for _, pair := range strings.Split(string(raw), "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		fields = append(fields, formField{key: k, value: v})
	}
	return fields, nil
}

func fieldValue(fields []formField, key string) string {
	for _, f := range fields {
		if strings.EqualFold(f.key, key) {
			return strings.TrimSpace(f.value)
		}
	}
	return ""
}

// paynowHash is SHA512 over the concatenated field values (hash field
// excluded, wire order preserved) plus the integration key, upper hex.
func paynowHash(fields []formField, integrationKey string) string {
	var b strings.Builder
	for _, f := range fields {
		if strings.EqualFold(f.key, "hash") {
			continue
		}
		b.WriteString(f.value)
	}
	b.WriteString(integrationKey)
	sum := sha512.Sum512([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func verifyPaynowHash(fields []formField, integrationKey string) bool {
	got := fieldValue(fields, "hash")
	if got == "" || integrationKey == "" {
		return false
	}
	want := paynowHash(fields, integrationKey)
	return subtle.ConstantTimeCompare([]byte(strings.ToUpper(got)), []byte(want)) == 1
}

// ClassifyPaynowStatus maps Paynow's status vocabulary onto the
// normalized outcome. Unrecognized statuses stay PENDING so a new
// provider word can never be mistaken for a settlement.
func ClassifyPaynowStatus(status string) Outcome {
	s := strings.ToUpper(strings.TrimSpace(status))
	switch s {
	case "PAID", "DELIVERED", "SUCCESS", "SUCCESSFUL", "AWAITING DELIVERY":
		return OutcomeSuccess
	case "CANCELLED", "CANCELED", "FAILED", "DISPUTED", "REFUNDED":
		return OutcomeFailed
	}
	if strings.Contains(s, "INSUFFICIENT") {
		return OutcomeFailed
	}
	return OutcomePending
}

// ParseWebhook validates and normalizes a Paynow status callback. The
// hash is cryptographically verified, not just checked for presence.
func (c *PaynowClient) ParseWebhook(rawBody []byte) (*PaymentEvent, error) {
	fields, err := parseOrderedForm(rawBody)
	if err != nil {
		return nil, err
	}

	reference := fieldValue(fields, "reference")
	paynowRef := fieldValue(fields, "paynowreference")
	status := fieldValue(fields, "status")
	if reference == "" || paynowRef == "" || status == "" {
		return nil, fmt.Errorf("%w: missing reference/paynowreference/status", ErrInvalidPayload)
	}
	if !verifyPaynowHash(fields, c.IntegrationKey) {
		return nil, ErrInvalidSignature
	}

	_, currency, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(fieldValue(fields, "amount"), currency)
	if err != nil {
		return nil, err
	}

	return &PaymentEvent{
		Provider:     ProviderPaynow,
		Reference:    reference,
		ProviderTxID: paynowRef,
		Amount:       amount,
		Outcome:      ClassifyPaynowStatus(status),
		Metadata: map[string]string{
			"pollurl": fieldValue(fields, "pollurl"),
			"status":  status,
		},
	}, nil
}

// InitiateResult is what an outbound initiation hands back to the
// client: a poll URL always, plus either a redirect URL (card) or
// payment instructions (mobile).
type InitiateResult struct {
	Reference    string `json:"reference"`
	PollURL      string `json:"poll_url,omitempty"`
	RedirectURL  string `json:"redirect_url,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// resultURLFor tags the webhook URL with the payment's purpose so the
// callback endpoint can reconstruct the intent without guessing from
// payload shape.
func resultURLFor(base string, intent Intent) string {
	if base == "" {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	out := base + sep + "purpose=" + string(intent.Kind)
	if intent.Kind == IntentOrder && intent.OrderID != "" {
		out += "&order_id=" + url.QueryEscape(intent.OrderID)
	}
	return out
}

func (c *PaynowClient) configured() error {
	if c.IntegrationID == "" || c.IntegrationKey == "" {
		return errors.New("PAYNOW_INTEGRATION_ID/PAYNOW_INTEGRATION_KEY are not configured")
	}
	return nil
}

// InitiateWeb starts a card/redirect transaction. The caller is sent to
// the returned browser URL and we learn the outcome via webhook or poll.
func (c *PaynowClient) InitiateWeb(ctx context.Context, reference string, amount Amount, email string, intent Intent) (*InitiateResult, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	fields := []formField{
		{"id", c.IntegrationID},
		{"reference", reference},
		{"amount", amount.String()},
		{"additionalinfo", "Pikicha payment"},
		{"returnurl", c.ReturnURL},
		{"resulturl", resultURLFor(c.ResultURL, intent)},
		{"authemail", strings.TrimSpace(email)},
		{"status", "Message"},
	}

	resp, err := c.postForm(ctx, c.InitiateURL, fields)
	if err != nil {
		return nil, err
	}
	return &InitiateResult{
		Reference:   reference,
		PollURL:     fieldValue(resp, "pollurl"),
		RedirectURL: fieldValue(resp, "browserurl"),
	}, nil
}

// InitiateMobile starts an express mobile-money transaction through
// Paynow. The payer confirms on their handset; we return the poll URL
// plus the provider's USSD instructions.
func (c *PaynowClient) InitiateMobile(ctx context.Context, reference string, amount Amount, phone, email string, intent Intent) (*InitiateResult, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	msisdn, err := NormalizeMsisdn(phone)
	if err != nil {
		return nil, err
	}

	fields := []formField{
		{"id", c.IntegrationID},
		{"reference", reference},
		{"amount", amount.String()},
		{"additionalinfo", "Pikicha payment"},
		{"returnurl", c.ReturnURL},
		{"resulturl", resultURLFor(c.ResultURL, intent)},
		{"authemail", strings.TrimSpace(email)},
		{"phone", msisdn},
		{"method", "ecocash"},
		{"status", "Message"},
	}

	resp, err := c.postForm(ctx, c.RemoteURL, fields)
	if err != nil {
		return nil, err
	}
	instructions := fieldValue(resp, "instructions")
	if instructions == "" {
		instructions = "Approve the payment prompt on your phone to complete the transaction."
	}
	return &InitiateResult{
		Reference:    reference,
		PollURL:      fieldValue(resp, "pollurl"),
		Instructions: instructions,
	}, nil
}

// StatusResult is the parsed answer from a Paynow poll URL.
type StatusResult struct {
	Paid         bool   `json:"paid"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	Reference    string `json:"reference"`
	ProviderTxID string `json:"provider_tx_id"`
	PollURL      string `json:"-"`
}

// CheckStatus polls a transaction. A timeout or unverifiable response is
// an error; the caller must treat it as still pending, never as paid.
func (c *PaynowClient) CheckStatus(ctx context.Context, pollURL string) (*StatusResult, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pollURL, nil)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paynow poll failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("paynow poll failed: status=%d body=%s", httpResp.StatusCode, string(body))
	}

	fields, err := parseOrderedForm(body)
	if err != nil {
		return nil, err
	}
	if !verifyPaynowHash(fields, c.IntegrationKey) {
		return nil, ErrInvalidSignature
	}

	status := fieldValue(fields, "status")
	return &StatusResult{
		Paid:         ClassifyPaynowStatus(status) == OutcomeSuccess,
		Status:       status,
		Amount:       fieldValue(fields, "amount"),
		Reference:    fieldValue(fields, "reference"),
		ProviderTxID: fieldValue(fields, "paynowreference"),
		PollURL:      pollURL,
	}, nil
}

// EventFromStatus turns a verified poll result into a PaymentEvent so
// the card flow feeds the same reconciliation path as webhooks.
func (c *PaynowClient) EventFromStatus(st *StatusResult) (*PaymentEvent, error) {
	if st.Reference == "" || st.ProviderTxID == "" {
		return nil, fmt.Errorf("%w: poll response missing reference ids", ErrInvalidPayload)
	}
	_, currency, err := ParseReference(st.Reference)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(st.Amount, currency)
	if err != nil {
		return nil, err
	}
	outcome := ClassifyPaynowStatus(st.Status)
	return &PaymentEvent{
		Provider:     ProviderPaynow,
		Reference:    st.Reference,
		ProviderTxID: st.ProviderTxID,
		Amount:       amount,
		Outcome:      outcome,
		Metadata:     map[string]string{"pollurl": st.PollURL, "status": st.Status},
	}, nil
}

func (c *PaynowClient) postForm(ctx context.Context, endpoint string, fields []formField) ([]formField, error) {
	fields = append(fields, formField{"hash", paynowHash(fields, c.IntegrationKey)})

	var body strings.Builder
	for i, f := range fields {
		if i > 0 {
			body.WriteString("&")
		}
		body.WriteString(url.QueryEscape(f.key))
		body.WriteString("=")
		body.WriteString(url.QueryEscape(f.value))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.String()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paynow request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paynow request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	respFields, err := parseOrderedForm(respBody)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(fieldValue(respFields, "status"), "ok") {
		return nil, fmt.Errorf("paynow rejected transaction: %s", fieldValue(respFields, "error"))
	}
	return respFields, nil
}
