// Package wise implements the transfer gateway on top of the Wise payments API.
//
// A reimbursement is issued in two phases. CreateRecipientAccount, CreateQuote
// and CreateTransfer reserve a transfer without moving money; FundTransfer or
// CancelTransfer later settles it one way or the other.
package wise

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

var (
	// ErrAlreadyFunded is returned when the transfer has already been completed
	ErrAlreadyFunded = errors.New("transfer already funded")
	// ErrAlreadyCancelled is returned when the transfer can no longer be cancelled
	ErrAlreadyCancelled = errors.New("transfer already cancelled")
	// ErrRequestFailed is returned for any other gateway failure
	ErrRequestFailed = errors.New("wise request failed")
)

// Config holds configuration for the Wise client
type Config struct {
	Endpoint string
	Token    string
	Currency string
	Timeout  time.Duration
}

// Client talks to the Wise API
type Client struct {
	baseURL    string
	currency   string
	httpClient *http.Client

	profileMu sync.Mutex
	profileID int64
}

// NewClient creates a new Wise client. Requests are authenticated with the
// configured API token as a bearer token.
func NewClient(config Config) *Client {
	baseURL := strings.TrimRight(config.Endpoint, "/")
	if baseURL == "" {
		baseURL = "https://api.transferwise.com"
	}
	currency := config.Currency
	if currency == "" {
		currency = "EUR"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), tokenSource)
	httpClient.Timeout = timeout

	return &Client{
		baseURL:    baseURL,
		currency:   currency,
		httpClient: httpClient,
	}
}

// apiError is a non-2xx response from Wise
type apiError struct {
	StatusCode int
	Body       []byte
}

func (e *apiError) Error() string {
	return fmt.Sprintf("wise returned %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

type profile struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type quoteRequest struct {
	SourceCurrency string      `json:"sourceCurrency"`
	TargetCurrency string      `json:"targetCurrency"`
	TargetAmount   json.Number `json:"targetAmount"`
}

type quoteResponse struct {
	ID string `json:"id"`
}

type recipientDetails struct {
	LegalType string `json:"legalType"`
	IBAN      string `json:"iban"`
}

type recipientRequest struct {
	Currency          string           `json:"currency"`
	Type              string           `json:"type"`
	Profile           int64            `json:"profile"`
	AccountHolderName string           `json:"accountHolderName"`
	Details           recipientDetails `json:"details"`
}

type transferRequest struct {
	TargetAccount         int64  `json:"targetAccount"`
	QuoteUUID             string `json:"quoteUuid"`
	CustomerTransactionID string `json:"customerTransactionId"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

type fundRequest struct {
	Type string `json:"type"`
}

// ProfileID returns the business profile used for quotes and funding. It is
// looked up once and cached on the client.
func (c *Client) ProfileID(ctx context.Context) (int64, error) {
	c.profileMu.Lock()
	defer c.profileMu.Unlock()

	if c.profileID != 0 {
		return c.profileID, nil
	}

	var profiles []profile
	if err := c.do(ctx, http.MethodGet, "/v1/profiles", nil, &profiles); err != nil {
		return 0, fmt.Errorf("%w: fetching profiles: %v", ErrRequestFailed, err)
	}
	for _, p := range profiles {
		if strings.EqualFold(p.Type, "business") {
			c.profileID = p.ID
			return c.profileID, nil
		}
	}
	return 0, fmt.Errorf("%w: no business profile on this account", ErrRequestFailed)
}

// CreateRecipientAccount registers the complainer's IBAN as a transfer target
func (c *Client) CreateRecipientAccount(ctx context.Context, fullName, iban string) (int64, error) {
	profileID, err := c.ProfileID(ctx)
	if err != nil {
		return 0, err
	}

	req := recipientRequest{
		Currency:          c.currency,
		Type:              "iban",
		Profile:           profileID,
		AccountHolderName: fullName,
		Details: recipientDetails{
			LegalType: "PRIVATE",
			IBAN:      iban,
		},
	}

	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", req, &resp); err != nil {
		return 0, fmt.Errorf("%w: creating recipient account: %v", ErrRequestFailed, err)
	}
	return resp.ID, nil
}

// CreateQuote locks the price for paying out amount
func (c *Client) CreateQuote(ctx context.Context, amount decimal.Decimal) (uuid.UUID, error) {
	profileID, err := c.ProfileID(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	req := quoteRequest{
		SourceCurrency: c.currency,
		TargetCurrency: c.currency,
		TargetAmount:   json.Number(amount.String()),
	}

	var resp quoteResponse
	path := fmt.Sprintf("/v3/profiles/%d/quotes", profileID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return uuid.Nil, fmt.Errorf("%w: creating quote: %v", ErrRequestFailed, err)
	}

	quoteID, err := uuid.Parse(resp.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: quote id %q is not a uuid", ErrRequestFailed, resp.ID)
	}
	return quoteID, nil
}

// CreateTransfer reserves a transfer from a quote to a recipient. No money
// moves until the transfer is funded.
func (c *Client) CreateTransfer(ctx context.Context, targetAccountID int64, quoteID uuid.UUID) (int64, error) {
	req := transferRequest{
		TargetAccount:         targetAccountID,
		QuoteUUID:             quoteID.String(),
		CustomerTransactionID: uuid.New().String(),
	}

	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", req, &resp); err != nil {
		return 0, fmt.Errorf("%w: creating transfer: %v", ErrRequestFailed, err)
	}
	return resp.ID, nil
}

// FundTransfer pays a reserved transfer from the account balance
func (c *Client) FundTransfer(ctx context.Context, transferID int64) error {
	profileID, err := c.ProfileID(ctx)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/v3/profiles/%d/transfers/%d/payments", profileID, transferID)
	err = c.do(ctx, http.MethodPost, path, fundRequest{Type: "BALANCE"}, nil)
	if err == nil {
		return nil
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) && reportsStatus(apiErr.Body, "COMPLETED") {
		return fmt.Errorf("%w: transfer %d", ErrAlreadyFunded, transferID)
	}
	return fmt.Errorf("%w: funding transfer %d: %v", ErrRequestFailed, transferID, err)
}

// CancelTransfer cancels a reserved transfer. Wise refuses to cancel a
// transfer that is no longer cancellable, which is reported as ErrAlreadyCancelled.
// Any other failure, including 5xx, auth and throttling responses, is ErrRequestFailed.
func (c *Client) CancelTransfer(ctx context.Context, transferID int64) error {
	path := fmt.Sprintf("/v1/transfers/%d/cancel", transferID)
	err := c.do(ctx, http.MethodPut, path, nil, nil)
	if err == nil {
		return nil
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) && refusesCancel(apiErr) {
		return fmt.Errorf("%w: transfer %d", ErrAlreadyCancelled, transferID)
	}
	return fmt.Errorf("%w: cancelling transfer %d: %v", ErrRequestFailed, transferID, err)
}

// refusesCancel reports whether a cancel failure means the transfer is past
// the point of cancelling, as opposed to Wise being unreachable or refusing us.
func refusesCancel(e *apiError) bool {
	switch e.StatusCode {
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return reportsStatus(e.Body, "CANCELLED")
	}
	return false
}

// reportsStatus checks an error body for a status marker. Wise answers either
// with a bare JSON string or with an object carrying a status.
func reportsStatus(body []byte, status string) bool {
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return false
	}

	switch v := decoded.(type) {
	case string:
		return strings.EqualFold(v, status)
	case map[string]interface{}:
		for _, key := range []string{"status", "code", "errorCode"} {
			if s, ok := v[key].(string); ok && strings.EqualFold(s, status) {
				return true
			}
		}
	}
	return false
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		reqBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		body = bytes.NewReader(reqBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{StatusCode: resp.StatusCode, Body: respBody}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}
