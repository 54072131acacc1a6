// Package gateway talks to the eSewa ePay v2 API: it builds signed payment
// initiation forms, decodes the base64 callbacks eSewa appends to the
// success/failure redirects and performs the out-of-band status check.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/iliyamo/futsal-booking/internal/model"
	"github.com/iliyamo/futsal-booking/internal/signature"
)

// Transaction statuses reported by eSewa.
const (
	StatusComplete      = "COMPLETE"
	StatusPending       = "PENDING"
	StatusFullRefund    = "FULL_REFUND"
	StatusPartialRefund = "PARTIAL_REFUND"
	StatusAmbiguous     = "AMBIGUOUS"
	StatusNotFound      = "NOT_FOUND"
	StatusCanceled      = "CANCELED"
)

// ErrUnavailable wraps every status-check failure that says nothing about
// the transaction itself: transport errors, timeouts, non-2xx replies and
// unparseable bodies.
var ErrUnavailable = errors.New("esewa: status check unavailable")

// Config holds the eSewa merchant settings.
type Config struct {
	SecretKey      string        `envconfig:"SECRET_KEY" required:"true"`
	ProductCode    string        `envconfig:"PRODUCT_CODE" default:"EPAYTEST"`
	FormURL        string        `envconfig:"FORM_URL" default:"https://rc-epay.esewa.com.np/api/epay/main/v2/form"`
	StatusCheckURL string        `envconfig:"STATUS_CHECK_URL" default:"https://rc.esewa.com.np/api/epay/transaction/status/"`
	SuccessURL     string        `envconfig:"SUCCESS_URL" default:"http://localhost:5173/success"`
	FailureURL     string        `envconfig:"FAILURE_URL" default:"http://localhost:8080/v1/payments/esewa/failure"`
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

// Form is the set of fields POSTed to the eSewa form URL.
type Form struct {
	Amount                string `json:"amount"`
	TaxAmount             string `json:"tax_amount"`
	TotalAmount           string `json:"total_amount"`
	TransactionUUID       string `json:"transaction_uuid"`
	ProductCode           string `json:"product_code"`
	ProductServiceCharge  string `json:"product_service_charge"`
	ProductDeliveryCharge string `json:"product_delivery_charge"`
	SuccessURL            string `json:"success_url"`
	FailureURL            string `json:"failure_url"`
	SignedFieldNames      string `json:"signed_field_names"`
	Signature             string `json:"signature"`
}

// StatusResult is the gateway's authoritative view of a transaction.
type StatusResult struct {
	Status string
	RefID  string
}

// Client is an eSewa API client. The zero value is not usable; call New.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a client whose HTTP calls are bounded by cfg.Timeout.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// ProductCode returns the merchant product code.
func (c *Client) ProductCode() string { return c.cfg.ProductCode }

// SecretKey returns the shared HMAC secret.
func (c *Client) SecretKey() string { return c.cfg.SecretKey }

// FormURL returns the URL the initiation form is posted to.
func (c *Client) FormURL() string { return c.cfg.FormURL }

// InitiationForm builds the signed form for p. The signature is always
// derived here from the stored payment, never taken from a client.
func (c *Client) InitiationForm(p *model.Payment) Form {
	total := p.TotalAmount.String()
	sig := signature.Sign([]signature.Field{
		{Name: "total_amount", Value: total},
		{Name: "transaction_uuid", Value: p.TransactionUUID},
		{Name: "product_code", Value: c.cfg.ProductCode},
	}, c.cfg.SecretKey)
	return Form{
		Amount:                p.Amount.String(),
		TaxAmount:             p.TaxAmount.String(),
		TotalAmount:           total,
		TransactionUUID:       p.TransactionUUID,
		ProductCode:           c.cfg.ProductCode,
		ProductServiceCharge:  p.ServiceCharge.String(),
		ProductDeliveryCharge: p.DeliveryCharge.String(),
		SuccessURL:            c.cfg.SuccessURL,
		FailureURL:            c.cfg.FailureURL,
		SignedFieldNames:      signature.InitiationFields,
		Signature:             sig,
	}
}

// CheckStatus asks eSewa for the state of a transaction. Any failure to get
// a well-formed answer is reported as ErrUnavailable.
func (c *Client) CheckStatus(ctx context.Context, productCode string, total model.Money, transactionUUID string) (StatusResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u, err := url.Parse(c.cfg.StatusCheckURL)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: bad status url: %v", ErrUnavailable, err)
	}
	q := u.Query()
	q.Set("product_code", productCode)
	q.Set("total_amount", total.String())
	q.Set("transaction_uuid", transactionUUID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return StatusResult{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode/100 != 2 {
		return StatusResult{}, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return StatusResult{}, fmt.Errorf("%w: invalid json", ErrUnavailable)
	}
	res := gjson.ParseBytes(body)
	st := res.Get("status")
	if !st.Exists() {
		return StatusResult{}, fmt.Errorf("%w: no status in reply", ErrUnavailable)
	}
	return StatusResult{Status: st.String(), RefID: res.Get("ref_id").String()}, nil
}
