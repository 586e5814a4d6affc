// Package payment talks to the payment collaborator: it asks it to refund a
// parcel's paid amount and handles the confirmations it sends back.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"group-shipment-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const defaultTimeout = 30 * time.Second

type refundRequest struct {
	ParcelId       string          `json:"parcel_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// HTTPClient requests refunds from the payment collaborator. Refund
// completion arrives later as a RefundCompleted event.
type HTTPClient struct {
	client    http.Client
	refundURL string
	apiKey    string
}

func NewHTTPClient(cfg models.PaymentConfig) (*HTTPClient, error) {
	if cfg.RefundURL == "" {
		return nil, fmt.Errorf("payment refund url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client, err := createHttpClient(timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment http client: %w", err)
	}
	return &HTTPClient{client: client, refundURL: cfg.RefundURL, apiKey: cfg.APIKey}, nil
}

func createHttpClient(timeout time.Duration) (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// RequestRefund asks for amount to be returned to the payer of parcelId.
// The parcel id doubles as idempotency key, so a retried request is safe;
// a 409 from the collaborator means the refund is already under way.
func (c *HTTPClient) RequestRefund(ctx context.Context, parcelId string, amount decimal.Decimal, reason string) error {
	body, err := json.Marshal(refundRequest{
		ParcelId:       parcelId,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: "refund:" + parcelId,
	})
	if err != nil {
		return fmt.Errorf("unable to encode refund request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refundURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("unable to build refund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("refund request for parcel %s failed: %w", parcelId, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		zap.L().Info("Refund already requested", zap.String("parcel_id", parcelId))
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("refund request for parcel %s rejected with status %d: %s", parcelId, resp.StatusCode, bytes.TrimSpace(msg))
	}

	zap.L().Info("Refund requested",
		zap.String("parcel_id", parcelId),
		zap.String("amount", amount.String()))
	return nil
}

// NoopClient logs refund requests without sending them. It is used when no
// payment collaborator is configured.
type NoopClient struct{}

func (NoopClient) RequestRefund(_ context.Context, parcelId string, amount decimal.Decimal, reason string) error {
	zap.L().Warn("No payment collaborator configured, refund not sent",
		zap.String("parcel_id", parcelId),
		zap.String("amount", amount.String()),
		zap.String("reason", reason))
	return nil
}
