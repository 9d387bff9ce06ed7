// Package paymentprovider реализует HTTP-клиент внешнего платёжного провайдера,
// который проверяет и привязывает платёжный метод к покупке тарифного плана.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Ошибки клиента. ErrUnavailable сохраняется отдельным видом для алертинга
// и политики повторов, хотя для переходов состояния подписки обе ошибки
// означают одно и то же: провайдер не подтвердил платёжный метод.
var (
	// ErrRejected — провайдер явно отклонил платёжный метод.
	ErrRejected = errors.New("payment method rejected by provider")
	// ErrUnavailable — провайдер недоступен либо не ответил за отведённый срок.
	ErrUnavailable = errors.New("payment provider unavailable")
)

// Client — клиент платёжного провайдера с фиксированным дедлайном запроса.
type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент провайдера.
// timeout — жёсткий дедлайн исходящего вызова: по его истечении
// вызов считается неудавшимся (ErrUnavailable).
func NewClient(apiURL, shopID, secretKey string, timeout time.Duration) *Client {
	return &Client{
		shopID:     shopID,
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Authorize проверяет платёжный метод применительно к тарифному плану.
//
// Возвращает Authorization при подтверждении, ErrRejected при явном отказе
// провайдера (4xx) и ErrUnavailable при сетевой ошибке, таймауте или 5xx.
func (c *Client) Authorize(ctx context.Context, paymentMethodID, planID string) (*Authorization, error) {
	const op = "paymentprovider.Authorize"

	req, err := c.newRequest(ctx, http.MethodPost, "/authorizations", authorizeRequest{
		PaymentMethodID: paymentMethodID,
		PlanID:          planID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var auth Authorization
		if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
			return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
		}
		return &auth, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("%s: %s: %w", op, errResp.Code, ErrRejected)
	default:
		return nil, fmt.Errorf("%s: unexpected status %s: %w", op, resp.Status, ErrUnavailable)
	}
}
