package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ontrack-driver/internal/apperr"
	"ontrack-driver/internal/domain"
)

// notDispatchedPrefix is the literal message prefix the order service uses
// when a transition is refused because the order was never dispatched.
const notDispatchedPrefix = "Order has not been dispatched"

// StartParams carries the optional start-call modifiers.
type StartParams struct {
	// Assign accepts an adhoc ping order by assigning it to the driver.
	Assign string `json:"assign,omitempty"`
	// SkipDispatch starts the order despite it never being dispatched.
	SkipDispatch bool `json:"skipDispatch,omitempty"`
}

// APIError is a non-2xx response from the order service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order service: %d: %s", e.StatusCode, e.Message)
}

// Client is the REST gateway to the order service. All calls authenticate
// with the driver's bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a Client for the given API base URL and driver token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch reloads the full order.
func (c *Client) Fetch(ctx context.Context, orderID string) (*domain.Order, error) {
	return c.orderCall(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), nil)
}

// AcceptReject answers an incoming order offer. The order service models
// both answers as a start call carrying an is_approved flag.
func (c *Client) AcceptReject(ctx context.Context, orderID string, approved bool, token string) error {
	flag := "0"
	if approved {
		flag = "1"
	}
	body := map[string]string{"is_approved": flag}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/start", body, token)
	return err
}

// Start begins the order, optionally assigning it (ping accept) or
// overriding a missing dispatch.
func (c *Client) Start(ctx context.Context, orderID string, params StartParams) (*domain.Order, error) {
	return c.orderCall(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/start", params)
}

// NextActivity fetches the candidate next activities, scoped to a waypoint
// when one is active.
func (c *Client) NextActivity(ctx context.Context, orderID, waypointID string) ([]domain.Activity, error) {
	path := "/api/v1/orders/" + url.PathEscape(orderID) + "/next-activity"
	if waypointID != "" {
		path += "?waypoint=" + url.QueryEscape(waypointID)
	}
	raw, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	acts, err := decodeActivities(raw)
	if err != nil {
		return nil, fmt.Errorf("orders gateway: decode next activity: %w", err)
	}
	return acts, nil
}

// UpdateActivity applies a chosen activity to the order.
func (c *Client) UpdateActivity(ctx context.Context, orderID string, activity domain.Activity) (*domain.Order, error) {
	body := map[string]any{"activity": activityDTO{
		Code:       activity.Code,
		Status:     activity.Status,
		Details:    activity.Details,
		RequirePOD: activity.RequirePOD,
	}}
	return c.orderCall(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/update-activity", body)
}

// UpdateActivitySkipDispatch advances the order past a missing dispatch
// after the driver confirmed the override.
func (c *Client) UpdateActivitySkipDispatch(ctx context.Context, orderID string) (*domain.Order, error) {
	body := map[string]any{"skipDispatch": true}
	return c.orderCall(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/update-activity", body)
}

// Complete marks the order completed.
func (c *Client) Complete(ctx context.Context, orderID string) (*domain.Order, error) {
	return c.orderCall(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/complete", nil)
}

// SetDestination activates the given place as the order's destination.
func (c *Client) SetDestination(ctx context.Context, orderID, placeID string) (*domain.Order, error) {
	path := "/api/v1/orders/" + url.PathEscape(orderID) + "/set-destination/" + url.PathEscape(placeID)
	return c.orderCall(ctx, http.MethodPost, path, nil)
}

// DriverUpdateActivity records an auxiliary driver status (shift end,
// break, incident) with the literal label the service expects.
func (c *Client) DriverUpdateActivity(ctx context.Context, token, orderID, status string) error {
	body := map[string]string{"status": status}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/update-activity", body, token)
	return err
}

func (c *Client) orderCall(ctx context.Context, method, path string, body any) (*domain.Order, error) {
	raw, err := c.do(ctx, method, path, body, "")
	if err != nil {
		return nil, err
	}
	var dto orderDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("orders gateway: decode order: %w", err)
	}
	return toDomainOrder(dto), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("orders gateway: encode body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("orders gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("orders gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("orders gateway: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp.StatusCode, payload)
	}
	return payload, nil
}

// apiError extracts the service's error message and maps the known
// not-dispatched refusal onto its sentinel so callers can branch on it
// with errors.Is.
func apiError(status int, body []byte) error {
	msg := string(bytes.TrimSpace(body))
	var envelope struct {
		Message string   `json:"message"`
		Error   string   `json:"error"`
		Errors  []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			msg = envelope.Message
		case envelope.Error != "":
			msg = envelope.Error
		case len(envelope.Errors) > 0:
			msg = envelope.Errors[0]
		}
	}
	if strings.HasPrefix(msg, notDispatchedPrefix) {
		return fmt.Errorf("%w: %s", apperr.NotDispatched, msg)
	}
	return &APIError{StatusCode: status, Message: msg}
}
