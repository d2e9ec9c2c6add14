package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ApiClient handles requests to the comanda API.
type ApiClient struct {
	httpClient *http.Client
	BaseURL    string
}

// NewApiClient creates an API client. The server address comes from
// COMANDA_API_URL, defaulting to the local development port.
func NewApiClient() *ApiClient {
	baseURL := os.Getenv("COMANDA_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &ApiClient{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		BaseURL: baseURL,
	}
}

// Ping checks if the API server is reachable.
func (c *ApiClient) Ping() bool {
	resp, err := c.httpClient.Get(c.BaseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Order mirrors the API's order payload.
type Order struct {
	ID          string     `json:"id"`
	Table       string     `json:"table"`
	Customer    string     `json:"customer"`
	Item        string     `json:"item"`
	MenuItemID  uint       `json:"menu_item_id"`
	Quantity    int        `json:"quantity"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// KitchenOrder mirrors the API's kitchen queue payload.
type KitchenOrder struct {
	ID          uint       `json:"id"`
	OrderID     string     `json:"order_id,omitempty"`
	Table       int        `json:"table"`
	Customer    string     `json:"customer"`
	Description string     `json:"description"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
}

// StockEntry mirrors the API's stock ledger payload.
type StockEntry struct {
	ID         uint    `json:"id"`
	Available  float64 `json:"available"`
	Ingredient struct {
		Name     string  `json:"name"`
		Unit     string  `json:"unit"`
		MinStock float64 `json:"min_stock"`
	} `json:"ingredient"`
}

// CreateOrderRequest is the payload for placing an order.
type CreateOrderRequest struct {
	MenuItemID uint   `json:"menu_item_id"`
	Table      string `json:"table"`
	Customer   string `json:"customer,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
}

// apiError is the error body the server returns on business-rule
// violations.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (c *ApiClient) get(path string, out interface{}) error {
	resp, err := c.httpClient.Get(c.BaseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *ApiClient) post(path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		apiErr := &apiError{}
		if json.Unmarshal(raw, apiErr) == nil && apiErr.Message != "" {
			return apiErr
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// GetOrders retrieves orders, optionally filtered by state.
func (c *ApiClient) GetOrders(state string) ([]Order, error) {
	path := "/api/v1/orders"
	if state != "" {
		path += "?state=" + state
	}
	var orders []Order
	if err := c.get(path, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder retrieves one order by id.
func (c *ApiClient) GetOrder(id string) (*Order, error) {
	var order Order
	if err := c.get("/api/v1/orders/"+id, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// orderEnvelope wraps responses that may carry a sync warning.
type orderEnvelope struct {
	Order   Order  `json:"order"`
	Warning string `json:"warning,omitempty"`
}

// PlaceOrder creates an order and reserves its stock in one step.
func (c *ApiClient) PlaceOrder(req CreateOrderRequest) (*Order, string, error) {
	var env orderEnvelope
	if err := c.post("/api/v1/orders/integrated", req, &env); err != nil {
		return nil, "", err
	}
	return &env.Order, env.Warning, nil
}

// AdvanceOrder applies a lifecycle step to an order. Step is one of
// confirm, ready, deliver, close or cancel.
func (c *ApiClient) AdvanceOrder(id, step string) (string, error) {
	switch step {
	case "confirm", "cancel":
		var env orderEnvelope
		if err := c.post("/api/v1/orders/"+id+"/"+step, nil, &env); err != nil {
			return "", err
		}
		return env.Warning, nil
	default:
		return "", c.post("/api/v1/orders/"+id+"/"+step, nil, nil)
	}
}

// GetKitchenQueue retrieves the active kitchen tickets, oldest first.
func (c *ApiClient) GetKitchenQueue() ([]KitchenOrder, error) {
	var queue []KitchenOrder
	if err := c.get("/api/v1/kitchen/orders", &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// AdvanceTicket applies a kitchen-side step to a ticket. Step is one of
// urgent, start, ready, deliver or cancel.
func (c *ApiClient) AdvanceTicket(id uint, step string) (string, error) {
	var env struct {
		Warning string `json:"warning,omitempty"`
	}
	if err := c.post(fmt.Sprintf("/api/v1/kitchen/orders/%d/%s", id, step), nil, &env); err != nil {
		return "", err
	}
	return env.Warning, nil
}

// GetStock retrieves the full stock ledger.
func (c *ApiClient) GetStock() ([]StockEntry, error) {
	var entries []StockEntry
	if err := c.get("/api/v1/stock", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetLowStock retrieves entries at or below their minimum.
func (c *ApiClient) GetLowStock() ([]StockEntry, error) {
	var entries []StockEntry
	if err := c.get("/api/v1/stock/low", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
