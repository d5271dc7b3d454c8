// Package paypal 提供 PayPal Orders v2 API 封装
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// 环境地址
const (
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"
)

// Config PayPal 配置
type Config struct {
	ClientID     string
	ClientSecret string
	Environment  string // sandbox 或 live
	BaseURL      string // 非空时覆盖 Environment
	Currency     string
	BrandName    string
	Timeout      time.Duration
}

// Client PayPal 客户端，访问令牌由 clientcredentials 自动获取与刷新
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建 PayPal 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("paypal: client id and secret are required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SandboxBaseURL
		if cfg.Environment == "live" {
			baseURL = LiveBaseURL
		}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// 令牌请求同样受超时约束
	base := &http.Client{Timeout: cfg.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := cc.Client(ctx)
	httpClient.Timeout = cfg.Timeout

	return &Client{config: cfg, baseURL: baseURL, httpClient: httpClient}, nil
}

// Currency 结算币种
func (c *Client) Currency() string {
	return c.config.Currency
}

// Money 金额
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// Float 金额数值
func (m *Money) Float() float64 {
	if m == nil {
		return 0
	}
	v, _ := strconv.ParseFloat(m.Value, 64)
	return v
}

// FormatAmount 格式化为两位小数
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// Link HATEOAS 链接
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// Capture 扣款记录
type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *Money `json:"amount,omitempty"`
}

// PurchaseUnit 购买单元
type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      *Money `json:"amount,omitempty"`
	Payments    *struct {
		Captures []Capture `json:"captures"`
	} `json:"payments,omitempty"`
}

// Order 订单
type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Links         []Link         `json:"links"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// 订单状态
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusApproved  = "APPROVED"
	OrderStatusCompleted = "COMPLETED"
)

// ApprovalURL 买家确认页地址
func (o *Order) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// FirstCapture 第一笔扣款，没有时返回 nil
func (o *Order) FirstCapture() *Capture {
	for _, pu := range o.PurchaseUnits {
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			return &pu.Payments.Captures[0]
		}
	}
	return nil
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	ReferenceID string
	Description string
	Amount      float64
	ReturnURL   string
	CancelURL   string
	GivenName   string
	Surname     string
	Email       string
}

// CreateOrder 创建 CAPTURE 意图的订单
func (c *Client) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": req.ReferenceID,
			"description":  req.Description,
			"amount": Money{
				CurrencyCode: c.config.Currency,
				Value:        FormatAmount(req.Amount),
			},
		}},
		"application_context": map[string]string{
			"brand_name":   c.config.BrandName,
			"landing_page": "BILLING",
			"user_action":  "PAY_NOW",
			"return_url":   req.ReturnURL,
			"cancel_url":   req.CancelURL,
		},
	}
	if req.Email != "" {
		body["payer"] = map[string]interface{}{
			"name": map[string]string{
				"given_name": req.GivenName,
				"surname":    req.Surname,
			},
			"email_address": req.Email,
		}
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder 扣款已批准的订单
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", orderID)
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder 查询订单
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// APIError PayPal 返回的错误
type APIError struct {
	StatusCode int
	Name       string `json:"name"`
	Message    string `json:"message"`
	DebugID    string `json:"debug_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: %d %s: %s (debug_id=%s)", e.StatusCode, e.Name, e.Message, e.DebugID)
}

// IsClientError 4xx 错误（订单未批准、已扣款等），重试无意义
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("paypal: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paypal: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("paypal: decode response: %w", err)
	}
	return nil
}
