// Package wipay 提供 WiPay 托管支付页的请求签名与回调校验
package wipay

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultAPIURL 牙买加托管支付页
const DefaultAPIURL = "https://jm.wipayfinancial.com/plugins/payments/request"

// 回调状态
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// Config WiPay 配置
type Config struct {
	APIURL        string
	AccountNumber string
	APIKey        string
	CountryCode   string
	Currency      string
	Environment   string // sandbox 或 live
}

// Client WiPay 客户端
type Client struct {
	config Config
}

// NewClient 创建 WiPay 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccountNumber == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("wipay: account number and api key are required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = "JM"
	}
	if cfg.Currency == "" {
		cfg.Currency = "JMD"
	}
	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}
	return &Client{config: cfg}, nil
}

// PaymentRequest 托管支付请求
type PaymentRequest struct {
	OrderID   string
	Amount    float64
	FirstName string
	LastName  string
	Email     string
	Phone     string
	ReturnURL string
	CancelURL string
}

// HostedPayment 前端需要 POST 到 PaymentURL 的表单
type HostedPayment struct {
	PaymentURL string            `json:"payment_url"`
	Params     map[string]string `json:"payment_params"`
	OrderID    string            `json:"order_id"`
}

// FormatTotal 两位小数金额
func FormatTotal(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// BuildPayment 生成带签名的托管支付表单
func (c *Client) BuildPayment(req *PaymentRequest) *HostedPayment {
	total := FormatTotal(req.Amount)
	params := map[string]string{
		"account_number": c.config.AccountNumber,
		"order_id":       req.OrderID,
		"amount":         total,
		"total":          total,
		"currency":       c.config.Currency,
		"country_code":   c.config.CountryCode,
		"environment":    c.config.Environment,
		"first_name":     req.FirstName,
		"last_name":      req.LastName,
		"email":          req.Email,
		"phone":          req.Phone,
		"return_url":     req.ReturnURL,
		"cancel_url":     req.CancelURL,
	}
	params["hash"] = RequestHash(params, c.config.APIKey)

	return &HostedPayment{
		PaymentURL: c.config.APIURL,
		Params:     params,
		OrderID:    req.OrderID,
	}
}

// RequestHash sha256(按键排序的 k=v 以 & 连接 + apiKey)，hash 字段本身不参与
func RequestHash(params map[string]string, apiKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha256.Sum256([]byte(strings.Join(pairs, "&") + apiKey))
	return hex.EncodeToString(sum[:])
}

// CallbackHash md5(transaction_id + total + apiKey)，无分隔符
func CallbackHash(transactionID, total, apiKey string) string {
	sum := md5.Sum([]byte(transactionID + total + apiKey))
	return hex.EncodeToString(sum[:])
}

// Callback 回调参数
type Callback struct {
	OrderID       string
	Status        string
	TransactionID string
	Total         string
	Hash          string
	Message       string
}

// ParseCallback 从查询串或表单解析回调
func ParseCallback(values url.Values) *Callback {
	return &Callback{
		OrderID:       values.Get("order_id"),
		Status:        strings.ToLower(values.Get("status")),
		TransactionID: values.Get("transaction_id"),
		Total:         values.Get("total"),
		Hash:          values.Get("hash"),
		Message:       values.Get("message"),
	}
}

// Succeeded 网关是否报告成功
func (cb *Callback) Succeeded() bool {
	return cb.Status == StatusSuccess
}

// VerifyHash 校验回调签名，大小写不敏感
func (c *Client) VerifyHash(cb *Callback) bool {
	if cb.Hash == "" {
		return false
	}
	expected := CallbackHash(cb.TransactionID, cb.Total, c.config.APIKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(cb.Hash))) == 1
}

// TotalAmount 回调金额，无法解析时为 0
func (cb *Callback) TotalAmount() float64 {
	v, err := strconv.ParseFloat(cb.Total, 64)
	if err != nil {
		return 0
	}
	return v
}
