package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"backend_crm/config"

	"github.com/shopspring/decimal"
)

// Endpoint-ы платежных провайдеров
const (
	vaultAPIURL  = "https://api.vaultpay.com/v1/payment-links"
	tabbyAPIURL  = "https://api.tabby.ai/api/v2/checkout"
	tamaraAPIURL = "https://api.tamara.co/checkout"
	tamaraOrders = "https://api.tamara.co/orders"
)

// PaymentCustomer данные плательщика для платежной ссылки
type PaymentCustomer struct {
	Name  string
	Email string
	Phone string
}

// PaymentLinkResult результат создания ссылки у провайдера
type PaymentLinkResult struct {
	PaymentURL string
	ExternalID string
	ExpiresAt  *time.Time
	RawData    string
}

// PaymentStatusResult результат проверки статуса у провайдера
type PaymentStatusResult struct {
	Status  string
	RawData string
}

// PaymentClient выполняет HTTP-запросы к платежным провайдерам (Vault Pay,
// Tabby, Tamara). Один запрос на операцию, без повторов: при ошибке сети
// или неуспешном статусе вызов завершается ошибкой.
type PaymentClient struct {
	cfg    config.PaymentProvidersConfig
	client *http.Client
}

// NewPaymentClient создает новый экземпляр PaymentClient
func NewPaymentClient(cfg config.PaymentProvidersConfig) *PaymentClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &PaymentClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// CreateLink создает платежную ссылку у указанного провайдера
func (c *PaymentClient) CreateLink(ctx context.Context, provider string, amount decimal.Decimal, currency, description string, customer PaymentCustomer) (*PaymentLinkResult, error) {
	switch strings.ToLower(provider) {
	case "vault":
		return c.createVaultLink(ctx, amount, currency, description, customer)
	case "tabby":
		return c.createTabbyLink(ctx, amount, currency, description, customer)
	case "tamara":
		return c.createTamaraLink(ctx, amount, currency, description, customer)
	}
	return nil, fmt.Errorf("unsupported payment provider: %s", provider)
}

// VerifyStatus запрашивает текущий статус платежа у провайдера
func (c *PaymentClient) VerifyStatus(ctx context.Context, provider, externalID string) (*PaymentStatusResult, error) {
	var url, token string
	switch strings.ToLower(provider) {
	case "vault":
		url = fmt.Sprintf("%s/%s", vaultAPIURL, externalID)
		token = c.cfg.VaultAPIKey
	case "tabby":
		url = fmt.Sprintf("%s/%s", tabbyAPIURL, externalID)
		token = c.cfg.TabbyAPIKey
	case "tamara":
		url = fmt.Sprintf("%s/%s", tamaraOrders, externalID)
		token = c.cfg.TamaraAPIToken
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", provider)
	}
	if token == "" {
		return nil, fmt.Errorf("API key not configured for provider %s", provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := c.do(req, provider)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа %s: %w", provider, err)
	}

	status := parsed.Status
	if status == "" {
		status = "unknown"
	}
	return &PaymentStatusResult{Status: status, RawData: string(body)}, nil
}

func (c *PaymentClient) createVaultLink(ctx context.Context, amount decimal.Decimal, currency, description string, customer PaymentCustomer) (*PaymentLinkResult, error) {
	if c.cfg.VaultAPIKey == "" {
		return nil, fmt.Errorf("vault API key not configured")
	}

	payload := map[string]interface{}{
		"amount":      amount.InexactFloat64(),
		"currency":    currency,
		"description": description,
		"expires_at":  time.Now().AddDate(0, 0, 30).Format(time.RFC3339),
		"metadata": map[string]interface{}{
			"source":     "training_center_crm",
			"created_at": time.Now().Format(time.RFC3339),
		},
		"customer": map[string]string{
			"name":  customer.Name,
			"email": customer.Email,
			"phone": customer.Phone,
		},
	}
	if c.cfg.CallbackURL != "" {
		payload["callback_url"] = c.cfg.CallbackURL
	}

	body, err := c.post(ctx, vaultAPIURL, c.cfg.VaultAPIKey, payload, "vault")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID        string `json:"id"`
		URL       string `json:"url"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа vault: %w", err)
	}

	result := &PaymentLinkResult{
		PaymentURL: parsed.URL,
		ExternalID: parsed.ID,
		RawData:    string(body),
	}
	if parsed.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, parsed.ExpiresAt); err == nil {
			result.ExpiresAt = &t
		}
	}
	return result, nil
}

func (c *PaymentClient) createTabbyLink(ctx context.Context, amount decimal.Decimal, currency, description string, customer PaymentCustomer) (*PaymentLinkResult, error) {
	if c.cfg.TabbyAPIKey == "" {
		return nil, fmt.Errorf("tabby API key not configured")
	}

	if description == "" {
		description = "Training course payment"
	}
	now := time.Now()
	payload := map[string]interface{}{
		"payment": map[string]interface{}{
			"amount":      amount.StringFixed(2),
			"currency":    currency,
			"description": description,
		},
		"order": map[string]interface{}{
			"tax_amount":      "0.00",
			"shipping_amount": "0.00",
			"discount_amount": "0.00",
			"reference_id":    fmt.Sprintf("training_%s", now.Format("20060102_150405")),
			"items": []map[string]interface{}{{
				"title":       description,
				"description": description,
				"quantity":    1,
				"unit_price":  amount.StringFixed(2),
				"category":    "Education",
			}},
			"shipping_address": map[string]string{
				"city":    "Dubai",
				"country": "AE",
				"line1":   "Training Center",
				"zip":     "00000",
			},
			"buyer": map[string]string{
				"phone": customer.Phone,
				"email": customer.Email,
				"name":  customer.Name,
			},
		},
		"order_history": []interface{}{},
		"meta": map[string]interface{}{
			"order_id": fmt.Sprintf("order_%s", now.Format("20060102_150405")),
			"customer": map[string]interface{}{},
		},
	}
	if c.cfg.CallbackURL != "" {
		payload["merchant_urls"] = map[string]string{
			"success": c.cfg.CallbackURL + "?status=success",
			"cancel":  c.cfg.CallbackURL + "?status=cancel",
			"failure": c.cfg.CallbackURL + "?status=failure",
		}
	}

	body, err := c.post(ctx, tabbyAPIURL, c.cfg.TabbyAPIKey, payload, "tabby")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID        string `json:"id"`
		WebURL    string `json:"web_url"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа tabby: %w", err)
	}

	result := &PaymentLinkResult{
		PaymentURL: parsed.WebURL,
		ExternalID: parsed.ID,
		RawData:    string(body),
	}
	if parsed.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, parsed.ExpiresAt); err == nil {
			result.ExpiresAt = &t
		}
	}
	return result, nil
}

func (c *PaymentClient) createTamaraLink(ctx context.Context, amount decimal.Decimal, currency, description string, customer PaymentCustomer) (*PaymentLinkResult, error) {
	if c.cfg.TamaraAPIToken == "" {
		return nil, fmt.Errorf("tamara API token not configured")
	}

	if description == "" {
		description = "Training course payment"
	}
	firstName, lastName := splitName(customer.Name)
	if firstName == "" {
		firstName = "Customer"
	}
	if lastName == "" {
		lastName = "Name"
	}
	phone := customer.Phone
	if phone == "" {
		phone = "971500000000"
	}
	email := customer.Email
	if email == "" {
		email = "customer@example.com"
	}

	now := time.Now()
	money := map[string]interface{}{
		"amount":   amount.InexactFloat64(),
		"currency": currency,
	}
	address := map[string]string{
		"first_name":   firstName,
		"last_name":    lastName,
		"line1":        "Training Center",
		"city":         "Dubai",
		"country_code": "AE",
	}
	payload := map[string]interface{}{
		"order_reference_id": fmt.Sprintf("training_%s", now.Format("20060102_150405")),
		"order_number":       fmt.Sprintf("ORD-%s", now.Format("20060102150405")),
		"total_amount":       money,
		"description":        description,
		"country_code":       "AE",
		"payment_type":       "PAY_BY_INSTALMENTS",
		"instalments":        3,
		"locale":             "en_US",
		"items": []map[string]interface{}{{
			"name":         description,
			"type":         "Digital",
			"reference_id": fmt.Sprintf("item_%s", now.Format("20060102150405")),
			"sku":          "TRAINING_001",
			"quantity":     1,
			"unit_price":   money,
			"total_amount": money,
		}},
		"consumer": map[string]string{
			"first_name":   firstName,
			"last_name":    lastName,
			"phone_number": phone,
			"email":        email,
		},
		"shipping_address": address,
		"billing_address":  address,
	}
	if c.cfg.CallbackURL != "" {
		payload["merchant_url"] = map[string]string{
			"success": c.cfg.CallbackURL + "?status=success",
			"failure": c.cfg.CallbackURL + "?status=failure",
			"cancel":  c.cfg.CallbackURL + "?status=cancel",
		}
	}

	body, err := c.post(ctx, tamaraAPIURL, c.cfg.TamaraAPIToken, payload, "tamara")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		OrderID     string `json:"order_id"`
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа tamara: %w", err)
	}

	// Tamara не возвращает срок действия ссылки
	return &PaymentLinkResult{
		PaymentURL: parsed.CheckoutURL,
		ExternalID: parsed.OrderID,
		RawData:    string(body),
	}, nil
}

func (c *PaymentClient) post(ctx context.Context, url, token string, payload interface{}, provider string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, provider)
}

func (c *PaymentClient) do(req *http.Request, provider string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("❌ Ошибка соединения с провайдером %s: %v", provider, err)
		return nil, fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа %s: %w", provider, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("❌ Ошибка API %s: %d - %s", provider, resp.StatusCode, string(body))
		return nil, fmt.Errorf("API error: %d", resp.StatusCode)
	}

	return body, nil
}
