package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/order-service/internal/domain"
	"github.com/utafrali/order-service/pkg/httpclient"
)

// HTTPMemberClient calls GET {base}/members/{id}.
type HTTPMemberClient struct {
	http    *httpclient.Client
	baseURL string
}

// NewHTTPMemberClient creates a member client against baseURL.
func NewHTTPMemberClient(http *httpclient.Client, baseURL string) *HTTPMemberClient {
	return &HTTPMemberClient{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetMember fetches a member. Downstream 4xx and 5xx responses are returned as
// classified errors.
func (c *HTTPMemberClient) GetMember(ctx context.Context, id int64) (domain.Member, error) {
	var m domain.Member
	endpoint := c.baseURL + "/members/" + strconv.FormatInt(id, 10)
	if err := c.http.GetJSON(ctx, endpoint, &m); err != nil {
		return domain.Member{}, fmt.Errorf("get member %d: %w", id, err)
	}
	return m, nil
}

// HTTPProductClient calls GET {base}/products/{id}/stock?quantity={n}.
type HTTPProductClient struct {
	http    *httpclient.Client
	baseURL string
}

// NewHTTPProductClient creates a product client against baseURL.
func NewHTTPProductClient(http *httpclient.Client, baseURL string) *HTTPProductClient {
	return &HTTPProductClient{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

// CheckStock asks the product service whether quantity units can be supplied.
func (c *HTTPProductClient) CheckStock(ctx context.Context, productID int64, quantity int) (domain.Stock, error) {
	q := url.Values{}
	q.Set("quantity", strconv.Itoa(quantity))
	endpoint := c.baseURL + "/products/" + strconv.FormatInt(productID, 10) + "/stock?" + q.Encode()

	var s domain.Stock
	if err := c.http.GetJSON(ctx, endpoint, &s); err != nil {
		return domain.Stock{}, fmt.Errorf("check stock for product %d: %w", productID, err)
	}
	return s, nil
}

// HTTPPaymentClient calls POST {base}/payments.
type HTTPPaymentClient struct {
	http    *httpclient.Client
	baseURL string
}

// NewHTTPPaymentClient creates a payment client against baseURL.
func NewHTTPPaymentClient(http *httpclient.Client, baseURL string) *HTTPPaymentClient {
	return &HTTPPaymentClient{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

type paymentRequest struct {
	OrderID string          `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
}

// ProcessPayment charges amount against orderID. A declined charge is a
// successful call with Success false.
func (c *HTTPPaymentClient) ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Payment, error) {
	var p domain.Payment
	req := paymentRequest{OrderID: orderID, Amount: amount}
	if err := c.http.PostJSON(ctx, c.baseURL+"/payments", req, &p); err != nil {
		return domain.Payment{}, fmt.Errorf("process payment for order %s: %w", orderID, err)
	}
	return p, nil
}
