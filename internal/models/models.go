package models

import (
	"github.com/shopspring/decimal"
)

// Term is a taxonomy reference (category, tag, brand) attached to a product.
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProductImage is an image reference from the commerce platform.
type ProductImage struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Price is a decimal that decodes the platform's empty price strings as zero.
type Price struct {
	decimal.Decimal
}

// NewPrice wraps a decimal as a Price
func NewPrice(d decimal.Decimal) Price {
	return Price{Decimal: d}
}

func (p *Price) UnmarshalJSON(data []byte) error {
	if s := string(data); s == `""` || s == "null" {
		p.Decimal = decimal.Zero
		return nil
	}
	return p.Decimal.UnmarshalJSON(data)
}

// Product represents a catalog product as exposed by the commerce platform
type Product struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Slug         string         `json:"slug"`
	Permalink    string         `json:"permalink,omitempty"`
	Status       string         `json:"status,omitempty"`
	Description  string         `json:"description,omitempty"`
	Price        Price          `json:"price"`
	RegularPrice Price          `json:"regular_price"`
	SalePrice    Price          `json:"sale_price"`
	StockStatus  string         `json:"stock_status,omitempty"`
	TotalSales   int64          `json:"total_sales"`
	Images       []ProductImage `json:"images"`
	Categories   []Term         `json:"categories"`
	Tags         []Term         `json:"tags"`
	Brands       []Term         `json:"brands"`
	RelatedIDs   []int64        `json:"related_ids"`
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Products   []Product `json:"products"`
	Page       int       `json:"page"`
	PerPage    int       `json:"per_page"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
}

// CustomerInfo holds the billing contact entered at checkout. The binding tags
// are shared by gin request binding and the checkout validator.
type CustomerInfo struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone"`
	Address1  string `json:"address_1" binding:"required"`
	Address2  string `json:"address_2"`
	City      string `json:"city" binding:"required"`
	State     string `json:"state"`
	Postcode  string `json:"postcode" binding:"required"`
	Country   string `json:"country" binding:"required,len=2"`
}

// FullName returns the customer's display name
func (c CustomerInfo) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// MetaData is a key/value pair stored on orders and line items
type MetaData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// LineItem is an order line as stored by the commerce platform
type LineItem struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	MetaData  []MetaData      `json:"meta_data,omitempty"`
}

// Order represents an order owned by the commerce platform
type Order struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	DatePaid      *string         `json:"date_paid"`
	Billing       CustomerInfo    `json:"billing"`
	LineItems     []LineItem      `json:"line_items"`
	MetaData      []MetaData      `json:"meta_data"`
}

// Meta returns the string value of an order meta key
func (o *Order) Meta(key string) string {
	for _, m := range o.MetaData {
		if m.Key == key {
			if s, ok := m.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// IsPaid reports whether the commerce platform considers the order paid
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusProcessing || o.Status == OrderStatusCompleted
}

// OrderInput is the payload sent to the commerce platform to create an order
type OrderInput struct {
	Status             string          `json:"status"`
	Currency           string          `json:"currency,omitempty"`
	PaymentMethod      string          `json:"payment_method"`
	PaymentMethodTitle string          `json:"payment_method_title"`
	SetPaid            bool            `json:"set_paid"`
	Billing            CustomerInfo    `json:"billing"`
	LineItems          []LineItemInput `json:"line_items"`
	MetaData           []MetaData      `json:"meta_data,omitempty"`
}

// LineItemInput is a line sent on order creation; prices are left to the
// platform.
type LineItemInput struct {
	ProductID int64      `json:"product_id"`
	Quantity  int        `json:"quantity"`
	MetaData  []MetaData `json:"meta_data,omitempty"`
}

// OrderUpdate is the payload sent to the commerce platform to update an order
type OrderUpdate struct {
	Status        string     `json:"status,omitempty"`
	SetPaid       bool       `json:"set_paid,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	MetaData      []MetaData `json:"meta_data,omitempty"`
}

// PaymentIntent is the processor's payment attempt record
type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret,omitempty"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// PaymentStatus is the simplified status exposed to clients
type PaymentStatus string

// Order statuses used by the commerce platform
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusOnHold     = "on-hold"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
	OrderStatusFailed     = "failed"
)

// Processor payment intent statuses
const (
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusRequiresAction        = "requires_action"
	IntentStatusRequiresCapture       = "requires_capture"
	IntentStatusProcessing            = "processing"
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
)

// Simplified payment statuses
const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusOpen    PaymentStatus = "open"
	PaymentStatusExpired PaymentStatus = "expired"
)

// Meta keys written to orders and intents
const (
	MetaPaymentIntentID = "_payment_intent_id"
	MetaSize            = "size"
	MetaColor           = "color"
	MetaOrderID         = "order_id"
	MetaCustomerEmail   = "customer_email"
)

// PaymentMethodStripe is the payment method recorded on created orders
const PaymentMethodStripe = "stripe"
