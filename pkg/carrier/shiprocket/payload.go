package shiprocket

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tournevent/fulfillment/pkg/carrier"
)

// OrderPayload is the complete body of POST /orders/create/adhoc. Every
// field is always serialized: the API rejects payloads that omit a key it
// expects, even when the value would be empty.
type OrderPayload struct {
	OrderID        string `json:"order_id"`
	OrderDate      string `json:"order_date"`
	PickupLocation string `json:"pickup_location"`
	ChannelID      string `json:"channel_id"`
	Comment        string `json:"comment"`
	ResellerName   string `json:"reseller_name"`
	CompanyName    string `json:"company_name"`

	BillingCustomerName   string `json:"billing_customer_name"`
	BillingLastName       string `json:"billing_last_name"`
	BillingAddress        string `json:"billing_address"`
	BillingAddress2       string `json:"billing_address_2"`
	BillingISDCode        string `json:"billing_isd_code"`
	BillingCity           string `json:"billing_city"`
	BillingPincode        string `json:"billing_pincode"`
	BillingState          string `json:"billing_state"`
	BillingCountry        string `json:"billing_country"`
	BillingEmail          string `json:"billing_email"`
	BillingPhone          string `json:"billing_phone"`
	BillingAlternatePhone string `json:"billing_alternate_phone"`

	ShippingIsBilling bool `json:"shipping_is_billing"`

	ShippingCustomerName string `json:"shipping_customer_name"`
	ShippingLastName     string `json:"shipping_last_name"`
	ShippingAddress      string `json:"shipping_address"`
	ShippingAddress2     string `json:"shipping_address_2"`
	ShippingCity         string `json:"shipping_city"`
	ShippingPincode      string `json:"shipping_pincode"`
	ShippingCountry      string `json:"shipping_country"`
	ShippingState        string `json:"shipping_state"`
	ShippingEmail        string `json:"shipping_email"`
	ShippingPhone        string `json:"shipping_phone"`

	OrderItems    []LineItem `json:"order_items"`
	PaymentMethod string     `json:"payment_method"`

	ShippingCharges    float64 `json:"shipping_charges"`
	GiftwrapCharges    float64 `json:"giftwrap_charges"`
	TransactionCharges float64 `json:"transaction_charges"`
	TotalDiscount      float64 `json:"total_discount"`
	SubTotal           float64 `json:"sub_total"`

	Length  float64 `json:"length"`
	Breadth float64 `json:"breadth"`
	Height  float64 `json:"height"`
	Weight  float64 `json:"weight"`

	EwaybillNo    string `json:"ewaybill_no"`
	CustomerGSTIN string `json:"customer_gstin"`
	InvoiceNumber string `json:"invoice_number"`
	OrderType     string `json:"order_type"`
}

// LineItem is one order line in the carrier's shape.
type LineItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
	Discount     float64 `json:"discount"`
	Tax          float64 `json:"tax"`
	HSN          string  `json:"hsn"`
}

// Summary returns the fields later lifecycle steps need.
func (p *OrderPayload) Summary() carrier.OrderSummary {
	delivery := p.ShippingPincode
	if delivery == "" {
		delivery = p.BillingPincode
	}
	return carrier.OrderSummary{
		BillingPincode:  p.BillingPincode,
		DeliveryPincode: delivery,
		Weight:          p.Weight,
		PaymentMethod:   p.PaymentMethod,
	}
}

// addressFields are the suffixes shared by billing_* and shipping_* keys.
var addressFields = []string{
	"customer_name", "last_name", "address", "address_2", "city",
	"pincode", "country", "state", "email", "phone",
}

// BuildOrderPayload completes a possibly partial order description into
// the carrier's wire shape. Missing keys default to empty values. Shipping
// fields are copied from billing when shipping_is_billing is set or no
// shipping field was supplied; billing is never derived from shipping.
func BuildOrderPayload(raw map[string]any) OrderPayload {
	p := OrderPayload{
		OrderID:        text(raw, "order_id"),
		OrderDate:      text(raw, "order_date"),
		PickupLocation: text(raw, "pickup_location"),
		ChannelID:      text(raw, "channel_id"),
		Comment:        text(raw, "comment"),
		ResellerName:   text(raw, "reseller_name"),
		CompanyName:    text(raw, "company_name"),

		BillingCustomerName:   text(raw, "billing_customer_name"),
		BillingLastName:       text(raw, "billing_last_name"),
		BillingAddress:        text(raw, "billing_address"),
		BillingAddress2:       text(raw, "billing_address_2"),
		BillingISDCode:        text(raw, "billing_isd_code"),
		BillingCity:           text(raw, "billing_city"),
		BillingPincode:        text(raw, "billing_pincode"),
		BillingState:          text(raw, "billing_state"),
		BillingCountry:        text(raw, "billing_country"),
		BillingEmail:          text(raw, "billing_email"),
		BillingPhone:          text(raw, "billing_phone"),
		BillingAlternatePhone: text(raw, "billing_alternate_phone"),

		OrderItems:    lineItems(raw["order_items"]),
		PaymentMethod: text(raw, "payment_method"),

		ShippingCharges:    number(raw, "shipping_charges"),
		GiftwrapCharges:    number(raw, "giftwrap_charges"),
		TransactionCharges: number(raw, "transaction_charges"),
		TotalDiscount:      number(raw, "total_discount"),
		SubTotal:           number(raw, "sub_total"),

		Length:  number(raw, "length"),
		Breadth: number(raw, "breadth"),
		Height:  number(raw, "height"),
		Weight:  number(raw, "weight"),

		EwaybillNo:    text(raw, "ewaybill_no"),
		CustomerGSTIN: text(raw, "customer_gstin"),
		InvoiceNumber: text(raw, "invoice_number"),
		OrderType:     text(raw, "order_type"),
	}

	shipping := make(map[string]string, len(addressFields))
	supplied := false
	for _, f := range addressFields {
		v := text(raw, "shipping_"+f)
		if v != "" {
			supplied = true
		}
		shipping[f] = v
	}

	if flag(raw, "shipping_is_billing") || !supplied {
		p.ShippingIsBilling = true
		shipping = map[string]string{
			"customer_name": p.BillingCustomerName,
			"last_name":     p.BillingLastName,
			"address":       p.BillingAddress,
			"address_2":     p.BillingAddress2,
			"city":          p.BillingCity,
			"pincode":       p.BillingPincode,
			"country":       p.BillingCountry,
			"state":         p.BillingState,
			"email":         p.BillingEmail,
			"phone":         p.BillingPhone,
		}
	}

	p.ShippingCustomerName = shipping["customer_name"]
	p.ShippingLastName = shipping["last_name"]
	p.ShippingAddress = shipping["address"]
	p.ShippingAddress2 = shipping["address_2"]
	p.ShippingCity = shipping["city"]
	p.ShippingPincode = shipping["pincode"]
	p.ShippingCountry = shipping["country"]
	p.ShippingState = shipping["state"]
	p.ShippingEmail = shipping["email"]
	p.ShippingPhone = shipping["phone"]

	return p
}

// lineItems reshapes caller items, dropping any field the carrier does
// not know. Entries may be maps or any JSON-encodable value; anything that
// does not encode as an object is skipped. The result is never nil so it
// serializes as a list.
func lineItems(v any) []LineItem {
	entries := itemEntries(v)
	items := make([]LineItem, 0, len(entries))
	for _, entry := range entries {
		m, ok := asObject(entry)
		if !ok {
			continue
		}
		items = append(items, LineItem{
			Name:         text(m, "name"),
			SKU:          text(m, "sku"),
			Units:        int(number(m, "units")),
			SellingPrice: number(m, "selling_price"),
			Discount:     number(m, "discount"),
			Tax:          number(m, "tax"),
			HSN:          text(m, "hsn"),
		})
	}
	return items
}

func itemEntries(v any) []any {
	switch list := v.(type) {
	case nil:
		return nil
	case []any:
		return list
	case []map[string]any:
		entries := make([]any, len(list))
		for i, m := range list {
			entries[i] = m
		}
		return entries
	}

	var entries []any
	if err := decodeJSON(v, &entries); err != nil {
		return nil
	}
	return entries
}

func asObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	var m map[string]any
	if err := decodeJSON(v, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// decodeJSON re-encodes v into dst, keeping numbers as json.Number.
func decodeJSON(v, dst any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}

// text renders raw[key] as text, so numeric pincodes keep their digits.
func text(raw map[string]any, key string) string {
	s, _ := carrier.Stringify(raw[key])
	return strings.TrimSpace(s)
}

func number(raw map[string]any, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	}
	return 0
}

func flag(raw map[string]any, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case json.Number:
		return v.String() == "1"
	case float64:
		return v == 1
	}
	return false
}
