package email

import (
	"html/template"
	"time"
)

// OrderNotice is the data behind an order status email.
type OrderNotice struct {
	OrderNumber         string
	Status              string
	ShippingMethod      string
	TrackingCode        string
	DeliveryDescription string
	TrackURL            string
	OccurredAt          time.Time
}

// Subject returns the email subject for the notice's status.
func (n OrderNotice) Subject() string {
	switch n.Status {
	case "PAID":
		return "Payment confirmed - " + n.OrderNumber
	case "SHIPPED":
		return "Your order has shipped - " + n.OrderNumber
	case "DELIVERED":
		return "Your order was delivered - " + n.OrderNumber
	default:
		return "Order update - " + n.OrderNumber
	}
}

// TemplateName returns the body template for the notice's status.
func (n OrderNotice) TemplateName() string {
	switch n.Status {
	case "PAID":
		return "order_paid"
	case "SHIPPED", "DELIVERED":
		return "order_shipment"
	default:
		return "order_update"
	}
}

var templates = template.Must(template.New("email_layout").Parse(`<!DOCTYPE html>
<html><body>
<div class="email-content">{{.Body}}</div>
<p>Ponto</p>
</body></html>
{{define "order_paid"}}
<h2>Payment confirmed</h2>
<p>We received the payment for order <strong>{{.OrderNumber}}</strong>.</p>
<p>We will let you know when it ships.</p>
{{end}}
{{define "order_shipment"}}
<h2>Order {{.OrderNumber}}</h2>
<p>Status: {{.Status}}</p>
{{if .ShippingMethod}}<p>Shipping method: {{.ShippingMethod}}</p>{{end}}
{{if .TrackingCode}}<p>Tracking code: <strong>{{.TrackingCode}}</strong></p>{{end}}
{{if .DeliveryDescription}}<p>{{.DeliveryDescription}}</p>{{end}}
{{if .TrackURL}}<p><a href="{{.TrackURL}}">Track your order</a></p>{{end}}
{{end}}
{{define "order_update"}}
<h2>Order {{.OrderNumber}}</h2>
<p>Your order is now {{.Status}}.</p>
{{if .TrackURL}}<p><a href="{{.TrackURL}}">Track your order</a></p>{{end}}
{{end}}`))
