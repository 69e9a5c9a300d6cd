package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/utils"
)

// OrderMessage is the structured payload handed to the messaging channel
// when a digital menu order is placed. Delivery of the message is not
// this service's job.
type OrderMessage struct {
	OrderID        string             `json:"order_id"`
	OrderNumber    int64              `json:"order_number"`
	RestaurantName string             `json:"restaurant_name"`
	Type           models.OrderType   `json:"type"`
	CustomerName   string             `json:"customer_name,omitempty"`
	CustomerPhone  string             `json:"customer_phone,omitempty"`
	Items          []OrderMessageItem `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	DeliveryFee    decimal.Decimal    `json:"delivery_fee"`
	FeePending     bool               `json:"fee_pending"`
	Discount       decimal.Decimal    `json:"discount"`
	Total          decimal.Decimal    `json:"total"`
	Payment        string             `json:"payment,omitempty"`
	ChangeFor      decimal.Decimal    `json:"change_for"`
	Address        string             `json:"address,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	Text           string             `json:"text"`
	Link           string             `json:"link,omitempty"`
}

type OrderMessageItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	Notes     string          `json:"notes,omitempty"`
}

// FormatBRL formats an amount as Brazilian reais, e.g. R$ 1.234,56.
func FormatBRL(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	length := len(intPart)
	for i, digit := range intPart {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(".")
		}
		result.WriteRune(digit)
	}

	return sign + "R$ " + result.String() + "," + frac
}

func orderTypeLabel(t models.OrderType) string {
	switch t {
	case models.TypeDelivery:
		return "Entrega"
	case models.TypeTakeaway:
		return "Retirada"
	case models.TypeCounter:
		return "Balcão"
	case models.TypeTable:
		return "Mesa"
	case models.TypeTab:
		return "Comanda"
	case models.TypeDigitalMenu:
		return "Cardápio digital"
	}
	return "Pedido"
}

func paymentLabel(method string) string {
	switch method {
	case "pix":
		return "PIX"
	case "cash":
		return "Dinheiro"
	case "credit":
		return "Cartão de Crédito"
	case "debit":
		return "Cartão de Débito"
	}
	return "Não informado"
}

// BuildOrderMessage renders the order as chat text and, when the
// restaurant has a phone, a wa.me link carrying that text.
func BuildOrderMessage(order *models.Order, restaurantName, restaurantPhone string) OrderMessage {
	if restaurantName == "" {
		restaurantName = "Restaurante"
	}

	msg := OrderMessage{
		OrderID:        order.ID.String(),
		OrderNumber:    order.OrderNumber,
		RestaurantName: restaurantName,
		Type:           order.OrderType,
		CustomerName:   order.CustomerName,
		CustomerPhone:  order.DeliveryPhone,
		Subtotal:       order.Subtotal,
		DeliveryFee:    order.DeliveryFee,
		FeePending:     order.DeliveryFeePending,
		Discount:       order.CouponDiscount,
		Total:          order.Total,
		Payment:        order.PaymentMethod,
		ChangeFor:      order.ChangeFor,
		Address:        order.DeliveryAddress,
		Notes:          order.Notes,
	}
	for _, item := range order.Items {
		msg.Items = append(msg.Items, OrderMessageItem{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
			Notes:     item.Notes,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", restaurantName)
	if order.OrderNumber > 0 {
		fmt.Fprintf(&b, "Pedido #%d\n", order.OrderNumber)
	} else {
		fmt.Fprintf(&b, "Pedido #%s\n", strings.ToUpper(order.ID.String()[:6]))
	}
	fmt.Fprintf(&b, "Tipo: %s\n", orderTypeLabel(order.OrderType))
	if order.CustomerName != "" {
		fmt.Fprintf(&b, "Cliente: %s\n", order.CustomerName)
	}
	b.WriteString("\n")

	if len(msg.Items) > 0 {
		b.WriteString("*Itens:*\n")
		for _, item := range msg.Items {
			fmt.Fprintf(&b, "• %dx %s — %s\n", item.Quantity, item.Name, FormatBRL(item.LineTotal))
			if item.Notes != "" {
				fmt.Fprintf(&b, "  _%s_\n", item.Notes)
			}
		}
		b.WriteString("\n")
	}

	if order.DeliveryFee.IsPositive() || order.DeliveryFeePending || order.CouponDiscount.IsPositive() {
		fmt.Fprintf(&b, "Subtotal: %s\n", FormatBRL(order.Subtotal))
	}
	switch {
	case order.DeliveryFeePending:
		b.WriteString("Taxa de entrega: a confirmar\n")
	case order.DeliveryFee.IsPositive():
		fmt.Fprintf(&b, "Taxa de entrega: %s\n", FormatBRL(order.DeliveryFee))
	}
	if order.CouponDiscount.IsPositive() {
		fmt.Fprintf(&b, "Desconto: -%s\n", FormatBRL(order.CouponDiscount))
	}
	fmt.Fprintf(&b, "*Total: %s*\n", FormatBRL(order.Total))

	fmt.Fprintf(&b, "\n*Pagamento:* %s\n", paymentLabel(order.PaymentMethod))
	if order.PaymentMethod == "cash" {
		if order.ChangeFor.IsPositive() {
			fmt.Fprintf(&b, "Troco para: %s\n", FormatBRL(order.ChangeFor))
			if change := order.ChangeFor.Sub(order.Total); change.IsPositive() {
				fmt.Fprintf(&b, "_Troco: %s_\n", FormatBRL(change))
			}
		} else {
			b.WriteString("_Sem troco necessário_\n")
		}
	}

	if order.DeliveryAddress != "" {
		fmt.Fprintf(&b, "\n*Endereço:*\n%s\n", order.DeliveryAddress)
	}
	if order.Notes != "" {
		fmt.Fprintf(&b, "\n*Obs:* %s\n", order.Notes)
	}

	msg.Text = b.String()
	if number := utils.WhatsAppNumber(restaurantPhone); number != "" {
		msg.Link = "https://wa.me/" + number + "?text=" + strings.ReplaceAll(url.QueryEscape(msg.Text), "+", "%20")
	}
	return msg
}

// Handoff passes an order message on to whatever delivers it.
type Handoff interface {
	Send(ctx context.Context, msg OrderMessage) error
}

// LogHandoff only logs the message.
type LogHandoff struct{}

func (LogHandoff) Send(_ context.Context, msg OrderMessage) error {
	log.Printf("[Handoff] order #%d for %s ready to send (%d items)", msg.OrderNumber, msg.RestaurantName, len(msg.Items))
	return nil
}

// Publisher is the slice of the broker connection the handoff needs.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte, persistent bool) error
}

// BrokerHandoff queues messages durably for a messaging worker.
type BrokerHandoff struct {
	pub        Publisher
	exchange   string
	routingKey string
}

func NewBrokerHandoff(pub Publisher, exchange, routingKey string) *BrokerHandoff {
	return &BrokerHandoff{pub: pub, exchange: exchange, routingKey: routingKey}
}

func (h *BrokerHandoff) Send(ctx context.Context, msg OrderMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.pub.Publish(ctx, h.exchange, h.routingKey, body, true)
}

// WebhookHandoff posts messages as JSON to a URL.
type WebhookHandoff struct {
	url    string
	client *http.Client
}

func NewWebhookHandoff(url string) *WebhookHandoff {
	return &WebhookHandoff{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (h *WebhookHandoff) Send(ctx context.Context, msg OrderMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("[Handoff] webhook failed: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[Handoff] unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("handoff webhook returned status %d", resp.StatusCode)
	}
	return nil
}
