package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"figmist-store/internal/models"
	"figmist-store/internal/pricing"
	"figmist-store/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	whatsAppBaseURL = "https://wa.me/"
	placedAtLayout  = "02/01/2006, 3:04:05 pm"
)

var indiaStandardTime = time.FixedZone("IST", 5*60*60+30*60)

// CheckoutFormatter turns a cart into a WhatsApp order message.
// Orders are not stored anywhere; the chat thread is the only record.
type CheckoutFormatter struct {
	whatsAppNumber string
	printer        *message.Printer
	now            func() time.Time
	logger         *zap.Logger
}

// NewCheckoutFormatter creates a formatter sending orders to the given number
func NewCheckoutFormatter(whatsAppNumber string) *CheckoutFormatter {
	return &CheckoutFormatter{
		whatsAppNumber: whatsAppNumber,
		printer:        message.NewPrinter(language.Make("en-IN")),
		now:            time.Now,
		logger:         util.GetLogger(),
	}
}

// FormatAmount renders an amount with Indian digit grouping
func (f *CheckoutFormatter) FormatAmount(d decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(d.InexactFloat64(), number.MaxFractionDigits(2)))
}

// PlaceOrder validates contact details and builds the order message and link.
// Lines are used as snapshotted in the cart.
func (f *CheckoutFormatter) PlaceOrder(ctx context.Context, lines []models.CartLine, details models.CustomerDetails, total decimal.Decimal) (*models.Order, error) {
	_, span := util.StartSpan(ctx, "CheckoutFormatter.PlaceOrder")
	defer span.End()

	details.Name = strings.TrimSpace(details.Name)
	details.Phone = strings.TrimSpace(details.Phone)
	if details.Name == "" || details.Phone == "" {
		util.CheckoutsTotal.WithLabelValues("missing_contact").Inc()
		return nil, ErrMissingContact
	}
	if len(lines) == 0 {
		util.CheckoutsTotal.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	placedAt := f.now()
	orderID := fmt.Sprintf("FIG-%d", placedAt.UnixMilli())
	msg := f.message(orderID, lines, details, total, placedAt)

	util.CheckoutsTotal.WithLabelValues("formatted").Inc()
	f.logger.Info("Order formatted",
		zap.String("order_id", orderID),
		zap.Int("lines", len(lines)),
		zap.String("total", total.String()))

	return &models.Order{
		ID:       orderID,
		Message:  msg,
		URL:      f.link(msg),
		Total:    total,
		PlacedAt: placedAt,
	}, nil
}

func (f *CheckoutFormatter) message(orderID string, lines []models.CartLine, d models.CustomerDetails, total decimal.Decimal, placedAt time.Time) string {
	email := d.Email
	if strings.TrimSpace(email) == "" {
		email = "Not provided"
	}
	address := d.Address
	if strings.TrimSpace(address) == "" {
		address = "Will discuss via WhatsApp"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*🛒 FIGMIST ORDER - %s*\n\n", orderID)
	b.WriteString("*👤 Customer Details:*\n")
	fmt.Fprintf(&b, "Name: %s\nPhone: %s\nEmail: %s\nAddress: %s\n\n", d.Name, d.Phone, email, address)
	b.WriteString("*📦 Order Items:*\n")

	items := make([]string, 0, len(lines))
	for _, l := range lines {
		name := l.Name
		if l.Size != nil {
			name = fmt.Sprintf("%s (%s)", l.Name, *l.Size)
		}
		lineTotal := pricing.LineTotal(l.Price, l.DiscountPercentage, l.DiscountActive, l.Quantity)
		items = append(items, fmt.Sprintf("• %s\n  Qty: %d × ₹%s\n  Total: ₹%s",
			name, l.Quantity, f.FormatAmount(l.Price), f.FormatAmount(lineTotal)))
	}
	b.WriteString(strings.Join(items, "\n\n"))

	fmt.Fprintf(&b, "\n\n*💰 Order Total: ₹%s*\n\n", f.FormatAmount(total))
	b.WriteString("*📝 Notes:* Please confirm availability and delivery details.\n")
	fmt.Fprintf(&b, "Order placed on: %s", placedAt.In(indiaStandardTime).Format(placedAtLayout))
	return b.String()
}

func (f *CheckoutFormatter) link(msg string) string {
	text := strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
	return whatsAppBaseURL + f.whatsAppNumber + "?text=" + text
}
