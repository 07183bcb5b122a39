package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"pricetracker-backend/lib/pricestore"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

// Alert is raised when a checked price reaches the product's target price.
type Alert struct {
	Product pricestore.Product
	Price   float64
	Target  float64
}

// shouldAlert only considers checked prices, an estimated seed never triggers an alert.
func shouldAlert(product pricestore.Product, price float64) (Alert, bool) {
	if product.TargetPrice == nil {
		return Alert{}, false
	}
	if price > *product.TargetPrice {
		return Alert{}, false
	}
	return Alert{Product: product, Price: price, Target: *product.TargetPrice}, true
}

type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, alert Alert) error {
	slog.InfoContext(
		ctx, "price dropped below target",
		"product", alert.Product.ID,
		"name", alert.Product.Name,
		"retailer", alert.Product.Retailer,
		"price", alert.Price,
		"target", alert.Target,
	)
	return nil
}

// Notifiers sends every alert to each notifier in turn, failures are joined.
type Notifiers []Notifier

func (n Notifiers) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, notifier := range n {
		err := notifier.Notify(ctx, alert)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type EmailNotifier struct {
	Smtp SmtpConfig
	To   []string
}

func (n EmailNotifier) message(alert Alert) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Price Tracker <%s>", n.Smtp.EmailAddress)
	mail.To = n.To
	mail.Subject = fmt.Sprintf("Price drop: %s", alert.Product.Name)

	body := fmt.Sprintf(`%s on %s is now %s %.2f, at or below your target of %s %.2f.

%s`,
		alert.Product.Name,
		alert.Product.Retailer.Title(),
		alert.Product.Currency, alert.Price,
		alert.Product.Currency, alert.Target,
		alert.Product.URL,
	)
	mail.Text = []byte(body)
	return mail
}

func (n EmailNotifier) Notify(ctx context.Context, alert Alert) error {
	ctx, span := tracer.Start(ctx, "EmailNotifier.Notify")
	defer span.End()

	if len(n.To) == 0 {
		return nil
	}

	mail := n.message(alert)
	addr := fmt.Sprintf("%s:%d", n.Smtp.Server, n.Smtp.Port)
	err := mail.Send(addr, smtp.PlainAuth("", n.Smtp.EmailAddress, n.Smtp.Password, n.Smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return fmt.Errorf("send price alert: %w", err)
	}
	return nil
}
