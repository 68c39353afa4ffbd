package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
)

var amountLocale = language.MustParse("es-CO")

// Sender identifies the business in outgoing quotation emails.
type Sender struct {
	Name    string
	Email   string
	Phone   string
	Website string
}

// QuotationEmailJob delivers quotation:send-email tasks.
type QuotationEmailJob struct {
	Mailer  Mailer
	Sender  Sender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewQuotationEmailJob wires dependencies for the email handler.
func NewQuotationEmailJob(mailer Mailer, sender Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuotationEmailJob {
	return &QuotationEmailJob{Mailer: mailer, Sender: sender, Logger: logger, Metrics: metrics}
}

// Handle renders and sends the email. Malformed payloads are not retried.
func (j *QuotationEmailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("quotation email: handler not configured")
	}
	var payload QuotationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if strings.TrimSpace(payload.Recipient) == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskQuotationSendEmail)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.Int64("quotation_id", payload.QuotationID), slog.String("number", payload.Number))
	if err := j.Mailer.Send(ctx, RenderQuotationEmail(payload, j.Sender)); err != nil {
		logger.Error("send quotation email", slog.Any("error", err))
		return err
	}
	logger.Info("quotation email sent", slog.String("recipient", payload.Recipient))
	return nil
}

func (j *QuotationEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// RenderQuotationEmail builds the plain-text email for a sent quotation.
func RenderQuotationEmail(p QuotationEmailPayload, sender Sender) Message {
	printer := message.NewPrinter(amountLocale)
	amount, _ := p.Total.Round(2).Float64()

	from := sender.Name
	if from == "" {
		from = "Backoffice"
	}
	client := p.ClientName
	if client == "" {
		client = "cliente"
	}

	var b strings.Builder
	b.WriteString(printer.Sprintf("Hola %s,\n\n", client))
	b.WriteString(printer.Sprintf("Adjuntamos la cotización %s por un valor de %s %.2f.\n", p.Number, p.Currency, amount))
	b.WriteString("Quedamos atentos a cualquier inquietud.\n\n")
	b.WriteString(from + "\n")
	for _, line := range []string{sender.Email, sender.Phone, sender.Website} {
		if line != "" {
			b.WriteString(line + "\n")
		}
	}
	return Message{
		To:      p.Recipient,
		Subject: printer.Sprintf("Cotización %s - %s", p.Number, from),
		Body:    b.String(),
	}
}
