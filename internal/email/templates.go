package email

import (
	"bytes"
	"fmt"
	"html/template"

	"paylink/internal/models"
	"paylink/internal/pkg/utils"
)

// Kind selects a notification template.
type Kind string

const (
	KindPaymentLink  Kind = "payment_link"
	KindReminder1    Kind = "reminder_1"
	KindReminder2    Kind = "reminder_2"
	KindCancellation Kind = "cancellation"
	KindConfirmation Kind = "confirmation"
)

var subjects = map[Kind]string{
	KindPaymentLink:  "Your payment link for booking %s",
	KindReminder1:    "Reminder: deposit outstanding for booking %s",
	KindReminder2:    "Last reminder: deposit outstanding for booking %s",
	KindCancellation: "Booking %s canceled",
	KindConfirmation: "Payment received for booking %s",
}

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Business}}</title></head>
<body style="font-family:sans-serif;color:#1a1a1a;">
<p>Hello {{.Name}},</p>
{{if eq .Kind "payment_link"}}<p>your appointment on {{.Date}}{{if .Time}} at {{.Time}}{{end}} is reserved once the deposit of {{.Amount}} is paid.</p>
<p><a href="{{.LinkURL}}">Pay now</a></p>
{{else if eq .Kind "reminder_1"}}<p>a friendly reminder that the deposit of {{.Amount}} for your appointment on {{.Date}} is still open.</p>
<p><a href="{{.LinkURL}}">Pay now</a></p>
{{else if eq .Kind "reminder_2"}}<p>we have not yet received the deposit of {{.Amount}} for your appointment on {{.Date}}. Without payment the appointment will be released in two days.</p>
<p><a href="{{.LinkURL}}">Pay now</a></p>
{{else if eq .Kind "cancellation"}}<p>because the deposit of {{.Amount}} was not received, your appointment on {{.Date}} has been canceled and the payment link is no longer valid.</p>
{{else if eq .Kind "confirmation"}}<p>we received your payment of {{.Amount}}. Your appointment on {{.Date}}{{if .Time}} at {{.Time}}{{end}} is confirmed.</p>
{{end}}<p>Reference: {{.Ref}}</p>
<p>{{.Business}}</p>
</body>
</html>`

// Renderer builds notification messages for payment records.
type Renderer struct {
	business string
	tmpl     *template.Template
}

func NewRenderer(business string) *Renderer {
	return &Renderer{
		business: business,
		tmpl:     template.Must(template.New("notification").Parse(layout)),
	}
}

// Render builds the message of the given kind for rec. Amounts are rendered
// as decimals.
func (r *Renderer) Render(kind Kind, rec *models.PaymentRecord) (Message, error) {
	ref := utils.RefCode(rec.ID)
	data := map[string]interface{}{
		"Kind":     string(kind),
		"Business": r.business,
		"Name":     rec.CustomerName,
		"Date":     rec.ScheduledDate,
		"Time":     rec.ScheduledTime,
		"Amount":   utils.FormatAmount(rec.Amount, rec.Currency),
		"LinkURL":  rec.LinkURL,
		"Ref":      ref,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      rec.CustomerEmail,
		Subject: sprintf(subjects[kind], ref),
		HTML:    buf.String(),
	}, nil
}

func sprintf(format, ref string) string {
	if format == "" {
		return ref
	}
	return fmt.Sprintf(format, ref)
}
