package payments

import (
	"fmt"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/mailer"
)

func receiptEmail(rec *PaymentRecord, name, email, from, fromName string) mailer.Email {
	amount := fmt.Sprintf("%s %d.%02d", rec.Currency, rec.AmountCents/100, rec.AmountCents%100)
	subject := "Payment Receipt - " + fromName

	textBody := "Hello " + name + ",\n\n" +
		"We received your dues payment of " + amount + ".\n" +
		"Reference: " + rec.ClientReference + "\n\n" +
		"Your membership is now active. Thank you!"

	htmlBody := `
<html>
  <body style="font-family: sans-serif;">
    <h2>Payment Receipt</h2>
    <p>Hello ` + name + `,</p>
    <p>We received your dues payment.</p>
    <p><strong>Amount:</strong> ` + amount + `</p>
    <p><strong>Reference:</strong> ` + rec.ClientReference + `</p>
    <p>Your membership is now active. Thank you!</p>
    <p>` + fromName + `</p>
  </body>
</html>
`

	return mailer.Email{
		FromName: fromName,
		From:     from,
		To:       []string{email},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}
