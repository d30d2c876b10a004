package notify

import "fmt"

// render produces the subject and HTML body for a job. Templates are
// deliberately plain; anything fancier belongs in a real template file.
func render(job *Job) (subject, body string) {
	amount := job.Payload["amount"]
	currency := job.Payload["currency"]

	switch job.Type {
	case JobTypeSubscriptionActivated:
		tier := job.Payload["tier"]
		subject = "Your Pikicha subscription is active"
		body = fmt.Sprintf(
			"<p>Thank you for your payment of %s %s.</p><p>Your <b>%s</b> subscription is now active and your generation credits have been refilled.</p>",
			amount, currency, tier,
		)
	case JobTypeOrderPaid:
		orderID := job.Payload["order_id"]
		subject = fmt.Sprintf("Payment received for order %s", orderID)
		body = fmt.Sprintf(
			"<p>We received your payment of %s %s for order <b>%s</b>.</p><p>We will let you know as soon as it ships.</p>",
			amount, currency, orderID,
		)
	default:
		subject = "Pikicha payment receipt"
		body = fmt.Sprintf("<p>We received your payment of %s %s. Reference: %s</p>",
			amount, currency, job.Payload["reference"])
	}
	return subject, body
}
