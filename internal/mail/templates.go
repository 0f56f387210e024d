package mail

import (
	"fmt"
	"strings"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// ContactNotification is the mail sent to the studio for a new contact message.
// plan may be nil when the visitor did not pick one.
func ContactNotification(adminEmail string, msg *model.ContactMessage, plan *model.HousePlan) Message {
	planLabel := "Not provided"
	if plan != nil {
		planLabel = fmt.Sprintf("%s (%s)", plan.Title, plan.DisplayCode())
	}
	subscribe := "No"
	if msg.Subscribe {
		subscribe = "Yes"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New contact form submission (Message #%d):\n\n", msg.ID)
	fmt.Fprintf(&b, "Name: %s\n", msg.Name)
	fmt.Fprintf(&b, "Email: %s\n", msg.Email)
	fmt.Fprintf(&b, "Phone: %s\n", orDefault(msg.Phone, "Not provided"))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "Inquiry type: %s\n", msg.InquiryLabel())
	fmt.Fprintf(&b, "Plan interest: %s\n", planLabel)
	fmt.Fprintf(&b, "Reference code provided: %s\n", orDefault(msg.ReferenceCode, "Not provided"))
	fmt.Fprintf(&b, "Opt-in to updates: %s\n", subscribe)
	fmt.Fprintf(&b, "Attachment: %s\n\n", orDefault(msg.AttachmentPath, "None"))
	fmt.Fprintf(&b, "Message:\n%s\n", msg.Message)

	return Message{
		To:      []string{adminEmail},
		ReplyTo: msg.Email,
		Subject: "Contact Form: " + msg.Subject,
		Body:    b.String(),
	}
}

// ContactAcknowledgment is the receipt sent back to the visitor.
func ContactAcknowledgment(siteName string, msg *model.ContactMessage) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", msg.Name)
	fmt.Fprintf(&b, "Thanks for contacting %s. We've logged your request with our studio inbox. ", siteName)
	b.WriteString("Someone will respond within two business days.\n\n")
	fmt.Fprintf(&b, "Reference: Message #%d\n", msg.ID)
	b.WriteString("If you need immediate assistance, reply to this email.\n\n")
	b.WriteString("Studio Support\n")

	return Message{
		To:      []string{msg.Email},
		Subject: "We received your message",
		Body:    b.String(),
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
