package email

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/util"
)

// SelfSender is the From value understood by the mail API as the
// authenticated user.
const SelfSender = "me"

// Subject returns the subject line used for a forwarded SMS.
func Subject(sender string) string {
	return fmt.Sprintf("New SMS from %s", sender)
}

// BuildMessage validates its inputs and returns a plain text MIME message with
// to, subject and from headers, base64url encoded. Each rejected input is an
// INVALID_INPUT fault naming the field.
func BuildMessage(destination, subject, body string) (string, error) {
	if destination == "" {
		return "", faults.InvalidInput("destination", "Destination must not be empty")
	}
	if subject == "" {
		return "", faults.InvalidInput("subject", "Subject must not be empty")
	}
	if body == "" {
		return "", faults.InvalidInput("body", "Body must not be empty")
	}
	if !util.IsEmailAddress(destination) {
		return "", faults.InvalidInput("destination", "Invalid address")
	}

	var b strings.Builder
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("to: " + destination + "\r\n")
	b.WriteString("subject: " + encodeHeader(subject) + "\r\n")
	b.WriteString("from: " + SelfSender + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return base64.URLEncoding.EncodeToString([]byte(b.String())), nil
}

func encodeHeader(value string) string {
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	return mime.QEncoding.Encode("utf-8", value)
}
