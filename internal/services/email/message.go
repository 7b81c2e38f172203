package email

import (
	"fmt"
	"mime"
	"strings"
	"time"
)

const attentionLine = "This experiment requires special attention and should be reviewed ASAP"

// Message is a plain text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// ReviewMessage asks the review list to add the experiment to its queue.
func ReviewMessage(from, to, experimentName, experimentURL string, needsAttention bool) Message {
	var body strings.Builder
	if needsAttention {
		body.WriteString(attentionLine)
		body.WriteString("\n\n")
	}
	fmt.Fprintf(&body, "Please add the following experiment to the Shield review queue:\n\n%s\n", experimentURL)
	return Message{
		From:    from,
		To:      []string{to},
		Subject: "Experimenter Review Request: " + experimentName,
		Body:    body.String(),
	}
}

// ShipMessage tells the ship list the experiment has every sign-off.
func ShipMessage(from, to, experimentName, experimentURL string) Message {
	return Message{
		From:    from,
		To:      []string{to},
		Subject: "Experimenter Ready to Ship: " + experimentName,
		Body:    fmt.Sprintf("The following experiment has been signed off and is ready to ship:\n\n%s\n", experimentURL),
	}
}

// Bytes renders m as an RFC 5322 message with CRLF line endings.
func (m Message) Bytes(now time.Time) []byte {
	var b strings.Builder
	header := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(sanitizeHeader(value))
		b.WriteString("\r\n")
	}
	header("From", m.From)
	header("To", strings.Join(m.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", sanitizeHeader(m.Subject)))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
