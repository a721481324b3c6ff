package watch

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// Notifier is the pluggable notification transport. Desktop/Email below
// are the minimal concrete implementations needed to exercise the
// interface end to end.
type Notifier interface {
	Notify(title, body string) error
}

// SummarizeBatch renders the count + first 5 IDs + ellipsis summary body
// sent after each watch cycle with new downloads.
func SummarizeBatch(ids []string) (title, body string) {
	title = fmt.Sprintf("pdb-sync: %d new entries", len(ids))
	shown := ids
	suffix := ""
	if len(ids) > 5 {
		shown = ids[:5]
		suffix = fmt.Sprintf(", … (%d more)", len(ids)-5)
	}
	body = strings.Join(shown, ", ") + suffix
	return title, body
}

// DesktopNotifier renders a summary title+body with a 10s display timeout.
// The actual OS-level notification call is injected via Send, so the
// watcher never depends on a concrete platform API.
type DesktopNotifier struct {
	Send func(title, body string, timeout time.Duration) error
}

func (d DesktopNotifier) Notify(title, body string) error {
	if d.Send == nil {
		return nil
	}
	return d.Send(title, body, 10*time.Second)
}

// EmailNotifier sends a plain-text summary, one PDB ID per line, over
// SMTP. Requires a non-empty To address at construction; host/user/password
// are read from SMTP_HOST/SMTP_USER/SMTP_PASS at send time.
type EmailNotifier struct {
	To string
}

// NewEmailNotifier validates the recipient address up front.
func NewEmailNotifier(to string) (*EmailNotifier, error) {
	if strings.TrimSpace(to) == "" {
		return nil, pdberr.New(pdberr.Notification, "email notifier requires a non-empty address")
	}
	return &EmailNotifier{To: to}, nil
}

func (e *EmailNotifier) Notify(title, body string) error {
	host := os.Getenv("SMTP_HOST")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	if host == "" {
		return pdberr.New(pdberr.Notification, "SMTP_HOST is not set")
	}

	msg := fmt.Sprintf("Subject: %s\r\n\r\n%s\r\n", title, strings.ReplaceAll(body, ", ", "\r\n"))

	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, hostOnly(host))
	}
	return smtp.SendMail(host, auth, user, []string{e.To}, []byte(msg))
}

func hostOnly(hostPort string) string {
	if i := strings.LastIndex(hostPort, ":"); i >= 0 {
		return hostPort[:i]
	}
	return hostPort
}
