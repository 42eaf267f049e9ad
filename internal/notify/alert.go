package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// AlertType classifies an operational alert.
type AlertType string

const (
	AlertDatabaseError AlertType = "DATABASE_ERROR"
	AlertReportFailure AlertType = "REPORT_FAILURE"
	AlertEmailFailure  AlertType = "EMAIL_FAILURE"
	AlertCriticalError AlertType = "CRITICAL_ERROR"
)

const alertSendTimeout = 30 * time.Second

// Alert is one operational problem worth telling an admin about.
type Alert struct {
	Type    AlertType
	Title   string
	Message string
	Err     error
	Context map[string]any
}

// Alerter emails alerts without blocking the caller. Delivery failures are
// logged and dropped; an alert never fails the operation that raised it.
type Alerter struct {
	mailer     Mailer
	recipients []string
	logger     *slog.Logger
	now        func() time.Time
	wg         sync.WaitGroup
}

// NewAlerter returns an Alerter sending to recipients through mailer.
func NewAlerter(mailer Mailer, recipients []string, logger *slog.Logger) *Alerter {
	return &Alerter{mailer: mailer, recipients: recipients, logger: logger, now: time.Now}
}

// Raise sends a in the background. It returns immediately.
func (a *Alerter) Raise(alert Alert) {
	if a == nil {
		return
	}
	if len(a.recipients) == 0 {
		a.logger.Warn("alert_dropped", "type", alert.Type, "title", alert.Title, "reason", "no recipients")
		return
	}
	msg := a.message(alert)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		// Detached from any request: the request may finish before the mail is sent.
		ctx, cancel := context.WithTimeout(context.Background(), alertSendTimeout)
		defer cancel()
		if err := a.mailer.Send(ctx, msg); err != nil {
			a.logger.Error("alert_send_failed", "type", alert.Type, "title", alert.Title, "error", err)
			return
		}
		a.logger.Info("alert_sent", "type", alert.Type, "title", alert.Title)
	}()
}

// ReportFailure raises a REPORT_FAILURE alert.
func (a *Alerter) ReportFailure(report string, err error, ctx map[string]any) {
	a.Raise(Alert{
		Type:    AlertReportFailure,
		Title:   report + " report generation failed",
		Message: "Report generation failed. Check the server logs for details.",
		Err:     err,
		Context: ctx,
	})
}

// EmailFailure raises an EMAIL_FAILURE alert.
func (a *Alerter) EmailFailure(subject string, err error) {
	a.Raise(Alert{
		Type:    AlertEmailFailure,
		Title:   "Email delivery failed",
		Message: fmt.Sprintf("Sending %q failed.", subject),
		Err:     err,
	})
}

// DatabaseError raises a DATABASE_ERROR alert.
func (a *Alerter) DatabaseError(operation string, err error) {
	a.Raise(Alert{
		Type:    AlertDatabaseError,
		Title:   "Database error",
		Message: fmt.Sprintf("Database operation %q failed.", operation),
		Err:     err,
	})
}

// Wait blocks until every alert raised so far has been sent or dropped.
// main calls it during shutdown.
func (a *Alerter) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}

func (a *Alerter) message(alert Alert) Message {
	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,sans-serif;max-width:600px">`)
	b.WriteString(`<h2 style="background:#dc2626;color:#fff;padding:12px">CKA Cashups Alert</h2>`)
	fmt.Fprintf(&b, "<p><strong>%s</strong></p>", html.EscapeString(strings.ReplaceAll(string(alert.Type), "_", " ")))
	fmt.Fprintf(&b, "<p>Timestamp: %s</p>", a.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "<h3>%s</h3><p>%s</p>", html.EscapeString(alert.Title), html.EscapeString(alert.Message))
	if alert.Err != nil {
		fmt.Fprintf(&b, "<pre>%s</pre>", html.EscapeString(alert.Err.Error()))
	}
	if len(alert.Context) > 0 {
		if raw, err := json.MarshalIndent(alert.Context, "", "  "); err == nil {
			fmt.Fprintf(&b, "<pre>%s</pre>", html.EscapeString(string(raw)))
		}
	}
	b.WriteString(`</div>`)

	return Message{
		To:      a.recipients,
		Subject: fmt.Sprintf("[CKA Alert] %s: %s", alert.Type, alert.Title),
		HTML:    b.String(),
	}
}
