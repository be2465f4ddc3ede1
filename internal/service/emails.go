// emails.go — HTML-письма клиенту и подрядчику (templ-компоненты).
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/bigkaa/tellbill/internal/domain/model"
)

// Письма клиенту и подрядчику. Все пользовательские строки экранируются.
const (
	emailTimeLayout = "Jan 2, 2006 15:04 MST"

	subjectApprovalRequest = "Approval needed: additional work"
	subjectReminder        = "Reminder: additional work is waiting for your approval"
	subjectFeedback        = "Your client left feedback on a change order"
)

// approvalRequestEmail — первичное письмо и повторная отправка ссылки.
func approvalRequestEmail(p *model.ScopeProof, link string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<p>Your contractor asks you to approve additional work.</p>`+
				`<p><strong>%s</strong></p>`+
				`<p>Estimated cost: %s</p>`+
				`<p><a href="%s">Review and approve</a></p>`+
				`<p>The link is valid until %s.</p>`,
			templ.EscapeString(p.Description),
			FormatAmount(p.EstimatedCostCents),
			templ.EscapeString(link),
			p.TokenExpiresAt.UTC().Format(emailTimeLayout),
		)
		return err
	})
}

// reminderEmail — автоматическое напоминание до истечения ссылки.
func reminderEmail(p *model.ScopeProof, link string, now time.Time) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		left := p.TokenExpiresAt.Sub(now).Round(time.Hour)
		_, err := fmt.Fprintf(w,
			`<p>Additional work is still waiting for your decision.</p>`+
				`<p><strong>%s</strong> (estimated cost: %s)</p>`+
				`<p><a href="%s">Review and approve</a></p>`+
				`<p>The link expires in about %d hours.</p>`,
			templ.EscapeString(p.Description),
			FormatAmount(p.EstimatedCostCents),
			templ.EscapeString(link),
			int(left.Hours()),
		)
		return err
	})
}

// feedbackEmail — уведомление подрядчика о комментарии клиента.
func feedbackEmail(p *model.ScopeProof) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var feedback, author string
		if p.Feedback != nil {
			feedback = *p.Feedback
		}
		if p.FeedbackBy != nil {
			author = *p.FeedbackBy
		}
		_, err := fmt.Fprintf(w,
			`<p>%s left feedback on your change order:</p>`+
				`<p><strong>%s</strong></p>`+
				`<blockquote>%s</blockquote>`+
				`<p>The client can still approve or reject until the link expires.</p>`,
			templ.EscapeString(author),
			templ.EscapeString(p.Description),
			templ.EscapeString(feedback),
		)
		return err
	})
}
