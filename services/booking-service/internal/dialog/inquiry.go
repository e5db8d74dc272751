package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/notify"
)

const knowledgeResults = 3

func (m *Machine) check(ctx context.Context, turn Turn) (string, error) {
	appts, err := m.ledger.Upcoming(ctx, turn.Business, turn.Customer.ID)
	if err != nil {
		m.logger.ErrorContext(ctx, "load upcoming appointments failed", "error", err, "customer_id", turn.Customer.ID)
		return replyLookupFailed, nil
	}
	if len(appts) == 0 {
		return "You don't have any upcoming appointments. Would you like to book one?", nil
	}
	blocks := make([]string, 0, len(appts))
	for _, a := range appts {
		blocks = append(blocks, fmt.Sprintf("%s\n• Date: %s\n• Time: %s\n• Code: %s",
			a.Service.Name, a.Date.Long(), a.StartTime.Kitchen(), a.ConfirmationCode))
	}
	return "Here are your upcoming appointments:\n\n" + strings.Join(blocks, "\n\n") +
		"\n\nNeed to make any changes? Just let me know!", nil
}

// inquiry answers from the business's FAQ first, then from its own
// configuration, then with the help menu.
func (m *Machine) inquiry(ctx context.Context, turn Turn) (string, error) {
	biz := turn.Business
	if m.knowledge != nil {
		snippets, err := m.knowledge.Retrieve(ctx, biz.ID, turn.Text, knowledgeResults)
		if err != nil {
			m.logger.WarnContext(ctx, "knowledge lookup failed", "error", err)
		} else if len(snippets) > 0 {
			parts := make([]string, 0, len(snippets))
			for _, s := range snippets {
				parts = append(parts, fmt.Sprintf("%s: %s", s.Title, s.Body))
			}
			return strings.Join(parts, "\n\n") + "\n\nIs there anything else I can help you with?", nil
		}
	}

	lower := strings.ToLower(turn.Text)
	switch {
	case strings.Contains(lower, "hours") || strings.Contains(lower, "open") || strings.Contains(lower, "time"):
		return "Our working hours are:\n\n" + hoursList(biz) + "\n\nHow can I help you today?", nil
	case strings.Contains(lower, "service") || strings.Contains(lower, "what do you"):
		lines := make([]string, 0, len(biz.Services))
		for _, s := range biz.Services {
			lines = append(lines, fmt.Sprintf("• %s - %s (%d mins)", s.Name, notify.Price(s.Price), s.DurationMinutes))
		}
		return "Here are our services:\n\n" + strings.Join(lines, "\n") + "\n\nWould you like to book an appointment?", nil
	case strings.Contains(lower, "price") || strings.Contains(lower, "cost"):
		lines := make([]string, 0, len(biz.Services))
		for _, s := range biz.Services {
			lines = append(lines, fmt.Sprintf("%s: %s", s.Name, notify.Price(s.Price)))
		}
		return "Our service prices:\n\n" + strings.Join(lines, "\n") + "\n\nWould you like to book?", nil
	}
	return helpMenu(biz), nil
}
