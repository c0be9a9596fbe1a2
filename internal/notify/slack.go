package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"github.com/sdrbot-io/sdrbot/internal/calendar"
	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// SlackNotifier posts qualification outcomes to a Slack channel.
type SlackNotifier struct {
	api      *slack.Client
	channel  string
	location *time.Location
	logger   *slog.Logger
}

// NewSlack creates a Slack notifier posting to the given channel.
func NewSlack(botToken, channel string, loc *time.Location, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{
		api:      slack.New(botToken),
		channel:  channel,
		location: loc,
		logger:   logger,
	}
}

func (n *SlackNotifier) MeetingBooked(ctx context.Context, lead *protocol.Lead, meeting *protocol.Meeting) error {
	text := fmt.Sprintf(":calendar: *Reunião agendada*\nLead: %s (%s)\nEmpresa: %s\nQuando: %s\nLink: %s",
		orDash(lead.Name), lead.Email, orDash(lead.Company),
		calendar.FormatDatetime(meeting.Datetime, n.location), orDash(meeting.Link))
	return n.post(ctx, text)
}

func (n *SlackNotifier) LeadLost(ctx context.Context, lead *protocol.Lead) error {
	text := fmt.Sprintf(":no_entry_sign: *Lead sem interesse*\nLead: %s (%s)\nEmpresa: %s",
		orDash(lead.Name), lead.Email, orDash(lead.Company))
	return n.post(ctx, text)
}

func (n *SlackNotifier) post(ctx context.Context, text string) error {
	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		n.logger.Warn("slack notification failed", "error", err)
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
