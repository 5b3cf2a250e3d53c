// Package notify announces closed weeks to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"community-portal/internal/model"
)

var medals = []string{"🥇", "🥈", "🥉"}

type sender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// Telegram posts the podium of every closed week to one chat.
type Telegram struct {
	bot  sender
	chat tele.ChatID
}

// NewTelegram creates a Telegram notifier. The bot runs offline: it only sends.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{bot: bot, chat: tele.ChatID(chatID)}, nil
}

// WeekClosed sends the summary message.
func (t *Telegram) WeekClosed(ctx context.Context, s *model.WeeklySummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := t.bot.Send(t.chat, FormatWeek(s)); err != nil {
		return fmt.Errorf("failed to send week summary: %w", err)
	}

	log.Info().
		Int64("chat_id", int64(t.chat)).
		Str("week_start", s.WeekStart).
		Msg("Week summary announced")
	return nil
}

// FormatWeek renders a closed week as a chat message.
func FormatWeek(s *model.WeeklySummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 Итоги недели %s - %s\n", s.WeekStart, s.WeekEnd)
	b.WriteString("━━━━━━━━━━━━━━━\n")

	empty := true
	for pos := 1; pos <= len(medals); pos++ {
		e := s.Place(pos)
		if e.Nick == "" {
			continue
		}
		empty = false
		line := fmt.Sprintf("%s %s: %d", medals[pos-1], e.Nick, e.Points)
		if e.Department != "" {
			line += fmt.Sprintf(" (%s)", e.Department)
		}
		b.WriteString(line + "\n")
	}
	if empty {
		b.WriteString("Нет данных\n")
	}

	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "Всего пепла: %d", s.TotalAsh)

	return b.String()
}

// Noop drops every notification.
type Noop struct{}

// WeekClosed implements service.WeekNotifier.
func (Noop) WeekClosed(context.Context, *model.WeeklySummary) error { return nil }
