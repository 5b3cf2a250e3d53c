package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"community-portal/internal/model"
)

type fakeSender struct {
	to   tele.Recipient
	text string
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what any, _ ...any) (*tele.Message, error) {
	f.to = to
	f.text, _ = what.(string)
	return &tele.Message{}, f.err
}

func TestFormatWeek(t *testing.T) {
	s := &model.WeeklySummary{
		WeekStart: "2024-05-06",
		WeekEnd:   "2024-05-12",
		Nick1:     "Anna_Petrova", Dept1: "LSPD", Ash1: 15,
		Nick2: "Boris_Ivanov", Ash2: 3,
		TotalAsh: 18,
	}

	msg := FormatWeek(s)

	assert.Contains(t, msg, "2024-05-06 - 2024-05-12")
	assert.Contains(t, msg, "🥇 Anna_Petrova: 15 (LSPD)")
	assert.Contains(t, msg, "🥈 Boris_Ivanov: 3\n")
	assert.NotContains(t, msg, "🥉")
	assert.Contains(t, msg, "18")
}

func TestFormatWeek_Empty(t *testing.T) {
	msg := FormatWeek(&model.WeeklySummary{WeekStart: "2024-05-06", WeekEnd: "2024-05-12"})
	assert.Contains(t, msg, "Нет данных")
}

func TestTelegram_WeekClosed(t *testing.T) {
	f := &fakeSender{}
	n := &Telegram{bot: f, chat: tele.ChatID(-100123)}

	require.NoError(t, n.WeekClosed(context.Background(), &model.WeeklySummary{Nick1: "Anna_Petrova"}))
	assert.Equal(t, tele.ChatID(-100123), f.to)
	assert.Contains(t, f.text, "Anna_Petrova")

	f.err = errors.New("chat not found")
	assert.Error(t, n.WeekClosed(context.Background(), &model.WeeklySummary{}))
}

func TestTelegram_CancelledContext(t *testing.T) {
	f := &fakeSender{}
	n := &Telegram{bot: f, chat: tele.ChatID(1)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.WeekClosed(ctx, &model.WeeklySummary{}), context.Canceled)
	assert.Empty(t, f.text)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.WeekClosed(context.Background(), &model.WeeklySummary{}))
}
