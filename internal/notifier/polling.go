package notifier

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"TrendChannel/internal/logger"
)

// CommandHandler is called when a user command is received. A non-empty
// return value is sent back as the immediate reply.
type CommandHandler func(command string) string

const (
	pollTimeoutSeconds = 30
	pollRetryDelay     = 5 * time.Second
)

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls getUpdates and dispatches commands from the
// configured chat. Messages from any other chat are ignored. Blocks until ctx
// is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: (pollTimeoutSeconds + 5) * time.Second}
	offset := 0

	for ctx.Err() == nil {
		var updates []telegramUpdate
		err := t.call(ctx, client, "getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         pollTimeoutSeconds,
			"allowed_updates": []string{"message"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("[notifier] polling request failed", logger.Err(err))
			select {
			case <-ctx.Done():
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		offset = t.dispatch(ctx, updates, offset, handler)
	}
	logger.Info("[notifier] telegram polling stopped")
}

// dispatch handles one batch of updates and returns the next offset.
func (t *TelegramNotifier) dispatch(ctx context.Context, updates []telegramUpdate, offset int, handler CommandHandler) int {
	for _, update := range updates {
		offset = max(offset, update.UpdateID+1)
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		if chat := strconv.FormatInt(update.Message.Chat.ID, 10); chat != t.ChatID {
			logger.Warn("[notifier] ignored command from unknown chat", logger.Pair("chat", chat))
			continue
		}
		command := normalizeCommand(update.Message.Text)
		logger.Info("[notifier] received command", logger.Pair("command", command))
		if reply := handler(command); reply != "" {
			if err := t.SendWithRetry(ctx, reply, 1); err != nil {
				logger.Error("[notifier] send reply", logger.Err(err))
			}
		}
	}
	return offset
}

// normalizeCommand trims the text and drops a bot mention, so "/trend@my_bot"
// in a group chat reads as "/trend".
func normalizeCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	head, rest, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(head, '@'); at > 0 {
		head = head[:at]
	}
	if rest == "" {
		return head
	}
	return head + " " + rest
}
