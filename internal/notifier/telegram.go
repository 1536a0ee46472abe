package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"TrendChannel/internal/logger"
)

// DefaultAPIBase is the Telegram Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// MaxMessageRunes is the Telegram limit for one message text.
const MaxMessageRunes = 4096

// TelegramNotifier delivers HTML reports to one chat via the Bot API.
type TelegramNotifier struct {
	APIBase  string
	BotToken string
	ChatID   string
	Client   *http.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		APIBase:  DefaultAPIBase,
		BotToken: botToken,
		ChatID:   chatID,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// apiError is a failed Bot API call. Client errors other than rate limiting
// are permanent: resending the same report cannot succeed.
type apiError struct {
	Method      string
	Status      int
	Description string
	RetryAfter  time.Duration
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.Status, e.Description)
}

func (e *apiError) permanent() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}

// call posts params to a Bot API method and decodes the result into out.
func (t *TelegramNotifier) call(ctx context.Context, client *http.Client, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/%s", t.APIBase, t.BotToken, method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)
	if resp.StatusCode != http.StatusOK || !envelope.OK {
		desc := envelope.Description
		if decodeErr != nil {
			desc = http.StatusText(resp.StatusCode)
		}
		return &apiError{
			Method:      method,
			Status:      resp.StatusCode,
			Description: desc,
			RetryAfter:  time.Duration(envelope.Parameters.RetryAfter) * time.Second,
		}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s response: %w", method, decodeErr)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func (t *TelegramNotifier) sendChunk(ctx context.Context, chunk string) error {
	return t.call(ctx, t.Client, "sendMessage", map[string]string{
		"chat_id":    t.ChatID,
		"text":       chunk,
		"parse_mode": "HTML",
	}, nil)
}

// Send delivers text once, split into as many messages as the length limit needs.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageRunes) {
		if err := t.sendChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// SendWithRetry delivers text chunk by chunk, retrying each chunk with
// exponential backoff. Chunks already delivered are not resent.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	chunks := SplitMessage(text, MaxMessageRunes)
	for n, chunk := range chunks {
		if err := t.retryChunk(ctx, chunk, maxRetries); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", n+1, len(chunks), err)
		}
	}
	return nil
}

func (t *TelegramNotifier) retryChunk(ctx context.Context, chunk string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.sendChunk(ctx, chunk)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.permanent() {
			return err
		}
		if i == maxRetries {
			break
		}

		backoff := time.Duration(1<<uint(i)) * time.Second
		if apiErr != nil && apiErr.RetryAfter > 0 {
			backoff = apiErr.RetryAfter
		}
		logger.Warn("[notifier] telegram send failed",
			logger.Pair("attempt", i+1),
			logger.Pair("attempts", maxRetries+1),
			logger.Pair("backoff", backoff),
			logger.Err(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

// SplitMessage cuts text into pieces of at most limit runes. Cuts fall on line
// breaks when possible so the single-line HTML tags of a report stay balanced;
// an overlong line is cut mid-line but never inside an HTML entity.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		runes  int
	)
	flush := func() {
		if chunk := strings.TrimRight(cur.String(), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		cur.Reset()
		runes = 0
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if runes+n > limit {
			flush()
		}
		for n > limit {
			head := cutRunes(line, limit)
			chunks = append(chunks, head)
			line = line[len(head):]
			n = utf8.RuneCountInString(line)
		}
		cur.WriteString(line)
		runes += n
	}
	flush()
	return chunks
}

// cutRunes returns the longest prefix of s with at most limit runes that does
// not end inside an entity such as &lt;.
func cutRunes(s string, limit int) string {
	end, count := 0, 0
	for i := range s {
		if count == limit {
			end = i
			break
		}
		count++
		end = len(s)
	}
	head := s[:end]
	if amp := strings.LastIndexByte(head, '&'); amp > 0 && amp > strings.LastIndexByte(head, ';') {
		head = head[:amp]
	}
	return head
}
