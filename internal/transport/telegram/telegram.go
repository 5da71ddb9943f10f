// Package telegram is a long-polling Telegram Bot API transport.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
	"github.com/abdul-hamid-achik/codebridge/internal/output"
	"github.com/abdul-hamid-achik/codebridge/internal/transport"
)

const (
	defaultAPIRoot = "https://api.telegram.org"
	platform       = "telegram"
)

// Config for the bot.
type Config struct {
	Token string
	// APIRoot overrides the Bot API endpoint (tests).
	APIRoot          string
	AllowedUsers     []int64
	PollTimeout      time.Duration
	SendRate         float64
	ProxyURL         string
	MaxMessageLength int
	// RetryDelay is the pause after a failed poll.
	RetryDelay time.Duration
	// Bypass selects messages handled immediately instead of waiting
	// behind the chat's queue.
	Bypass func(transport.Message) bool
}

// Bot implements transport.Transport over the Telegram Bot API.
type Bot struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	log     *logging.Logger

	mu     sync.Mutex
	offset int64
}

var _ transport.Transport = (*Bot)(nil)

// New creates a bot client. An invalid proxy URL is an error.
func New(cfg Config, log *logging.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.APIRoot) == "" {
		cfg.APIRoot = defaultAPIRoot
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.SendRate <= 0 {
		cfg.SendRate = 1
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = output.DefaultMessageLength
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 3 * time.Second
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", cfg.ProxyURL, err)
		}
		tr.Proxy = http.ProxyURL(proxy)
	}

	return &Bot{
		cfg: cfg,
		client: &http.Client{
			Transport: tr,
			Timeout:   cfg.PollTimeout + 15*time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), 3),
		log:     log.WithPrefix("telegram"),
	}, nil
}

// Name returns the platform name.
func (b *Bot) Name() string {
	return platform
}

// Start drops updates queued while the bot was down, then long-polls until
// ctx is done. Each message is handled on its own goroutine; Start waits
// for them before returning.
func (b *Bot) Start(ctx context.Context, h transport.Handler) error {
	if strings.TrimSpace(b.cfg.Token) == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if err := b.dropPending(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("telegram startup: %w", err)
	}
	b.log.Info("polling started", logging.F("allowed_users", len(b.cfg.AllowedUsers)))

	d := transport.NewDispatcher(h, b.cfg.Bypass)
	defer d.Wait()

	for {
		msgs, err := b.pollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.Warn("poll failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.cfg.RetryDelay):
			}
			continue
		}

		for _, m := range msgs {
			d.Dispatch(ctx, m)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// dropPending confirms every queued update so only new messages are seen.
func (b *Bot) dropPending(ctx context.Context) error {
	var resp getUpdatesResponse
	if err := b.call(ctx, "getUpdates", map[string]any{"offset": -1, "timeout": 0}, &resp); err != nil {
		return err
	}
	if n := len(resp.Result); n > 0 {
		b.setOffset(resp.Result[n-1].UpdateID + 1)
		b.log.Info("dropped pending updates")
	}
	return nil
}

func (b *Bot) setOffset(o int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o > b.offset {
		b.offset = o
	}
}

func (b *Bot) currentOffset() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offset
}

// pollOnce fetches one batch of updates and returns the accepted messages.
func (b *Bot) pollOnce(ctx context.Context) ([]transport.Message, error) {
	payload := map[string]any{
		"timeout":         int(b.cfg.PollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	if off := b.currentOffset(); off > 0 {
		payload["offset"] = off
	}

	var resp getUpdatesResponse
	if err := b.call(ctx, "getUpdates", payload, &resp); err != nil {
		return nil, err
	}

	var msgs []transport.Message
	for _, upd := range resp.Result {
		b.setOffset(upd.UpdateID + 1)
		m := upd.Message
		if m == nil || m.MessageID == 0 || strings.TrimSpace(m.Text) == "" {
			continue
		}
		if !b.allowed(m.From.ID) {
			b.log.Warn("message from user not in allowed_users", logging.F("user_id", m.From.ID))
			continue
		}
		msgs = append(msgs, transport.Message{
			Platform:       platform,
			UserID:         strconv.FormatInt(m.From.ID, 10),
			ConversationID: strconv.FormatInt(m.Chat.ID, 10),
			Text:           m.Text,
			MessageID:      strconv.FormatInt(m.MessageID, 10),
		})
	}
	return msgs, nil
}

// allowed applies the whitelist. An empty list allows everyone.
func (b *Bot) allowed(userID int64) bool {
	return len(b.cfg.AllowedUsers) == 0 || slices.Contains(b.cfg.AllowedUsers, userID)
}

// Send splits text into numbered chunks and sends them in order, paced by
// the rate limiter.
func (b *Bot) Send(ctx context.Context, conversationID, text string) error {
	chunks := output.Number(output.Split(text, b.cfg.MaxMessageLength))
	for _, chunk := range chunks {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		payload := map[string]any{"chat_id": conversationID, "text": chunk}
		if err := b.call(ctx, "sendMessage", payload, nil); err != nil {
			b.log.Error("send failed", logging.ConversationID(conversationID), logging.Err(err))
			return err
		}
	}
	return nil
}

// SendTyping shows the typing indicator. Failures are only logged.
func (b *Bot) SendTyping(ctx context.Context, conversationID string) error {
	payload := map[string]any{"chat_id": conversationID, "action": "typing"}
	if err := b.call(ctx, "sendChatAction", payload, nil); err != nil {
		b.log.Debug("typing indicator failed", logging.Err(err))
		return err
	}
	return nil
}

func (b *Bot) call(ctx context.Context, method string, payload any, out any) error {
	endpoint := strings.TrimRight(b.cfg.APIRoot, "/") + "/bot" + b.cfg.Token + "/" + method
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		// Strip the URL, it carries the token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return cberr.TransportFailed(method, true, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)

	var base apiResponse
	if err := json.Unmarshal(respBody, &base); err != nil {
		return cberr.TransportFailed(method, resp.StatusCode >= 500,
			fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}
	if !base.OK || resp.StatusCode >= 300 {
		return cberr.TransportFailed(method, resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			fmt.Errorf("telegram api error %d: %s", base.ErrorCode, base.Description))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return cberr.TransportFailed(method, false, err)
		}
	}
	return nil
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

type getUpdatesResponse struct {
	apiResponse
	Result []update `json:"result"`
}

type update struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64 `json:"message_id"`
	From      struct {
		ID int64 `json:"id"`
	} `json:"from"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}
