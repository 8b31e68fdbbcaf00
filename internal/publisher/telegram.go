package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const telegramDefaultBaseURL = "https://api.telegram.org"

// TelegramClient is a minimal Bot API client: two methods, plain JSON
// over HTTP, rate-limited to stay under the channel's flood limits.
type TelegramClient struct {
	baseURL     string
	token       string
	chatID      string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func NewTelegramClient(token, chatID string) *TelegramClient {
	return &TelegramClient{
		baseURL: telegramDefaultBaseURL,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
		// Telegram allows ~20 messages/minute per channel.
		rateLimiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

// NewTelegramClientWithBaseURL is used by tests to point at a fake API.
func NewTelegramClientWithBaseURL(baseURL, token, chatID string) *TelegramClient {
	c := NewTelegramClient(token, chatID)
	c.baseURL = baseURL
	c.rateLimiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

// Enabled reports whether the client has credentials to post at all.
func (c *TelegramClient) Enabled() bool {
	return c.token != "" && c.chatID != ""
}

type inlineKeyboardButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type sendPhotoPayload struct {
	ChatID      string               `json:"chat_id"`
	Photo       string               `json:"photo"`
	Caption     string               `json:"caption"`
	ParseMode   string               `json:"parse_mode"`
	ReplyMarkup inlineKeyboardMarkup `json:"reply_markup"`
}

type sendMessagePayload struct {
	ChatID                string               `json:"chat_id"`
	Text                  string               `json:"text"`
	ParseMode             string               `json:"parse_mode"`
	ReplyMarkup           inlineKeyboardMarkup `json:"reply_markup"`
	DisableWebPagePreview bool                 `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendPhoto posts a photo with a Markdown caption and one link button.
func (c *TelegramClient) SendPhoto(ctx context.Context, photoURL, caption, buttonText, buttonURL string) error {
	payload := sendPhotoPayload{
		ChatID:      c.chatID,
		Photo:       photoURL,
		Caption:     caption,
		ParseMode:   "Markdown",
		ReplyMarkup: keyboard(buttonText, buttonURL),
	}
	return c.call(ctx, "sendPhoto", payload)
}

// SendMessage posts a plain Markdown message with one link button.
func (c *TelegramClient) SendMessage(ctx context.Context, text, buttonText, buttonURL string) error {
	payload := sendMessagePayload{
		ChatID:      c.chatID,
		Text:        text,
		ParseMode:   "Markdown",
		ReplyMarkup: keyboard(buttonText, buttonURL),
	}
	return c.call(ctx, "sendMessage", payload)
}

func keyboard(text, url string) inlineKeyboardMarkup {
	return inlineKeyboardMarkup{
		InlineKeyboard: [][]inlineKeyboardButton{{{Text: text, URL: url}}},
	}
}

func (c *TelegramClient) call(ctx context.Context, method string, payload any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	var tgResp telegramResponse
	if err := json.Unmarshal(respBody, &tgResp); err != nil || !tgResp.OK {
		return fmt.Errorf("telegram %s failed: status %s, body %s", method, resp.Status, string(respBody))
	}
	return nil
}
