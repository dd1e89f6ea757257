// Package telegram implements a minimal Telegram Bot API client covering the
// three send operations the gateway needs: sendMessage, sendDocument, and
// sendMediaGroup.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// parseMode is the markup dialect used for all formatted sends.
const parseMode = "MarkdownV2"

// defaultAPIPrefix is the public Bot API endpoint.
const defaultAPIPrefix = "https://api.telegram.org/"

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	// Token is the bot token issued by BotFather.
	Token string

	// APIPrefix overrides the Bot API base URL, e.g. for a local
	// bot-api gateway. Defaults to https://api.telegram.org/.
	APIPrefix string

	// Timeout is the per-request HTTP timeout. Defaults to 30s.
	Timeout time.Duration

	// HTTPClient overrides the HTTP client, used for testing.
	HTTPClient *http.Client
}

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	token      string
	apiPrefix  string
	httpClient *http.Client
}

// NewClient creates a Bot API client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = defaultAPIPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		token:      cfg.Token,
		apiPrefix:  prefix,
		httpClient: httpClient,
	}
}

// SendText sends a MarkdownV2-formatted message to the chat.
func (c *Client) SendText(ctx context.Context, chat ChatID, text string) error {
	return c.sendMessage(ctx, chat, text, parseMode)
}

// SendPlainText sends a message without any parse mode, so the text is
// rendered verbatim and cannot be interpreted as markup.
func (c *Client) SendPlainText(ctx context.Context, chat ChatID, text string) error {
	return c.sendMessage(ctx, chat, text, "")
}

// sendMessage posts a sendMessage request with the given parse mode.
// https://core.telegram.org/bots/api#sendmessage
func (c *Client) sendMessage(ctx context.Context, chat ChatID, text, mode string) error {
	form := url.Values{
		"chat_id":                  {strconv.FormatInt(int64(chat), 10)},
		"text":                     {text},
		"disable_web_page_preview": {"true"},
	}
	if mode != "" {
		form.Set("parse_mode", mode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.methodURL("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

// SendDocument uploads a single document to the chat, with the document's
// caption attached if present.
// https://core.telegram.org/bots/api#senddocument
func (c *Client) SendDocument(ctx context.Context, chat ChatID, doc Document) error {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	if err := w.WriteField("chat_id", strconv.FormatInt(int64(chat), 10)); err != nil {
		return fmt.Errorf("failed to write chat_id: %w", err)
	}
	if doc.Caption != "" {
		if err := w.WriteField("caption", doc.Caption); err != nil {
			return fmt.Errorf("failed to write caption: %w", err)
		}
		if err := w.WriteField("parse_mode", parseMode); err != nil {
			return fmt.Errorf("failed to write parse_mode: %w", err)
		}
	}

	fw, err := w.CreateFormFile("document", doc.Filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(doc.Data); err != nil {
		return fmt.Errorf("failed to write file content: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.methodURL("sendDocument"), buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req)
}

// SendDocumentBatch uploads all documents to the chat as a single media
// group. Document order is preserved; per-item captions are kept as given.
// https://core.telegram.org/bots/api#sendmediagroup
func (c *Client) SendDocumentBatch(ctx context.Context, chat ChatID, docs []Document) error {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	media := make([]inputMediaDocument, len(docs))
	for i, doc := range docs {
		field := fmt.Sprintf("file%d", i)
		item := inputMediaDocument{
			Type:  "document",
			Media: "attach://" + field,
		}
		if doc.Caption != "" {
			item.Caption = doc.Caption
			item.ParseMode = parseMode
		}
		media[i] = item

		fw, err := w.CreateFormFile(field, doc.Filename)
		if err != nil {
			return fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := fw.Write(doc.Data); err != nil {
			return fmt.Errorf("failed to write file content: %w", err)
		}
	}

	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("failed to marshal media list: %w", err)
	}
	if err := w.WriteField("chat_id", strconv.FormatInt(int64(chat), 10)); err != nil {
		return fmt.Errorf("failed to write chat_id: %w", err)
	}
	if err := w.WriteField("media", string(mediaJSON)); err != nil {
		return fmt.Errorf("failed to write media list: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.methodURL("sendMediaGroup"), buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req)
}

// methodURL builds the URL of a Bot API method call.
func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%sbot%s/%s", c.apiPrefix, c.token, method)
}

// do executes the request and decodes the Bot API response envelope.
// Errors never contain the bot token.
func (c *Client) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %s", c.sanitize(err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read telegram response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("telegram returned status %d with unparseable body", resp.StatusCode)
	}
	if !result.Ok {
		return fmt.Errorf("telegram API error %d: %s", result.ErrorCode, result.Description)
	}
	return nil
}

// sanitize scrubs the bot token from error text so it never reaches logs or
// diagnostic messages.
func (c *Client) sanitize(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, "***")
}
