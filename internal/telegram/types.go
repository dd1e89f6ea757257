package telegram

import "encoding/json"

// ChatID identifies a Telegram chat (user, group, or channel).
type ChatID int64

// Document is a file to be delivered to a chat, with an optional caption.
type Document struct {
	Data     []byte
	Filename string
	Caption  string
}

// apiResponse is the common envelope of every Bot API reply.
// https://core.telegram.org/bots/api#making-requests
type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
}

// inputMediaDocument is one item of a sendMediaGroup request.
// https://core.telegram.org/bots/api#inputmediadocument
type inputMediaDocument struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}
