package line

import "strings"

// TextEvent is a free-text message event delivered by the platform.
type TextEvent struct {
	UserID     string
	Text       string
	ReplyToken string
}

// PostbackEvent is a structured button-click event. Data carries a
// "subject,action" pair (e.g. "2330,詳細資料").
type PostbackEvent struct {
	UserID     string
	Data       string
	ReplyToken string
}

// Subject returns the part of Data before the first comma.
func (e PostbackEvent) Subject() string {
	s, _, _ := strings.Cut(e.Data, ",")
	return strings.TrimSpace(s)
}

// Action returns the part of Data after the first comma.
func (e PostbackEvent) Action() string {
	_, a, _ := strings.Cut(e.Data, ",")
	return strings.TrimSpace(a)
}

// Message is a single outgoing message. Concrete types marshal to the
// platform's wire shape.
type Message interface {
	message()
}

type TextMessage struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	QuickReply *QuickReply `json:"quickReply,omitempty"`
}

func (TextMessage) message() {}

func NewTextMessage(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

func NewTextMessageWithQuickReply(text string, qr QuickReply) TextMessage {
	q := qr
	return TextMessage{Type: "text", Text: text, QuickReply: &q}
}

type ImageMessage struct {
	Type               string `json:"type"`
	OriginalContentURL string `json:"originalContentUrl"`
	PreviewImageURL    string `json:"previewImageUrl"`
}

func (ImageMessage) message() {}

func NewImageMessage(url string) ImageMessage {
	return ImageMessage{Type: "image", OriginalContentURL: url, PreviewImageURL: url}
}

type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

type QuickReplyItem struct {
	Type     string         `json:"type"`
	ImageURL string         `json:"imageUrl,omitempty"`
	Action   PostbackAction `json:"action"`
}

type PostbackAction struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Data        string `json:"data"`
	DisplayText string `json:"displayText,omitempty"`
}

// NewPostbackItem builds a quick-reply entry whose click comes back as a
// PostbackEvent with the given data.
func NewPostbackItem(label, data, displayText, imageURL string) QuickReplyItem {
	return QuickReplyItem{
		Type:     "action",
		ImageURL: strings.TrimSpace(imageURL),
		Action: PostbackAction{
			Type:        "postback",
			Label:       label,
			Data:        data,
			DisplayText: displayText,
		},
	}
}
