package models

import "time"

// MediaRef points at a file held by the chat platform.
type MediaRef struct {
	FileID   string
	FileName string // declared by the sender, may be empty
	MimeType string
}

// Content is the closed set of message kinds the bridge understands.
// Implementations: TextContent, PhotoContent, DocumentContent.
type Content interface {
	isContent()
}

// TextContent is a plain text message.
type TextContent struct {
	Text string
}

// PhotoContent carries every resolution the platform offered for one photo.
type PhotoContent struct {
	Caption string
	Photos  []MediaRef
}

// DocumentContent carries a single file attachment.
type DocumentContent struct {
	Caption  string
	Document MediaRef
}

func (TextContent) isContent()     {}
func (PhotoContent) isContent()    {}
func (DocumentContent) isContent() {}

// IncomingMessage is one message delivered by the inbound feed.
type IncomingMessage struct {
	ID       int // platform message id, used to thread replies
	ChatID   int64
	ChatName string
	Sender   string
	Date     time.Time
	Content  Content
}

// Body returns the text or caption of the message.
func (m IncomingMessage) Body() string {
	switch c := m.Content.(type) {
	case TextContent:
		return c.Text
	case PhotoContent:
		return c.Caption
	case DocumentContent:
		return c.Caption
	default:
		return ""
	}
}

// Attachments returns the media to download, in fetch order.
func (m IncomingMessage) Attachments() []MediaRef {
	switch c := m.Content.(type) {
	case PhotoContent:
		return c.Photos
	case DocumentContent:
		return []MediaRef{c.Document}
	default:
		return nil
	}
}
