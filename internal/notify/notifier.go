package notify

import "context"

// Attachment references a file on disk. The file is looked up when the
// message is sent, not when it is built.
type Attachment struct {
	FilePath    string `json:"file_path"`
	ContentType string `json:"content_type"`
	DisplayName string `json:"display_name,omitempty"`
}

// Message is a single HTML email to one recipient.
type Message struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	HTMLBody    string       `json:"html_body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Notifier delivers a message. Implementations report failure as a
// NOTIFICATION error and leave the fatality decision to the caller.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
