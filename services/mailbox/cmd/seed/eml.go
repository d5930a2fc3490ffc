package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"
	"mailboxapi/services/mailbox/internal/app"
)

var htmlPolicy = newHTMLPolicy()

func newHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("p", "br", "div", "span", "table", "thead", "tbody", "tr", "th", "td")
	p.AllowAttrs("style").OnElements("span", "div", "p")
	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	return p
}

// parseEML converts a raw RFC 5322 message into an import request. Plain
// text parts win over HTML; HTML bodies are sanitized before storage.
func parseEML(r io.Reader) (app.ImportedEmail, error) {
	reader, err := mail.CreateReader(r)
	if err != nil {
		return app.ImportedEmail{}, fmt.Errorf("read message: %w", err)
	}
	defer reader.Close()

	out := app.ImportedEmail{}
	if subject, err := reader.Header.Subject(); err == nil {
		out.Subject = strings.TrimSpace(subject)
	}
	if from, err := reader.Header.AddressList("From"); err == nil && len(from) > 0 {
		out.From = strings.ToLower(from[0].Address)
	}
	if to, err := reader.Header.AddressList("To"); err == nil {
		addrs := make([]string, 0, len(to))
		for _, a := range to {
			addrs = append(addrs, strings.ToLower(a.Address))
		}
		out.To = strings.Join(addrs, ", ")
	}
	if date, err := reader.Header.Date(); err == nil && !date.IsZero() {
		out.Timestamp = date
	}

	var text, html []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read part: %w", err)
		}
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case mediaType == "" || strings.HasPrefix(mediaType, "text/plain"):
				text = append(text, strings.TrimSpace(string(body)))
			case strings.HasPrefix(mediaType, "text/html"):
				html = append(html, htmlPolicy.Sanitize(string(body)))
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			if strings.TrimSpace(filename) == "" {
				filename = "attachment"
			}
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return out, fmt.Errorf("read attachment %s: %w", filename, err)
			}
			out.Attachments = append(out.Attachments, app.ImportedAttachment{
				Filename:    filename,
				ContentType: contentType,
				Body:        body,
			})
		}
	}

	switch {
	case len(text) > 0:
		out.Body = strings.Join(text, "\n")
	case len(html) > 0:
		out.Body = strings.Join(html, "\n")
	}
	if out.From == "" {
		out.From = "unknown@localhost"
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	return out, nil
}
