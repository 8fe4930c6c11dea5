package inbox

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // registers ISO-2022-JP, Shift_JIS and friends
	"github.com/emersion/go-message/mail"
)

// ParsedMail holds the parts of an alert mail that reports are built from.
type ParsedMail struct {
	From    string
	Subject string
	Text    string
	Date    time.Time
}

// ParseMessage reads a raw message. The first text/plain part wins; an
// HTML-only message is reduced to its text.
func ParseMessage(r io.Reader) (ParsedMail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return ParsedMail{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	var parsed ParsedMail
	parsed.Subject, _ = mr.Header.Subject()
	parsed.From = formatFrom(mr.Header)
	parsed.Date, _ = mr.Header.Date()

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return ParsedMail{}, fmt.Errorf("read part: %w", err)
		}
		if part == nil {
			// Undecodable part; move on to the next one.
			continue
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}

		switch contentType {
		case "text/plain":
			if parsed.Text != "" {
				continue
			}
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return ParsedMail{}, fmt.Errorf("read text part: %w", err)
			}
			parsed.Text = normalizeNewlines(string(body))
		case "text/html":
			if htmlBody != "" {
				continue
			}
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return ParsedMail{}, fmt.Errorf("read html part: %w", err)
			}
			htmlBody = string(body)
		}
	}

	if parsed.Text == "" && htmlBody != "" {
		text, err := htmlToText(htmlBody)
		if err != nil {
			return ParsedMail{}, err
		}
		parsed.Text = text
	}
	return parsed, nil
}

// formatFrom renders the From header as `Name <addr>`, or the bare address.
func formatFrom(h mail.Header) string {
	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		raw := h.Get("From")
		if dec, err := new(mime.WordDecoder).DecodeHeader(raw); err == nil {
			return strings.TrimSpace(dec)
		}
		return strings.TrimSpace(raw)
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name == "" {
			parts = append(parts, a.Address)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Address))
	}
	return strings.Join(parts, ", ")
}

func htmlToText(body string) (string, error) {
	body = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n").Replace(body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html part: %w", err)
	}
	doc.Find("script, style").Remove()
	doc.Find("p, div, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return strings.TrimSpace(normalizeNewlines(doc.Text())), nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
