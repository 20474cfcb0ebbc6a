package mailsource

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"mailtriage/internal/model"
)

const maxBodyBytes = 1 << 20

var (
	angleAddrRe = regexp.MustCompile(`<(.+?)>`)
	leadNameRe  = regexp.MustCompile(`^([^<]+)`)
)

// ParseSender splits a From header value into display name and address.
// Without angle brackets the whole value is the address. A missing name is
// reported as "Unknown".
func ParseSender(from string) (name, address string) {
	from = strings.TrimSpace(from)
	address = from
	if m := angleAddrRe.FindStringSubmatch(from); m != nil {
		address = strings.TrimSpace(m[1])
	}
	name = "Unknown"
	if m := leadNameRe.FindStringSubmatch(from); m != nil {
		if n := strings.Trim(strings.TrimSpace(m[1]), `"`); n != "" {
			name = n
		}
	}
	return name, address
}

// ParseMessage reads an RFC 5322 message. The body is the first text/plain
// part, or the first other text part when there is none. A missing
// Message-ID is replaced with a random UUID; an unparseable Date leaves
// ReceivedAt zero.
func ParseMessage(r io.Reader) (model.RawEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return model.RawEmail{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	var email model.RawEmail
	h := mr.Header

	if email.Subject, err = h.Subject(); err != nil {
		email.Subject = h.Get("Subject")
	}

	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		email.SenderEmail = addrs[0].Address
		email.Sender = addrs[0].Name
		if email.Sender == "" {
			email.Sender = "Unknown"
		}
	} else {
		email.Sender, email.SenderEmail = ParseSender(h.Get("From"))
	}

	if date, err := h.Date(); err == nil {
		email.ReceivedAt = date
	}

	if id, err := h.MessageID(); err == nil && id != "" {
		email.ID = id
	} else {
		email.ID = uuid.NewString()
	}

	var plain, other string
	var plainFound, otherFound bool
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if plainFound || otherFound {
				break
			}
			return email, fmt.Errorf("read part of %s: %w", email.ID, err)
		}

		ih, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, err := ih.ContentType()
		if err != nil {
			ct, _, _ = mime.ParseMediaType(ih.Get("Content-Type"))
		}
		if ct == "" {
			ct = "text/plain"
		}

		switch {
		case ct == "text/plain" && !plainFound:
			b, err := io.ReadAll(io.LimitReader(p.Body, maxBodyBytes))
			if err != nil {
				return email, fmt.Errorf("read body of %s: %w", email.ID, err)
			}
			plain, plainFound = string(b), true
		case strings.HasPrefix(ct, "text/") && !otherFound:
			b, err := io.ReadAll(io.LimitReader(p.Body, maxBodyBytes))
			if err != nil {
				return email, fmt.Errorf("read body of %s: %w", email.ID, err)
			}
			other, otherFound = string(b), true
		}
		if plainFound {
			break
		}
	}

	if plainFound {
		email.Body = plain
	} else {
		email.Body = other
	}
	return email, nil
}
