// Package mailsource fetches raw emails from an IMAP mailbox.
package mailsource

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/config"
	"mailtriage/pkg/logger"
)

// IMAPSource opens a new connection per Fetch.
type IMAPSource struct {
	cfg    config.IMAPConfig
	logger *zap.Logger
}

func NewIMAPSource(cfg config.IMAPConfig, l *zap.Logger) *IMAPSource {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &IMAPSource{cfg: cfg, logger: logger.OrNop(l)}
}

func (s *IMAPSource) dial() (*client.Client, error) {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	var (
		c   *client.Client
		err error
	)
	if s.cfg.TLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to imap server %s: %w", addr, err)
	}
	c.Timeout = s.cfg.Timeout

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login as %s: %w", s.cfg.Username, err)
	}
	return c, nil
}

// Fetch returns up to limit of the newest messages received since the
// given day. Messages that fail to parse are logged and skipped.
func (s *IMAPSource) Fetch(ctx context.Context, since time.Time, limit int) ([]model.RawEmail, error) {
	l := logger.WithTrace(ctx, s.logger)

	c, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Logout(); err != nil {
			l.Debug("imap logout failed", zap.Error(err))
		}
	}()

	// unblock network calls when the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if _, err := c.Select(s.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("select %s: %w", s.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search since %s: %w", since.Format(model.DateLayout), err)
	}
	if len(seqNums) == 0 {
		return []model.RawEmail{}, nil
	}

	sort.Slice(seqNums, func(i, j int) bool { return seqNums[i] < seqNums[j] })
	if limit > 0 && len(seqNums) > limit {
		seqNums = seqNums[len(seqNums)-limit:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	emails := make([]model.RawEmail, 0, len(seqNums))
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			l.Warn("imap message without body", zap.Uint32("seq_num", msg.SeqNum))
			continue
		}
		email, err := ParseMessage(body)
		if err != nil {
			l.Warn("failed to parse email", zap.Uint32("seq_num", msg.SeqNum), zap.Error(err))
			continue
		}
		if email.ReceivedAt.IsZero() && msg.Envelope != nil {
			email.ReceivedAt = msg.Envelope.Date
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch messages: %w", ctx.Err())
		}
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	l.Info("fetched emails",
		zap.String("mailbox", s.cfg.Mailbox),
		zap.Int("matched", len(seqNums)),
		zap.Int("parsed", len(emails)),
	)
	return emails, nil
}
