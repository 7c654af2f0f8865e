package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"pricewatch/internal/config"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog/log"
)

// DefaultLookbackDays is how far back an inbox scan reaches. A little over
// a month so a monthly cadence cannot miss orders at the boundary.
const DefaultLookbackDays = 32

// maxMessages bounds one scan; order confirmations past this are caught by
// the next scan's wider overlap.
const maxMessages = 200

// Credentials are the mailbox login used for one scan. They come from
// Settings, not env config, so the user can change accounts at runtime.
type Credentials struct {
	Address  string
	Password string
}

// OrderImporter scans an inbox for order confirmations.
type OrderImporter interface {
	Scan(ctx context.Context, creds Credentials, daysBack int) ([]Order, error)
}

// IMAPImporter reads order confirmation emails over IMAP and extracts the
// ordered items directly from the message links. No storefront queries.
type IMAPImporter struct {
	addr string
}

func NewIMAPImporter(cfg *config.Config) *IMAPImporter {
	return &IMAPImporter{addr: fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort)}
}

func (i *IMAPImporter) Scan(ctx context.Context, creds Credentials, daysBack int) ([]Order, error) {
	if creds.Address == "" || creds.Password == "" {
		return nil, fmt.Errorf("importer: credentials not configured")
	}
	if daysBack <= 0 {
		daysBack = DefaultLookbackDays
	}

	c, err := client.DialTLS(i.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("importer: dial %s: %w", i.addr, err)
	}
	defer c.Logout()

	if err := c.Login(creds.Address, creds.Password); err != nil {
		return nil, fmt.Errorf("importer: login failed (app password required?): %w", err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("importer: select inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().AddDate(0, 0, -daysBack)
	criteria.Header.Add("From", "amazon")
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("importer: search: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxMessages {
		ids = ids[len(ids)-maxMessages:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	seenOrderIDs := make(map[string]bool)
	var orders []Order

	for msg := range messages {
		if ctx.Err() != nil {
			// Drain so the fetch goroutine can finish.
			continue
		}
		if msg.Envelope == nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			log.Warn().Err(err).Msg("importer: read message body")
			continue
		}

		date := msg.Envelope.Date
		if date.IsZero() {
			date = time.Now()
		}
		parsed := parseMessage(msg.Envelope.Subject, date, string(raw), plainTextPart(raw), seenOrderIDs)
		orders = append(orders, parsed...)
	}

	if err := <-done; err != nil {
		return orders, fmt.Errorf("importer: fetch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return orders, err
	}

	log.Info().Int("orders", len(orders)).Int("emails", len(ids)).Msg("importer: inbox scan complete")
	return orders, nil
}

// plainTextPart walks the MIME tree for the first text/plain part, used for
// quantity and price parsing. Returns "" when the message has none.
func plainTextPart(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	for {
		p, err := mr.NextPart()
		if err != nil {
			return ""
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, err := h.ContentType()
		if err != nil || !strings.EqualFold(ct, "text/plain") {
			continue
		}
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
