package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/chartermatch/internal/entity"
	"github.com/ignite/chartermatch/internal/livelog"
	"github.com/ignite/chartermatch/internal/pipeline"
)

// bounceMarkers flags delivery-failure notices by subject. These are
// provider chatter, not market traffic; they are deleted instead of queued.
var bounceMarkers = []string{
	"undeliver",
	"not read",
	"rejected",
	"failure",
	"couldn't be delivered",
}

func isBounceSubject(subject string) bool {
	low := strings.ToLower(subject)
	for _, marker := range bounceMarkers {
		if strings.Contains(low, marker) {
			return true
		}
	}
	return false
}

// maxRecipients caps the recipients field; some circulars carry enormous
// address lists and only the head is worth keeping.
const maxRecipients = 50

// listURL builds the first-page message listing.
func (c *Client) listURL() string {
	clauses := make([]string, 0, len(c.folders))
	for _, f := range c.folders {
		clauses = append(clauses, fmt.Sprintf("parentFolderId eq '%s'", f))
	}
	// The $orderby property must lead the filter or Graph rejects the
	// query, hence the epoch guard clause.
	filter := fmt.Sprintf("receivedDateTime ge 1900-01-01T00:00:00Z and (%s)",
		strings.Join(clauses, " or "))
	if c.unseenOnly {
		filter += " and isRead eq false"
	}
	order := "receivedDateTime asc"
	if c.orderDesc {
		order = "receivedDateTime desc"
	}

	params := url.Values{}
	params.Set("$top", fmt.Sprintf("%d", c.batchSize))
	params.Set("$select", "id,subject,from,sender,toRecipients,receivedDateTime,isRead,body")
	params.Set("$filter", filter)
	params.Set("$orderby", order)
	return c.userURL() + "/messages?" + params.Encode()
}

// ReadPage fetches one page of the mailbox listing: the first page when next
// is empty, otherwise the page behind the continuation link. Bounce notices
// are stripped from the result and deleted from the mailbox.
func (c *Client) ReadPage(ctx context.Context, next string) (*pipeline.ReadBatch, error) {
	u := next
	if u == "" {
		u = c.listURL()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	// Plain-text bodies; HTML markup would poison the extraction prompt.
	req.Header.Set("Prefer", `outlook.body-content-type="text"`)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading message listing: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("message listing failed: %s - %s", resp.Status, string(body))
	}
	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parsing message listing: %w", err)
	}

	batch := &pipeline.ReadBatch{Next: list.NextLink}
	var trashIDs []string
	for _, m := range list.Value {
		if isBounceSubject(m.Subject) {
			trashIDs = append(trashIDs, m.ID)
			continue
		}
		batch.Messages = append(batch.Messages, normalizeMessage(m))
	}
	if len(trashIDs) > 0 {
		if err := c.DeleteMessages(ctx, trashIDs); err != nil {
			c.log.Errorf("deleting %d bounce emails failed: %v", len(trashIDs), err)
		} else {
			c.log.Report(livelog.ChanTrash, "removed %d bounce emails from the mailbox", len(trashIDs))
		}
	}
	return batch, nil
}

// normalizeMessage flattens a Graph message into the pipeline's email shape.
// Missing fields become empty strings, never errors.
func normalizeMessage(m message) *entity.Email {
	e := &entity.Email{
		ProviderMessageID: m.ID,
		Subject:           m.Subject,
		DateReceived:      m.ReceivedDateTime,
		IsRead:            m.IsRead,
	}
	if m.From != nil {
		e.Sender = m.From.EmailAddress.Address
	} else if m.Sender != nil {
		e.Sender = m.Sender.EmailAddress.Address
	}
	recips := m.ToRecipients
	if len(recips) > maxRecipients {
		recips = recips[:maxRecipients]
	}
	addrs := make([]string, 0, len(recips))
	for _, r := range recips {
		if r.EmailAddress.Address != "" {
			addrs = append(addrs, r.EmailAddress.Address)
		}
	}
	e.Recipients = strings.Join(addrs, ",")
	if m.Body != nil {
		e.Body = m.Body.Content
	}
	return e
}
