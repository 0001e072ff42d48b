package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Send mails a plain-text message from the configured mailbox. No retry
// beyond the transport's; the caller decides what a failed notification
// means.
func (c *Client) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	recips := make([]recipient, 0, len(to))
	for _, addr := range to {
		recips = append(recips, recipient{EmailAddress: emailAddress{Address: addr}})
	}
	payload, err := json.Marshal(sendMailRequest{
		Message: outgoingMessage{
			Subject:      subject,
			Body:         itemBody{ContentType: "Text", Content: body},
			ToRecipients: recips,
		},
		SaveToSentItems: true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.userURL()+"/sendMail", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("send mail failed: %s - %s", resp.Status, string(respBody))
	}
	return nil
}
