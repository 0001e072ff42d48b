package graph

// Wire types for the slice of the Graph API this client touches.

type emailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type message struct {
	ID               string      `json:"id"`
	Subject          string      `json:"subject"`
	From             *recipient  `json:"from"`
	Sender           *recipient  `json:"sender"`
	ToRecipients     []recipient `json:"toRecipients"`
	ReceivedDateTime string      `json:"receivedDateTime"`
	IsRead           bool        `json:"isRead"`
	Body             *itemBody   `json:"body"`
}

type listResponse struct {
	Value    []message `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

type batchStep struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
}

type batchRequest struct {
	Requests []batchStep `json:"requests"`
}

type batchStepResult struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

type batchResponse struct {
	Responses []batchStepResult `json:"responses"`
}

type sendMailRequest struct {
	Message         outgoingMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

type outgoingMessage struct {
	Subject      string      `json:"subject"`
	Body         itemBody    `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
}
