// Package oracle is the chat-completions client behind the extraction stage.
// One call per email: the broker-domain system prompt plus the raw body go
// up, a JSON envelope of loosely typed ship and cargo entries comes back.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/chartermatch/internal/entity"
	"github.com/ignite/chartermatch/internal/pkg/httpretry"
)

// DefaultBaseURL is the hosted OpenAI endpoint. Overridden in tests and by
// the local stub.
const DefaultBaseURL = "https://api.openai.com"

// DefaultModel is the cheapest model with reliable JSON-object output.
const DefaultModel = "gpt-3.5-turbo-1106"

// Config carries the client settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client calls the chat-completions endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	http        *httpretry.RetryClient
}

// NewClient validates the config and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		http:        httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout}, 3),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Entry is one model-reported entity. The model emits strings, bare numbers
// or nested objects depending on the email, so every field is decoded
// loosely and coerced to text; Raw keeps the original object for failure
// reports.
type Entry struct {
	Type         string
	Name         string
	Status       string
	Month        string
	Capacity     string
	Quantity     string
	Commission   string
	Location     entity.Location
	LocationFrom entity.Location
	LocationTo   entity.Location

	Raw map[string]interface{}
}

// ExtractEntities runs one email body through the model and returns the
// decoded entries. An empty entries list is a valid answer, not an error.
func (c *Client) ExtractEntities(ctx context.Context, body string) ([]*Entry, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: body},
		},
		Temperature:    c.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion failed: %s - %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("decoding chat completion: %w", err)
	}
	if cr.Error != nil {
		return nil, fmt.Errorf("chat completion error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	return parseEntries(cr.Choices[0].Message.Content)
}

type envelope struct {
	Entries []map[string]interface{} `json:"entries"`
}

// parseEntries decodes the model's JSON content into entries. Content that
// is not a JSON object with an entries list is an error; the caller confines
// it to the one email.
func parseEntries(content string) ([]*Entry, error) {
	var env envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, fmt.Errorf("model returned non-JSON content: %w", err)
	}
	out := make([]*Entry, 0, len(env.Entries))
	for _, m := range env.Entries {
		out = append(out, entryFromMap(m))
	}
	return out, nil
}

func entryFromMap(m map[string]interface{}) *Entry {
	return &Entry{
		Type:         strings.ToLower(asString(m["type"])),
		Name:         asString(m["name"]),
		Status:       asString(m["status"]),
		Month:        asString(m["month"]),
		Capacity:     asString(m["capacity"]),
		Quantity:     asString(m["quantity"]),
		Commission:   asString(m["commission"]),
		Location:     asLocation(m["location"]),
		LocationFrom: asLocation(m["location_from"]),
		LocationTo:   asLocation(m["location_to"]),
		Raw:          m,
	}
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]interface{}:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// asLocation accepts the nested {port, sea, ocean} object the prompt asks
// for, or a bare string, which is treated as a port name.
func asLocation(v interface{}) entity.Location {
	switch t := v.(type) {
	case map[string]interface{}:
		return entity.Location{
			Port:  asString(t["port"]),
			Sea:   asString(t["sea"]),
			Ocean: asString(t["ocean"]),
		}
	case string:
		return entity.Location{Port: strings.TrimSpace(t)}
	default:
		return entity.Location{}
	}
}
