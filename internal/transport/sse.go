package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/logging"
)

// SSEClient is an HTTP client for the chat service's server-sent-event API.
//
// Wire shape: POST {base}/v1/conversations (start) or
// POST {base}/v1/conversations/{externalID}/messages (continue) returns a
// text/event-stream with the following events:
//
//	event: conversation  data: {"externalId": "...", "taskId": "..."}
//	event: identity      data: {"externalId": "...", "internalId": "..."}
//	event: token         data: {"text": "..."}
//	event: error         data: {"message": "...", "retryable": false}
//	event: done          data: {}
type SSEClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logging.Logger
}

// NewSSEClient creates a chat service client. The HTTP client carries no
// overall timeout: the stream's own lifetime bounds the request.
func NewSSEClient(baseURL, apiKey string, log *logging.Logger) *SSEClient {
	return &SSEClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
		log:     log.Sub("transport"),
	}
}

// messagePayload is the JSON body for both stream-opening calls. The
// continuing conversation is addressed by URL, not body.
type messagePayload struct {
	Query       string              `json:"query"`
	UserID      string              `json:"userId"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

// Start opens a new conversation stream.
func (c *SSEClient) Start(ctx context.Context, req StartRequest) (*Stream, error) {
	return c.open(ctx, c.baseURL+"/v1/conversations", messagePayload{
		Query:       req.Query,
		UserID:      req.UserID,
		Attachments: req.Attachments,
	})
}

// Continue streams a follow-up message in an existing conversation.
func (c *SSEClient) Continue(ctx context.Context, req ContinueRequest) (*Stream, error) {
	url := fmt.Sprintf("%s/v1/conversations/%s/messages", c.baseURL, req.ExternalID)
	return c.open(ctx, url, messagePayload{
		Query:       req.Query,
		UserID:      req.UserID,
		Attachments: req.Attachments,
	})
}

// StopTask asks the remote service to cancel a running task.
func (c *SSEClient) StopTask(ctx context.Context, taskID string) error {
	url := fmt.Sprintf("%s/v1/tasks/%s/stop", c.baseURL, taskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return Normalize(err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Normalize(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{
			Kind:    KindRemote,
			Message: fmt.Sprintf("stop task %s: status %d: %s", taskID, resp.StatusCode, body),
		}
	}
	return nil
}

// open issues the streaming POST and hands the response body to a reader
// goroutine that feeds the returned Stream.
func (c *SSEClient) open(ctx context.Context, url string, body messagePayload) (*Stream, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, Normalize(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, Normalize(err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, Normalize(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Kind:      KindRemote,
			Message:   fmt.Sprintf("status %d: %s", resp.StatusCode, respBody),
			Retryable: resp.StatusCode >= 500,
		}
	}

	stream := NewStream()
	go c.read(resp.Body, stream)

	c.log.Debug().Str("url", url).Str("user", body.UserID).Int("queryLen", len(body.Query)).Msg("stream opened")
	return stream, nil
}

func (c *SSEClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

type sseConversation struct {
	ExternalID string `json:"externalId"`
	TaskID     string `json:"taskId"`
}

type sseIdentity struct {
	ExternalID string `json:"externalId"`
	InternalID string `json:"internalId"`
}

func identityOf(id sseIdentity) domain.ConversationIdentity {
	return domain.ConversationIdentity{ExternalID: id.ExternalID, InternalID: id.InternalID}
}

type sseToken struct {
	Text string `json:"text"`
}

type sseError struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// read consumes the event stream until done/error/EOF and closes the stream.
func (c *SSEClient) read(body io.ReadCloser, stream *Stream) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event string
	start := time.Now()

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
			continue
		case !strings.HasPrefix(line, "data: "):
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		switch event {
		case "conversation":
			var conv sseConversation
			if err := json.Unmarshal([]byte(data), &conv); err != nil {
				continue
			}
			stream.SetTaskID(conv.TaskID)
			stream.SetExternalID(conv.ExternalID)
		case "identity":
			var id sseIdentity
			if err := json.Unmarshal([]byte(data), &id); err != nil {
				continue
			}
			stream.ResolveIdentity(identityOf(id))
		case "token":
			var tok sseToken
			if err := json.Unmarshal([]byte(data), &tok); err != nil {
				continue
			}
			if tok.Text != "" {
				stream.Emit(tok.Text)
			}
		case "error":
			var se sseError
			if err := json.Unmarshal([]byte(data), &se); err != nil {
				se.Message = data
			}
			stream.Close(&Error{Kind: KindRemote, Message: se.Message, Retryable: se.Retryable})
			return
		case "done":
			c.log.Debug().Dur("duration", time.Since(start)).Msg("stream complete")
			stream.Close(nil)
			return
		}
	}

	// Connection dropped before a done event.
	if err := scanner.Err(); err != nil {
		stream.Close(Normalize(err))
		return
	}
	stream.Close(nil)
}
