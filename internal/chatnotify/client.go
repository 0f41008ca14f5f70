package chatnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Notifier informs the external chat subsystem of new invitations. This
// core only emits the notification; chat-message creation stays with the
// chat collaborator.
type Notifier interface {
	NotifyInvite(ctx context.Context, inviteeID, inviterNickname, sessionID string) error
}

// Nop is used when no chat endpoint is configured.
type Nop struct{}

func (Nop) NotifyInvite(context.Context, string, string, string) error { return nil }

type invitePayload struct {
	InviteeID       string `json:"inviteeId"`
	InviterNickname string `json:"inviterNickname"`
	GameID          string `json:"gameId"`
}

// Client posts invite notifications to the chat service.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) NotifyInvite(ctx context.Context, inviteeID, inviterNickname, sessionID string) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/invites", invitePayload{
		InviteeID:       inviteeID,
		InviterNickname: inviterNickname,
		GameID:          sessionID,
	})
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	timeout := c.defaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < timeout {
			timeout = rem
		}
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.http.DoTimeout(req, resp, timeout); err != nil {
			lastErr = err
			continue
		}
		code := resp.StatusCode()
		if code >= 200 && code < 300 {
			return nil
		}
		lastErr = fmt.Errorf("chat notify %s: status %d", path, code)
		if code < 500 {
			return lastErr
		}
	}
	return lastErr
}
