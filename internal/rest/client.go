// Package rest implements the client for the server's HTTP API. All calls
// carry the session bearer token and a UUID correlation id; responses decode
// straight into store types.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osilveira/courier/internal/store"
)

// Client calls the server's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a REST client for the given base URL and bearer token.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListChats fetches the full chat list snapshot.
func (c *Client) ListChats(ctx context.Context) ([]store.Chat, error) {
	var chats []store.Chat
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// ListBlocked fetches the ids of users blocked by the current user.
func (c *Client) ListBlocked(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.do(ctx, http.MethodGet, "/users/blocked", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListMessages fetches the chat's messages; a non-empty query filters them
// server-side (in-chat search).
func (c *Client) ListMessages(ctx context.Context, chatID, query string) ([]store.Message, error) {
	path := "/chats/" + url.PathEscape(chatID) + "/messages"
	if query != "" {
		path += "?query=" + url.QueryEscape(query)
	}
	var msgs []store.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

type sendMessageRequest struct {
	Text        string             `json:"text"`
	Attachments []store.Attachment `json:"attachments,omitempty"`
}

// SendMessage posts a message and returns the server-assigned message. The
// caller must not append it locally; the push echo is the single append path.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, attachments []store.Attachment) (store.Message, error) {
	var msg store.Message
	err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/messages",
		sendMessageRequest{Text: text, Attachments: attachments}, &msg)
	return msg, err
}

type createChatRequest struct {
	ParticipantID string `json:"participantId"`
}

// CreateChat creates (or returns the existing) 1:1 chat with the given user.
func (c *Client) CreateChat(ctx context.Context, userID string) (store.Chat, error) {
	var chat store.Chat
	err := c.do(ctx, http.MethodPost, "/chats", createChatRequest{ParticipantID: userID}, &chat)
	return chat, err
}

type createGroupChatRequest struct {
	ParticipantIDs []string `json:"participantIds"`
	Name           string   `json:"name,omitempty"`
}

// CreateGroupChat creates a group chat with the given members.
func (c *Client) CreateGroupChat(ctx context.Context, userIDs []string, name string) (store.Chat, error) {
	var chat store.Chat
	err := c.do(ctx, http.MethodPost, "/chats/group", createGroupChatRequest{ParticipantIDs: userIDs, Name: name}, &chat)
	return chat, err
}

// MarkRead advances the server-side read cursor for the chat.
func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/read", nil, nil)
}

// RecallMessage recalls a sent message.
func (c *Client) RecallMessage(ctx context.Context, chatID, messageID string) error {
	return c.do(ctx, http.MethodPost,
		"/chats/"+url.PathEscape(chatID)+"/messages/"+url.PathEscape(messageID)+"/recall", nil, nil)
}

// Block blocks the given user.
func (c *Client) Block(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/block", nil, nil)
}

// Unblock unblocks the given user.
func (c *Client) Unblock(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID)+"/block", nil, nil)
}

// LeaveGroup removes the current user from the group.
func (c *Client) LeaveGroup(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/leave", nil, nil)
}

// KickMember removes another member from the group (admin action).
func (c *Client) KickMember(ctx context.Context, chatID, userID string) error {
	return c.do(ctx, http.MethodDelete,
		"/chats/"+url.PathEscape(chatID)+"/members/"+url.PathEscape(userID), nil, nil)
}

// DeleteGroup dissolves the group (admin action).
func (c *Client) DeleteGroup(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/chats/"+url.PathEscape(chatID), nil, nil)
}

type addMembersRequest struct {
	UserIDs []string `json:"userIds"`
}

// AddMembers adds members to the group (admin action).
func (c *Client) AddMembers(ctx context.Context, chatID string, userIDs []string) error {
	return c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/members",
		addMembersRequest{UserIDs: userIDs}, nil)
}

// SearchUsers searches the user directory.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]store.User, error) {
	var users []store.User
	if err := c.do(ctx, http.MethodGet, "/users/search?q="+url.QueryEscape(query), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
