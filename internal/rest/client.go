package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/automarked/automarked-sub000/internal/models"
	"github.com/automarked/automarked-sub000/internal/observability"
)

// Client is the typed surface of the marketplace gateway REST API.
type Client interface {
	Messages(ctx context.Context, senderID, receiverID string) ([]models.Message, error)
	UserChats(ctx context.Context, userID string) ([]models.Chat, error)
	UnreadMessages(ctx context.Context, userID string) (int, error)
	Notifications(ctx context.Context, userID string) ([]models.Notification, error)
	UnreadNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, notificationID string) error
	GroupMembers(ctx context.Context, companyID string) ([]string, error)
	GroupAdd(ctx context.Context, companyID, userID string) ([]string, error)
	GroupRemove(ctx context.Context, companyID, userID string) ([]string, error)
	GroupClear(ctx context.Context, companyID string) ([]string, error)
}

// HTTPClient talks to the gateway over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewHTTPClient constructs a client for the given gateway base URL.
func NewHTTPClient(baseURL string, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("component", "rest_client").Logger(),
		tracer:  otel.Tracer("automarked-sync/rest"),
	}
}

var _ Client = (*HTTPClient)(nil)

// Messages returns the ordered history for the (sender, receiver) pair.
func (c *HTTPClient) Messages(ctx context.Context, senderID, receiverID string) ([]models.Message, error) {
	q := url.Values{"senderId": {senderID}, "receiverId": {receiverID}}
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	err := c.do(ctx, "chat.messages", http.MethodGet, "/chat/messages?"+q.Encode(), nil, &resp)
	return resp.Messages, err
}

// UserChats returns the conversation summaries for the user.
func (c *HTTPClient) UserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	q := url.Values{"userId": {userID}}
	var resp struct {
		Chats []models.Chat `json:"chats"`
	}
	err := c.do(ctx, "chat.user_chats", http.MethodGet, "/chat/user-chats?"+q.Encode(), nil, &resp)
	return resp.Chats, err
}

// UnreadMessages returns the user's total unread-message count across all
// conversations.
func (c *HTTPClient) UnreadMessages(ctx context.Context, userID string) (int, error) {
	var resp struct {
		TotalUnreadMessages int `json:"totalUnreadMessages"`
	}
	err := c.do(ctx, "chat.unread", http.MethodGet, "/chat/unread/"+url.PathEscape(userID), nil, &resp)
	return resp.TotalUnreadMessages, err
}

// Notifications returns the user's full notification list in the order the
// gateway stores it (chronological).
func (c *HTTPClient) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var resp []models.Notification
	err := c.do(ctx, "notifications.list", http.MethodGet, "/notifications/"+url.PathEscape(userID), nil, &resp)
	return resp, err
}

// UnreadNotifications returns just the unread subset.
func (c *HTTPClient) UnreadNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var resp []models.Notification
	err := c.do(ctx, "notifications.unread", http.MethodGet, "/notifications/unread/"+url.PathEscape(userID), nil, &resp)
	return resp, err
}

// MarkNotificationsRead marks every notification of the user as read.
func (c *HTTPClient) MarkNotificationsRead(ctx context.Context, userID string) error {
	return c.do(ctx, "notifications.mark_read", http.MethodPatch, "/notifications/read/"+url.PathEscape(userID), nil, nil)
}

// DeleteNotification deletes a single notification by id.
func (c *HTTPClient) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	path := "/notifications/" + url.PathEscape(userID) + "/" + url.PathEscape(notificationID)
	return c.do(ctx, "notifications.delete", http.MethodDelete, path, nil, nil)
}

// GroupMembers returns the subscriber list of a company's notification group.
func (c *HTTPClient) GroupMembers(ctx context.Context, companyID string) ([]string, error) {
	var resp groupResponse
	err := c.do(ctx, "group.members", http.MethodGet, "/notifications-group/"+url.PathEscape(companyID), nil, &resp)
	return resp.Notifications, err
}

// GroupAdd subscribes a user to the company group and returns the new list.
func (c *HTTPClient) GroupAdd(ctx context.Context, companyID, userID string) ([]string, error) {
	var resp groupResponse
	err := c.do(ctx, "group.add", http.MethodPost, "/notifications-group/add", groupRequest{CompanyID: companyID, UserID: userID}, &resp)
	return resp.Notifications, err
}

// GroupRemove unsubscribes a user and returns the new list.
func (c *HTTPClient) GroupRemove(ctx context.Context, companyID, userID string) ([]string, error) {
	var resp groupResponse
	err := c.do(ctx, "group.remove", http.MethodPost, "/notifications-group/remove", groupRequest{CompanyID: companyID, UserID: userID}, &resp)
	return resp.Notifications, err
}

// GroupClear removes every subscriber of the company group.
func (c *HTTPClient) GroupClear(ctx context.Context, companyID string) ([]string, error) {
	var resp groupResponse
	err := c.do(ctx, "group.clear", http.MethodPost, "/notifications-group/delete", groupRequest{CompanyID: companyID}, &resp)
	return resp.Notifications, err
}

type groupRequest struct {
	CompanyID string `json:"companyId"`
	UserID    string `json:"userId,omitempty"`
}

type groupResponse struct {
	Notifications []string `json:"notifications"`
}

func (c *HTTPClient) do(ctx context.Context, operation, method, path string, body any, out any) error {
	ctx, span := c.tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("gateway.path", path),
	))
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = strings.NewReader(string(payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		observability.IncRESTRequest(operation, err)
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.IncRESTRequest(operation, err)
		span.RecordError(err)
		c.logger.Error().Err(err).Str("operation", operation).Msg("gateway request failed")
		return fmt.Errorf("gateway %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("gateway %s: unexpected status %d", operation, resp.StatusCode)
		observability.IncRESTRequest(operation, err)
		span.RecordError(err)
		c.logger.Error().Int("status", resp.StatusCode).Str("operation", operation).Msg("gateway request rejected")
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			observability.IncRESTRequest(operation, err)
			return fmt.Errorf("gateway %s: decode response: %w", operation, err)
		}
	}
	observability.IncRESTRequest(operation, nil)
	return nil
}
