// Package client is the Go client for the bargain REST API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"farmart-bargain/services/bargain-service/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type Client struct {
	http *resty.Client
	auth *AuthSession
}

func New(baseURL string, auth *AuthSession) *Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(30 * time.Second)
	c.SetHeader("Accept", "application/json")
	if auth == nil {
		auth = NewAuthSession("")
	}
	return &Client{http: c, auth: auth}
}

func (c *Client) Auth() *AuthSession { return c.auth }

type SessionView struct {
	Session  *domain.NegotiationSession `json:"session"`
	Messages []*domain.Message          `json:"messages"`
}

type createSessionBody struct {
	AnimalID    string          `json:"animal_id"`
	OfferAmount decimal.Decimal `json:"offer_amount"`
	Message     string          `json:"message,omitempty"`
}

type counterBody struct {
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message,omitempty"`
}

func (c *Client) CreateSession(ctx context.Context, animalID string, offer decimal.Decimal, message string) (*domain.NegotiationSession, error) {
	var out SessionView
	err := c.do(ctx, http.MethodPost, "/bargain/sessions", c.auth.Token(), createSessionBody{animalID, offer, message}, &out, 0)
	return out.Session, err
}

func (c *Client) ListSessions(ctx context.Context) ([]*domain.NegotiationSession, error) {
	var out struct {
		Sessions []*domain.NegotiationSession `json:"sessions"`
	}
	err := c.do(ctx, http.MethodGet, "/bargain/sessions", c.auth.Token(), nil, &out, 0)
	return out.Sessions, err
}

// GetSession fetches a session with the messages after since; since zero
// fetches the whole timeline.
func (c *Client) GetSession(ctx context.Context, id string, since int64) (*SessionView, error) {
	path := "/bargain/sessions/" + url.PathEscape(id)
	if since > 0 {
		path += "?since=" + strconv.FormatInt(since, 10)
	}
	var out SessionView
	if err := c.do(ctx, http.MethodGet, path, c.auth.Token(), nil, &out, 0); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage posts a chat message and returns the session's updated
// message list.
func (c *Client) SendMessage(ctx context.Context, id, content string) ([]*domain.Message, error) {
	var out struct {
		Messages []*domain.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodPost, sessionPath(id, "messages"), c.auth.Token(), map[string]string{"content": content}, &out, 0)
	return out.Messages, err
}

// Counter proposes amount. A positive ifVersion makes the server refuse the
// counter if the session changed since that version.
func (c *Client) Counter(ctx context.Context, id string, amount decimal.Decimal, message string, ifVersion int) (*domain.NegotiationSession, error) {
	var out SessionView
	err := c.do(ctx, http.MethodPost, sessionPath(id, "counter"), c.auth.Token(), counterBody{amount, message}, &out, ifVersion)
	return out.Session, err
}

func (c *Client) Accept(ctx context.Context, id string, ifVersion int) (*domain.NegotiationSession, error) {
	var out SessionView
	err := c.do(ctx, http.MethodPut, sessionPath(id, "accept"), c.auth.Token(), nil, &out, ifVersion)
	return out.Session, err
}

func (c *Client) Reject(ctx context.Context, id, reason string, ifVersion int) (*domain.NegotiationSession, error) {
	var body any
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	var out SessionView
	err := c.do(ctx, http.MethodPut, sessionPath(id, "reject"), c.auth.Token(), body, &out, ifVersion)
	return out.Session, err
}

func (c *Client) BridgeToOrder(ctx context.Context, id string) (*domain.Order, error) {
	var out struct {
		Order *domain.Order `json:"order"`
	}
	err := c.do(ctx, http.MethodPost, sessionPath(id, "order"), c.auth.Token(), nil, &out, 0)
	return out.Order, err
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var out struct {
		Order *domain.Order `json:"order"`
	}
	err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), c.auth.Token(), nil, &out, 0)
	return out.Order, err
}

func (c *Client) PutListing(ctx context.Context, animalID string, price decimal.Decimal) (*domain.Listing, error) {
	var out struct {
		Listing *domain.Listing `json:"listing"`
	}
	body := map[string]decimal.Decimal{"price": price}
	err := c.do(ctx, http.MethodPut, "/listings/"+url.PathEscape(animalID), c.auth.Token(), body, &out, 0)
	return out.Listing, err
}

// Me returns the user id of the session's token.
func (c *Client) Me(ctx context.Context) (string, error) {
	return c.VerifyToken(ctx, c.auth.Token())
}

func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	var out struct {
		UserID string `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &out, 0); err != nil {
		return "", err
	}
	return out.UserID, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, result any, ifVersion int) error {
	req := c.http.R().
		SetContext(ctx).
		SetError(&APIError{})
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	if ifVersion > 0 {
		req.SetHeader("If-Match", `"`+strconv.Itoa(ifVersion)+`"`)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetworkFailure, method, path, err)
	}
	if resp.IsError() {
		apiErr, _ := resp.Error().(*APIError)
		if apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}
	return nil
}

func sessionPath(id, action string) string {
	return "/bargain/sessions/" + url.PathEscape(id) + "/" + action
}
