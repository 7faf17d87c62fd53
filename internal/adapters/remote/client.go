// Package remote consumes another instance of the vehicle service API and
// exposes it as a session store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/parksys/parking-service/internal/config"
	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/internal/logging"
)

const defaultTimeout = 10 * time.Second

// EntryRequest is the body of POST /vehicles/entry/{plate}.
type EntryRequest struct {
	VehicleType   string  `json:"vehicleType"`
	OwnerName     string  `json:"ownerName,omitempty"`
	Phone         string  `json:"phone,omitempty"`
	InvoiceNumber string  `json:"invoiceNumber,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	EntryTime     string  `json:"entryTime,omitempty"`
}

// Envelope is the response body shared by every vehicle endpoint.
type Envelope struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message,omitempty"`
	Detail   string                  `json:"detail,omitempty"`
	Vehicle  *domain.VehicleSession  `json:"vehicle,omitempty"`
	Vehicles []domain.VehicleSession `json:"vehicles,omitempty"`
	History  []domain.VehicleSession `json:"history,omitempty"`
	Errors   map[string]string       `json:"errors,omitempty"`
}

func (e Envelope) errorMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Detail
}

// Client is a ports.SessionStore backed by the remote vehicle service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

var _ ports.SessionStore = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends the token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cb:         config.NewCircuitBreaker(config.BreakerVehicleService),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Open(ctx context.Context, session domain.VehicleSession) (domain.VehicleSession, error) {
	body := EntryRequest{
		VehicleType:   string(session.VehicleType),
		OwnerName:     session.OwnerName,
		Phone:         session.Phone,
		InvoiceNumber: session.InvoiceNumber,
		Amount:        session.Amount,
		EntryTime:     session.DeclaredEntry,
	}
	env, err := c.do(ctx, http.MethodPost, "/vehicles/entry/"+url.PathEscape(session.Plate), body, session.Plate)
	if err != nil {
		return domain.VehicleSession{}, err
	}
	if env.Vehicle == nil {
		return session, nil
	}
	return *env.Vehicle, nil
}

func (c *Client) Close(ctx context.Context, closed domain.VehicleSession) (domain.VehicleSession, error) {
	env, err := c.do(ctx, http.MethodPut, "/vehicles/exit/"+url.PathEscape(closed.Plate), nil, closed.Plate)
	if err != nil {
		return domain.VehicleSession{}, err
	}
	if env.Vehicle == nil {
		return closed, nil
	}
	return *env.Vehicle, nil
}

func (c *Client) Active(ctx context.Context) ([]domain.VehicleSession, error) {
	env, err := c.do(ctx, http.MethodGet, "/vehicles/active", nil, "")
	if err != nil {
		return nil, err
	}
	return nonNil(env.Vehicles), nil
}

func (c *Client) History(ctx context.Context) ([]domain.VehicleSession, error) {
	env, err := c.do(ctx, http.MethodGet, "/vehicles/history", nil, "")
	if err != nil {
		return nil, err
	}
	return nonNil(env.History), nil
}

func (c *Client) Reset(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/vehicles", nil, "")
	return err
}

// Ping checks that the vehicle service answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, "")
	return err
}

// do sends one request. Transport failures and 5xx answers trip the breaker;
// 4xx answers are mapped to domain errors without counting against it.
func (c *Client) do(ctx context.Context, method, path string, body any, plate string) (Envelope, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return Envelope{}, fmt.Errorf("encode request: %w", err)
		}
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &domain.NetworkError{Err: err}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, &domain.NetworkError{StatusCode: resp.StatusCode, Err: err}
		}

		reply := response{status: resp.StatusCode}
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &reply.env); err != nil && resp.StatusCode < 300 {
				return nil, &domain.NetworkError{
					StatusCode: resp.StatusCode,
					Message:    "invalid response from the vehicle service",
					Err:        err,
				}
			}
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &domain.NetworkError{StatusCode: resp.StatusCode, Message: reply.env.errorMessage()}
		}
		return reply, nil
	})
	if err != nil {
		var netErr *domain.NetworkError
		if !errors.As(err, &netErr) {
			err = &domain.NetworkError{Err: err}
		}
		logging.FromContext(ctx).Warn().Err(err).
			Str("method", method).
			Str("path", path).
			Msg("vehicle service call failed")
		return Envelope{}, err
	}

	reply := result.(response)
	return reply.env, mapStatus(reply, plate)
}

type response struct {
	status int
	env    Envelope
}

func mapStatus(r response, plate string) error {
	switch {
	case r.status == http.StatusConflict:
		return &domain.DuplicatePlateError{Plate: plate}
	case r.status == http.StatusNotFound:
		return &domain.NotFoundError{Resource: "vehicle", ID: plate}
	case r.status == http.StatusBadRequest || r.status == http.StatusUnprocessableEntity:
		if len(r.env.Errors) > 0 {
			return &domain.ValidationError{Fields: r.env.Errors}
		}
		return &domain.NetworkError{StatusCode: r.status, Message: r.env.errorMessage()}
	case r.status >= http.StatusMultipleChoices:
		return &domain.NetworkError{StatusCode: r.status, Message: r.env.errorMessage()}
	case !r.env.Success && r.env.errorMessage() != "":
		return &domain.NetworkError{StatusCode: r.status, Message: r.env.errorMessage()}
	}
	return nil
}

func nonNil(sessions []domain.VehicleSession) []domain.VehicleSession {
	if sessions == nil {
		return []domain.VehicleSession{}
	}
	return sessions
}

