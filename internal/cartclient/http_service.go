package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/pkg/circuitbreaker"
)

const maxErrorBody = 4 << 10

// CartService is the remote cart store.
type CartService interface {
	FetchCart(ctx context.Context) ([]domain.LineItem, error)
	AddItem(ctx context.Context, req domain.AddItemRequest) ([]domain.LineItem, error)
	RemoveProduct(ctx context.Context, productID domain.ProductID) ([]domain.LineItem, error)
	UpdateItem(ctx context.Context, item domain.LineItem) ([]domain.LineItem, error)
}

// AuthProbe reports whether the current session is logged in.
type AuthProbe interface {
	LoginStatus(ctx context.Context) (domain.LoginStatus, error)
}

// NewHTTPClient builds the client used against the cart API: cookie jar for the web session,
// tracing and a circuit breaker around the default transport.
func NewHTTPClient(timeout time.Duration, breaker circuitbreaker.Config, log logrus.FieldLogger) *http.Client {
	jar, _ := cookiejar.New(nil)
	guarded := circuitbreaker.NewTransport("cart-api", breaker, http.DefaultTransport, log)
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(guarded),
		Jar:       jar,
	}
}

// HTTPService talks to the storefront cart API. It implements CartService and AuthProbe.
type HTTPService struct {
	baseURL string
	client  *http.Client
	token   string
}

type HTTPOption func(*HTTPService)

// WithBearerToken authenticates requests with a token instead of the session cookie.
func WithBearerToken(token string) HTTPOption {
	return func(s *HTTPService) { s.token = token }
}

func NewHTTPService(baseURL string, client *http.Client, opts ...HTTPOption) *HTTPService {
	if client == nil {
		client = http.DefaultClient
	}
	s := &HTTPService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPService) FetchCart(ctx context.Context) ([]domain.LineItem, error) {
	var items []domain.LineItem
	if err := s.do(ctx, "fetch cart", http.MethodGet, "/cart", nil, false, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *HTTPService) AddItem(ctx context.Context, req domain.AddItemRequest) ([]domain.LineItem, error) {
	var resp domain.CartResponse
	if err := s.do(ctx, "add item", http.MethodPost, "/cart", req, true, &resp); err != nil {
		return nil, err
	}
	return resp.Cart, nil
}

func (s *HTTPService) RemoveProduct(ctx context.Context, productID domain.ProductID) ([]domain.LineItem, error) {
	var resp domain.CartResponse
	path := "/cart/product/" + url.PathEscape(productID.String())
	if err := s.do(ctx, "remove product", http.MethodDelete, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Cart, nil
}

func (s *HTTPService) UpdateItem(ctx context.Context, item domain.LineItem) ([]domain.LineItem, error) {
	var resp domain.CartResponse
	path := "/cart/" + strconv.FormatInt(item.ID, 10)
	if err := s.do(ctx, "update item", http.MethodPut, path, item, true, &resp); err != nil {
		return nil, err
	}
	return resp.Cart, nil
}

// LoginStatus treats 200 as logged in and any other status as logged out.
func (s *HTTPService) LoginStatus(ctx context.Context) (domain.LoginStatus, error) {
	req, err := s.newRequest(ctx, http.MethodGet, "/login_status", nil)
	if err != nil {
		return domain.LoginStatus{}, fmt.Errorf("login status: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.LoginStatus{}, transportFailure("login status", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return domain.LoginStatus{LoggedIn: false}, nil
	}

	var status domain.LoginStatus
	// the body is informational, the status code decides
	_ = json.NewDecoder(resp.Body).Decode(&status)
	status.LoggedIn = true
	return status, nil
}

// Login exchanges credentials for a session token and uses it for later requests.
// Rejected credentials surface as ErrAuthRequired.
func (s *HTTPService) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := s.do(ctx, "login", http.MethodPost, "/login", body, true, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login: empty token: %w", ErrServer)
	}
	s.token = resp.Token
	return resp.Token, nil
}

func (s *HTTPService) do(ctx context.Context, op, method, path string, body interface{}, mutating bool, out interface{}) error {
	req, err := s.newRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return transportFailure(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newStatusError(op, resp, mutating)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", op, ErrServer, err)
	}
	return nil
}

func (s *HTTPService) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return req, nil
}

func newStatusError(op string, resp *http.Response, mutating bool) *StatusError {
	se := &StatusError{Op: op, Code: resp.StatusCode, Mutating: mutating}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &payload) == nil {
		se.Message = payload.Error
		if se.Message == "" {
			se.Message = payload.Message
		}
	}
	return se
}
