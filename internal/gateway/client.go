// Package gateway is the client for the remote storefront API: sign-in, profile,
// catalog and packet price verification. Every call returns a Result and never a
// raw transport error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beije/packet-storefront/internal/catalog"
	"github.com/beije/packet-storefront/pkg/enums"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/logger"
)

const (
	EndpointSignIn  = "sign-in-request"
	EndpointProfile = "profile"
	EndpointCatalog = "packets-and-products"
	EndpointVerify  = "verify-packet-price"

	authHeader = "x-auth-token"

	errorBodyReadLimit int64 = 1024
	responseReadLimit  int64 = 4 << 20
)

// ErrRejected marks responses that arrived intact but reported success:false.
var ErrRejected = errors.New("gateway rejected request")

var errBaseURLRequired = errors.New("gateway base url is required")

// CallRecorder counts gateway calls by endpoint and outcome.
type CallRecorder interface {
	IncGatewayCall(endpoint string, ok bool)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	verifyURL  string
	recorder   CallRecorder
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithVerifyURL points price verification at a different host than the rest of the API.
func WithVerifyURL(verifyURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(verifyURL); trimmed != "" {
			c.verifyURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout, Transport: c.httpClient.Transport}
		}
	}
}

func WithRecorder(recorder CallRecorder) Option {
	return func(c *Client) {
		c.recorder = recorder
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds a gateway client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		verifyURL:  trimmed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return client, nil
}

// Login exchanges credentials for an opaque session token.
func (c *Client) Login(ctx context.Context, creds Credentials) Result[Session] {
	env, err := c.do(ctx, EndpointSignIn, http.MethodPost, c.url(c.baseURL, EndpointSignIn), "", creds)
	if err != nil {
		return Failure[Session](err)
	}
	if !env.Success {
		return Failure[Session](rejected(pkgerrors.CodeUnauthorized, "invalid email or password", env.Message))
	}
	var data wireToken
	if err := decodeData(env, &data); err != nil || strings.TrimSpace(data.Token) == "" {
		return Failure[Session](pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(err, errors.New("token missing")), "decode sign-in response"))
	}
	return Success(Session{Token: data.Token})
}

// Profile fetches the profile for token. The password hash is not decoded.
func (c *Client) Profile(ctx context.Context, token string) Result[Profile] {
	if strings.TrimSpace(token) == "" {
		return Failure[Profile](pkgerrors.New(pkgerrors.CodeUnauthorized, "auth token is required"))
	}
	env, err := c.do(ctx, EndpointProfile, http.MethodGet, c.url(c.baseURL, EndpointProfile), token, nil)
	if err != nil {
		return Failure[Profile](err)
	}
	if !env.Success {
		return Failure[Profile](rejected(pkgerrors.CodeUnauthorized, "profile unavailable", env.Message))
	}
	var data wireProfile
	if err := decodeData(env, &data); err != nil {
		return Failure[Profile](pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode profile response"))
	}
	return Success(data.toProfile())
}

// Catalog fetches products and packets. Products with an unknown category are skipped.
func (c *Client) Catalog(ctx context.Context) Result[catalog.Catalog] {
	env, err := c.do(ctx, EndpointCatalog, http.MethodGet, c.url(c.baseURL, EndpointCatalog), "", nil)
	if err != nil {
		return Failure[catalog.Catalog](err)
	}
	if !env.Success {
		return Failure[catalog.Catalog](rejected(pkgerrors.CodeDependency, "catalog unavailable", env.Message))
	}
	var data wireCatalog
	if err := decodeData(env, &data); err != nil {
		return Failure[catalog.Catalog](pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode catalog response"))
	}
	return Success(c.toCatalog(ctx, data))
}

// VerifyPacketPrice asks the gateway to confirm the locally computed total.
func (c *Client) VerifyPacketPrice(ctx context.Context, token string, req VerifyRequest) Result[Verification] {
	if strings.TrimSpace(token) == "" {
		return Failure[Verification](pkgerrors.New(pkgerrors.CodeUnauthorized, "auth token is required"))
	}
	lines := req.Lines
	if lines == nil {
		lines = []PacketLine{}
	}
	body := wireVerifyRequest{Packet: lines, TotalPrice: json.Number(req.TotalPrice.String())}
	env, err := c.do(ctx, EndpointVerify, http.MethodPost, c.url(c.verifyURL, EndpointVerify), token, body)
	if err != nil {
		return Failure[Verification](err)
	}
	if !env.Success {
		return Failure[Verification](rejected(pkgerrors.CodeStateConflict, "packet price could not be verified", env.Message))
	}
	return Success(Verification{Verified: true})
}

func (c *Client) do(ctx context.Context, endpoint, method, url, token string, payload any) (env envelope, err error) {
	defer func() {
		c.record(endpoint, err == nil && env.Success)
	}()

	if c == nil {
		return envelope{}, pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}

	var body io.Reader
	if payload != nil {
		raw, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return envelope{}, pkgerrors.Wrap(pkgerrors.CodeDependency, marshalErr, fmt.Sprintf("marshal %s request", endpoint))
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return envelope{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("build %s request", endpoint))
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set(authHeader, token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return envelope{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute %s request", endpoint))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		code := pkgerrors.CodeDependency
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			code = pkgerrors.CodeUnauthorized
		}
		return envelope{}, pkgerrors.Wrap(code, cause, fmt.Sprintf("%s request failed", endpoint))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, responseReadLimit)).Decode(&env); err != nil {
		return envelope{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", endpoint))
	}
	return env, nil
}

func (c *Client) record(endpoint string, ok bool) {
	if c == nil || c.recorder == nil {
		return
	}
	c.recorder.IncGatewayCall(endpoint, ok)
}

func (c *Client) toCatalog(ctx context.Context, data wireCatalog) catalog.Catalog {
	out := catalog.Empty()
	for _, p := range data.Products {
		category, err := enums.ParseProductCategory(p.Type)
		if err != nil {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"product_id": p.ID,
				"category":   p.Type,
			}), "gateway.catalog.unknown_category")
			continue
		}
		product := catalog.Product{
			ID:          p.ID,
			Title:       p.Title,
			Image:       p.Image,
			Category:    category,
			SubProducts: make([]catalog.SubProduct, 0, len(p.SubProducts)),
		}
		for _, sp := range p.SubProducts {
			product.SubProducts = append(product.SubProducts, sp.toSubProduct())
		}
		out.Products = append(out.Products, product)
	}
	for _, p := range data.Packets {
		out.Packets = append(out.Packets, catalog.Packet{ID: p.ID, Title: p.Title, Image: p.Image})
	}
	return out
}

func (c *Client) url(base, path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(path, "/"))
}

func decodeData(env envelope, dest any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.New("response data missing")
	}
	return json.Unmarshal(env.Data, dest)
}

func rejected(code pkgerrors.Code, message, remote string) *pkgerrors.Error {
	err := pkgerrors.Wrap(code, ErrRejected, message)
	if remote != "" {
		err = err.WithDetails(map[string]any{"gateway_message": remote})
	}
	return err
}
