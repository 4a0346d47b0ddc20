// Package backend is the HTTP client for the CityCycle backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
	"github.com/sudheendra1210/Citycycle/internal/ports"
)

// Backend auth routes.
const (
	PathMe             = "/api/auth/me"
	PathSendPhoneOTP   = "/api/auth/phone/send-otp"
	PathVerifyPhoneOTP = "/api/auth/phone/verify-otp"
	PathRequestOTP     = "/api/auth/request-otp"
	PathVerifyOTP      = "/api/auth/verify-otp"
	PathUpdateProfile  = "/api/auth/update-profile"
)

const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL string
	// HTTPClient sends requests that carry an explicit bearer or none at all.
	HTTPClient *http.Client
	// Gateway sends requests authenticated with the effective credential.
	Gateway *http.Client
	Mapper  *ProfileMapper
	Logger  *slog.Logger
}

// Client implements ports.IdentityAPI over HTTP JSON.
type Client struct {
	base    *url.URL
	plain   *http.Client
	gateway *http.Client
	mapper  *ProfileMapper
	logger  *slog.Logger
}

var _ ports.IdentityAPI = (*Client)(nil)

// NewClient validates the base URL and constructs a Client.
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, apperrors.Misconfigured("backend base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.Misconfiguredf("backend base URL %q is not an absolute URL", raw)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	plain := opts.HTTPClient
	if plain == nil {
		plain = &http.Client{Timeout: 30 * time.Second}
	}
	gw := opts.Gateway
	if gw == nil {
		gw = plain
	}
	mapper := opts.Mapper
	if mapper == nil {
		mapper, err = NewProfileMapper(ProfileExpressions{})
		if err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		plain:   plain,
		gateway: gw,
		mapper:  mapper,
		logger:  logger.With("component", "backend_client"),
	}, nil
}

// URL resolves path against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Me resolves the canonical user for bearer.
func (c *Client) Me(ctx context.Context, bearer string) (domainauth.ResolvedUser, error) {
	var doc any
	if err := c.do(ctx, c.plain, request{method: http.MethodGet, path: PathMe, bearer: bearer}, &doc); err != nil {
		return domainauth.ResolvedUser{}, err
	}
	user, err := c.mapper.Map(doc)
	if err != nil {
		return domainauth.ResolvedUser{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "decode identity")
	}
	return user, nil
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// SendPhoneOTP asks the backend to text a code to phone.
func (c *Client) SendPhoneOTP(ctx context.Context, phone, name string) error {
	return c.do(ctx, c.plain, request{
		method: http.MethodPost,
		path:   PathSendPhoneOTP,
		body:   sendOTPRequest{Phone: phone, Name: name},
	}, nil)
}

// VerifyPhoneOTP exchanges a code for a backend session token and user.
func (c *Client) VerifyPhoneOTP(ctx context.Context, phone, code string) (ports.PhoneVerification, error) {
	var out struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		User        any    `json:"user"`
	}
	err := c.do(ctx, c.plain, request{
		method: http.MethodPost,
		path:   PathVerifyPhoneOTP,
		body:   verifyOTPRequest{Phone: phone, Code: code},
		verify: true,
	}, &out)
	if err != nil {
		return ports.PhoneVerification{}, err
	}

	token := out.Token
	if token == "" {
		token = out.AccessToken
	}
	user, err := c.mapper.Map(out.User)
	if err != nil {
		return ports.PhoneVerification{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "decode verified user")
	}
	return ports.PhoneVerification{Token: token, User: user}, nil
}

// RequestOTP asks for a code under an existing session.
func (c *Client) RequestOTP(ctx context.Context, bearer, phone string) error {
	return c.do(ctx, c.plain, request{
		method: http.MethodPost,
		path:   PathRequestOTP,
		bearer: bearer,
		body:   sendOTPRequest{Phone: phone},
	}, nil)
}

// VerifyOTP checks a code under an existing session.
func (c *Client) VerifyOTP(ctx context.Context, bearer, phone, code string) (ports.HostedVerification, error) {
	var out struct {
		ports.HostedVerification
		Success *bool `json:"success"`
	}
	err := c.do(ctx, c.plain, request{
		method: http.MethodPost,
		path:   PathVerifyOTP,
		bearer: bearer,
		body:   verifyOTPRequest{Phone: phone, Code: code},
		verify: true,
	}, &out)
	if err != nil {
		return ports.HostedVerification{}, err
	}
	res := out.HostedVerification
	if out.Success != nil && *out.Success {
		res.Verified = true
	}
	return res, nil
}

// UpdateProfile sends partial profile fields through the gateway client.
func (c *Client) UpdateProfile(ctx context.Context, upd ports.ProfileUpdate) error {
	return c.do(ctx, c.gateway, request{
		method: http.MethodPatch,
		path:   PathUpdateProfile,
		body:   upd,
	}, nil)
}

// GetJSON fetches path through the gateway client and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, c.gateway, request{method: http.MethodGet, path: path, query: query}, out)
}

// PostJSON posts body to path through the gateway client and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, c.gateway, request{method: http.MethodPost, path: path, body: body}, out)
}

type request struct {
	method string
	path   string
	query  url.Values
	bearer string
	body   any
	// verify marks code-verification endpoints, whose 400/422 answers are wrong-code errors.
	verify bool
}

func (c *Client) do(ctx context.Context, client *http.Client, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.URL(r.path, r.query), body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeUnavailable, "%s %s", r.method, r.path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(ctx, r, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Wrapf(err, apperrors.ErrCodeUnavailable, "decode %s response", r.path)
	}
	return nil
}

func (c *Client) statusError(ctx context.Context, r request, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := errorDetail(raw)

	c.logger.DebugContext(ctx, "backend request failed",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode)

	if r.verify && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity) {
		if detail == "" {
			detail = "Invalid verification code"
		}
		appErr := apperrors.Verification(detail)
		appErr.Status = resp.StatusCode
		return appErr
	}
	if detail == "" {
		detail = fmt.Sprintf("%s %s: %s", r.method, r.path, resp.Status)
	}
	return apperrors.FromStatus(resp.StatusCode, detail)
}

// errorDetail extracts a human message from FastAPI-style error bodies:
// {"detail": "..."}, {"detail": [{"msg": "..."}]}, {"message": "..."} or {"error": "..."}.
func errorDetail(raw []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(body.Detail, &items) == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
