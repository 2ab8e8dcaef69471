// Package acs holds what every communication platform REST client shares:
// connection string parsing, HMAC request signing, and error decoding.
package acs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ConnectionString is the parsed form of "endpoint=https://...;accesskey=...".
type ConnectionString struct {
	Endpoint  *url.URL
	AccessKey []byte
}

var ErrInvalidConnectionString = errors.New("invalid communication services connection string")

func ParseConnectionString(s string) (*ConnectionString, error) {
	var endpoint, key string
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "endpoint":
			endpoint = v
		case "accesskey":
			key = v
		}
	}
	if endpoint == "" || key == "" {
		return nil, ErrInvalidConnectionString
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: bad endpoint %q", ErrInvalidConnectionString, endpoint)
	}
	// access keys are base64 but may have lost their padding in env files
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(key, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: access key is not base64", ErrInvalidConnectionString)
		}
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return &ConnectionString{Endpoint: u, AccessKey: raw}, nil
}

// Sign adds the HMAC-SHA256 authentication headers to req. body must be the exact
// request payload (nil for none).
func Sign(req *http.Request, body []byte, key []byte, now time.Time) {
	sum := sha256.Sum256(body)
	contentHash := base64.StdEncoding.EncodeToString(sum[:])
	date := now.UTC().Format(http.TimeFormat)
	host := req.URL.Host

	stringToSign := req.Method + "\n" + req.URL.RequestURI() + "\n" + date + ";" + host + ";" + contentHash
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", contentHash)
	req.Header.Set("Authorization", "HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)
}

// Error is a non-2xx platform response.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("platform error %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client sends signed JSON requests to one platform resource.
type Client struct {
	conn       *ConnectionString
	apiVersion string
	http       *http.Client
	now        func() time.Time
}

func NewClient(conn *ConnectionString, apiVersion string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{conn: conn, apiVersion: apiVersion, http: hc, now: time.Now}
}

// Do posts in (may be nil) to path and decodes a 2xx body into out (may be nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	u := *c.conn.Endpoint
	u.Path = c.conn.Endpoint.Path + path
	q := u.Query()
	q.Set("api-version", c.apiVersion)
	u.RawQuery = q.Encode()

	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	Sign(req, body, c.conn.AccessKey, c.now())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	const maxBytes = 1 << 20
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		pe := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error.Message != "" {
			pe.Code = eb.Error.Code
			pe.Message = eb.Error.Message
		}
		return pe
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
