// Package wxauth talks to the remote face-payment authorization endpoints.
package wxauth

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAuthInfoURL = "https://wxpay.wxutil.com/wxfacepay/api/getWxpayFaceAuthInfo.php"
	DefaultUserInfoURL = "https://api.mch.weixin.qq.com/v3/facemch/users"
)

var (
	// ErrNetworkFailure is returned when the request could not complete or
	// the server answered with a non-2xx status.
	ErrNetworkFailure = errors.New("network failure")
	// ErrMalformedResponse is returned when the body lacks the expected field.
	ErrMalformedResponse = errors.New("malformed response")
)

// Client exchanges SDK raw data for an authinfo token.
// Server certificates are verified with the default system trust store.
type Client struct {
	AuthInfoURL string
	UserInfoURL string
	HTTP        *http.Client
}

func New(authInfoURL, userInfoURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if authInfoURL == "" {
		authInfoURL = DefaultAuthInfoURL
	}
	if userInfoURL == "" {
		userInfoURL = DefaultUserInfoURL
	}
	return &Client{AuthInfoURL: authInfoURL, UserInfoURL: userInfoURL, HTTP: hc}
}

type authInfoReply struct {
	XMLName    xml.Name `xml:"xml"`
	ReturnCode string   `xml:"return_code"`
	ReturnMsg  string   `xml:"return_msg"`
	AuthInfo   string   `xml:"authinfo"`
	ExpiresIn  int      `xml:"expires_in"`
}

// GetAuthInfo posts raw to the authinfo endpoint and returns the authinfo
// element of the XML reply. It makes exactly one request and never retries.
func (c *Client) GetAuthInfo(ctx context.Context, raw []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AuthInfoURL, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build authinfo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("get authinfo: %v: %w", err, ErrNetworkFailure)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read authinfo body: %v: %w", err, ErrNetworkFailure)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("get authinfo status=%d body=%s: %w", resp.StatusCode, strings.TrimSpace(string(body)), ErrNetworkFailure)
	}

	return ParseAuthInfo(body)
}

// ParseAuthInfo extracts the authinfo token from an XML reply body.
func ParseAuthInfo(body []byte) (string, error) {
	var reply authInfoReply
	if err := xml.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("decode authinfo xml: %v: %w", err, ErrMalformedResponse)
	}
	token := strings.TrimSpace(reply.AuthInfo)
	if token == "" {
		if reply.ReturnMsg != "" {
			return "", fmt.Errorf("authinfo missing (return_code=%s return_msg=%s): %w", reply.ReturnCode, reply.ReturnMsg, ErrMalformedResponse)
		}
		return "", fmt.Errorf("authinfo missing: %w", ErrMalformedResponse)
	}
	return token, nil
}

// FaceUserInfo looks up the identity behind a face_sid issued by a previous
// face-code exchange. The reply is returned as a decoded JSON object.
func (c *Client) FaceUserInfo(ctx context.Context, appID, faceSID, infoType string) (map[string]any, error) {
	u, err := url.Parse(c.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("parse user info url: %w", err)
	}
	q := u.Query()
	q.Set("appid", appID)
	q.Set("face_sid", faceSID)
	q.Set("info_type", infoType)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build user info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info: %v: %w", err, ErrNetworkFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("user info status=%d body=%s: %w", resp.StatusCode, strings.TrimSpace(string(b)), ErrNetworkFailure)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode user info: %v: %w", err, ErrMalformedResponse)
	}
	return payload, nil
}
