package zoom

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/meetings"
)

const (
	apiBase   = "https://api.zoom.us/v2"
	tokenURL  = "https://zoom.us/oauth/token"
	meetingTy = 2 // scheduled meeting
)

// Client talks to the Zoom REST API using a server-to-server OAuth app.
// Access tokens are cached until shortly before expiry.
type Client struct {
	accountID    string
	clientID     string
	clientSecret string
	hostEmail    string
	http         *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewClient(accountID, clientID, clientSecret, hostEmail string) *Client {
	return &Client{
		accountID:    strings.TrimSpace(accountID),
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		hostEmail:    strings.TrimSpace(hostEmail),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) ProviderID() string {
	return "zoom"
}

func (c *Client) CreateMeeting(ctx context.Context, topic string, start time.Time, durationMinutes int, timeZone string) (meetings.Meeting, error) {
	payload := map[string]any{
		"topic":      topic,
		"type":       meetingTy,
		"start_time": start.UTC().Format("2006-01-02T15:04:05Z"),
		"duration":   durationMinutes,
		"timezone":   timeZone,
		"settings": map[string]any{
			"join_before_host": false,
			"waiting_room":     true,
		},
	}

	var created struct {
		ID      int64  `json:"id"`
		JoinURL string `json:"join_url"`
	}
	host := c.hostEmail
	if host == "" {
		host = "me"
	}
	err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(host)+"/meetings", payload, &created)
	if err != nil {
		return meetings.Meeting{}, err
	}
	return meetings.Meeting{
		ID:      strconv.FormatInt(created.ID, 10),
		JoinURL: created.JoinURL,
	}, nil
}

func (c *Client) UpdateMeeting(ctx context.Context, id string, topic string, start time.Time, durationMinutes int, timeZone string) error {
	payload := map[string]any{
		"topic":      topic,
		"start_time": start.UTC().Format("2006-01-02T15:04:05Z"),
		"duration":   durationMinutes,
		"timezone":   timeZone,
	}
	return c.do(ctx, http.MethodPatch, "/meetings/"+url.PathEscape(id), payload, nil)
}

func (c *Client) DeleteMeeting(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/meetings/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("zoom api %s %s returned %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("zoom token endpoint returned %d", resp.StatusCode)
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", err
	}

	c.token = grant.AccessToken
	c.expiry = time.Now().Add(time.Duration(grant.ExpiresIn-60) * time.Second)
	return c.token, nil
}
