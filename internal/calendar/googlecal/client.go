package googlecal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ayunierto/ascencio-tax-api/internal/calendar"
)

const (
	apiBase  = "https://www.googleapis.com/calendar/v3"
	tokenURL = "https://oauth2.googleapis.com/token"
)

// Client talks to the Google Calendar REST API with an OAuth2 refresh token
// grant. Access tokens are cached until shortly before expiry.
type Client struct {
	calendarID   string
	clientID     string
	clientSecret string
	refreshToken string
	http         *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewClient(calendarID, clientID, clientSecret, refreshToken string) *Client {
	return &Client{
		calendarID:   strings.TrimSpace(calendarID),
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		refreshToken: strings.TrimSpace(refreshToken),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) ProviderID() string {
	return "google-calendar"
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type eventPayload struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       eventTime  `json:"start"`
	End         eventTime  `json:"end"`
	Attendees   []attendee `json:"attendees,omitempty"`
}

type attendee struct {
	Email string `json:"email"`
}

func toPayload(ev calendar.ExternalEvent) eventPayload {
	p := eventPayload{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       eventTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:         eventTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.TimeZone},
	}
	for _, email := range ev.Attendees {
		p.Attendees = append(p.Attendees, attendee{Email: email})
	}
	return p
}

func (c *Client) CreateEvent(ctx context.Context, ev calendar.ExternalEvent) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, c.eventsPath(""), toPayload(ev), &created)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *Client) UpdateEvent(ctx context.Context, externalID string, ev calendar.ExternalEvent) error {
	return c.do(ctx, http.MethodPatch, c.eventsPath(externalID), toPayload(ev), nil)
}

func (c *Client) DeleteEvent(ctx context.Context, externalID string) error {
	return c.do(ctx, http.MethodDelete, c.eventsPath(externalID), nil, nil)
}

func (c *Client) eventsPath(eventID string) string {
	path := "/calendars/" + url.PathEscape(c.calendarID) + "/events"
	if eventID != "" {
		path += "/" + url.PathEscape(eventID)
	}
	return path
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
		return fmt.Errorf("calendar api %s %s returned %d", method, path, resp.StatusCode)
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
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.refreshToken)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
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
