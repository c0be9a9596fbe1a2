package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/sdrbot-io/sdrbot/internal/apperr"
	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

const (
	defaultSlotDuration = 30 // minutes
	maxReturnedSlots    = 5  // nearest slots only
)

// CalcomClient implements Client against the Cal.com v1 API.
type CalcomClient struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	eventTypeID string
	timezone    string
	location    *time.Location
}

// CalcomOption configures a CalcomClient.
type CalcomOption func(*CalcomClient)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(u string) CalcomOption {
	return func(c *CalcomClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) CalcomOption {
	return func(c *CalcomClient) { c.client = hc }
}

// NewCalcom creates a Cal.com client. Unknown timezones fall back to UTC.
func NewCalcom(apiKey, eventTypeID, timezone string, opts ...CalcomOption) *CalcomClient {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	c := &CalcomClient{
		client:      &http.Client{Timeout: 15 * time.Second},
		baseURL:     "https://api.cal.com/v1",
		apiKey:      apiKey,
		eventTypeID: eventTypeID,
		timezone:    timezone,
		location:    loc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CalcomClient) ListSlots(ctx context.Context, daysAhead int) ([]protocol.TimeSlot, error) {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	start := time.Now()
	end := start.AddDate(0, 0, daysAhead)

	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("eventTypeId", c.eventTypeID)
	q.Set("startTime", start.Format(time.RFC3339))
	q.Set("endTime", end.Format(time.RFC3339))
	q.Set("timeZone", c.timezone)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/slots?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("calendar: create request: %w", err)
	}
	req.Header.Set("Authorization", "API-Key "+c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	// Cal.com groups slots by day.
	var parsed struct {
		Slots map[string][]struct {
			Time string `json:"time"`
		} `json:"slots"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperr.Integration("Calendar", "resposta inválida da API", err)
	}

	var slots []protocol.TimeSlot
	for _, day := range parsed.Slots {
		for _, s := range day {
			t, err := time.Parse(time.RFC3339, s.Time)
			if err != nil {
				continue
			}
			slots = append(slots, protocol.TimeSlot{
				Datetime:  t,
				Duration:  defaultSlotDuration,
				Available: true,
			})
		}
	}
	sortSlots(slots)

	if len(slots) > maxReturnedSlots {
		slots = slots[:maxReturnedSlots]
	}
	return slots, nil
}

func (c *CalcomClient) Book(ctx context.Context, slot protocol.TimeSlot, attendee Attendee) (*Booking, error) {
	notes := ""
	if attendee.Company != "" {
		notes = "Empresa: " + attendee.Company
	}
	payload, err := json.Marshal(map[string]any{
		"eventTypeId": c.eventTypeID,
		"start":       slot.Datetime.Format(time.RFC3339),
		"responses": map[string]string{
			"name":  attendee.Name,
			"email": attendee.Email,
			"notes": notes,
		},
		"timeZone": c.timezone,
		"language": "pt-BR",
		"metadata": map[string]string{"source": "sdr-agent-ai"},
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: marshal booking: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/bookings?apiKey="+url.QueryEscape(c.apiKey), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("calendar: create request: %w", err)
	}
	req.Header.Set("Authorization", "API-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID         json.Number `json:"id"`
		UID        string      `json:"uid"`
		MeetingURL string      `json:"meetingUrl"`
		URL        string      `json:"url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperr.Integration("Calendar", "resposta inválida da API", err)
	}

	eventID := parsed.ID.String()
	if eventID == "" {
		eventID = parsed.UID
	}
	link := parsed.MeetingURL
	if link == "" {
		link = parsed.URL
	}
	return &Booking{EventID: eventID, MeetingLink: link}, nil
}

func (c *CalcomClient) Cancel(ctx context.Context, eventID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/bookings/"+url.PathEscape(eventID), nil)
	if err != nil {
		return fmt.Errorf("calendar: create request: %w", err)
	}
	req.Header.Set("Authorization", "API-Key "+c.apiKey)

	_, err = c.do(req)
	return err
}

func (c *CalcomClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Integration("Calendar", "falha de comunicação com a API", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Integration("Calendar", "falha ao ler resposta", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Integration("Calendar",
			fmt.Sprintf("erro da API (status %d): %s", resp.StatusCode, string(body)), nil)
	}
	return body, nil
}

// FormatSlot renders one slot for display, 1-based: "1. segunda-feira, 2
// de março de 2026 às 14:30".
func (c *CalcomClient) FormatSlot(slot protocol.TimeSlot, index int) string {
	return fmt.Sprintf("%d. %s", index+1, FormatDatetime(slot.Datetime, c.location))
}

func sortSlots(slots []protocol.TimeSlot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Datetime.Before(slots[j].Datetime)
	})
}
