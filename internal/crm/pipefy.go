package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sdrbot-io/sdrbot/internal/apperr"
	"github.com/sdrbot-io/sdrbot/internal/calendar"
	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

const noInterestComment = "Lead demonstrou não ter interesse no produto/serviço neste momento."

// PipefyClient implements Client against the Pipefy GraphQL API.
type PipefyClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
	pipeID   string
	phaseID  string // phase new cards land in, "" lets Pipefy pick the first
	location *time.Location
	logger   *slog.Logger
}

// PipefyOption configures a PipefyClient.
type PipefyOption func(*PipefyClient)

// WithEndpoint sets a custom GraphQL endpoint.
func WithEndpoint(u string) PipefyOption {
	return func(c *PipefyClient) { c.endpoint = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) PipefyOption {
	return func(c *PipefyClient) { c.client = hc }
}

// WithPhaseID sets the funnel phase new cards are created in.
func WithPhaseID(id string) PipefyOption {
	return func(c *PipefyClient) { c.phaseID = id }
}

// WithLocation sets the timezone used when rendering meeting dates in
// card comments.
func WithLocation(loc *time.Location) PipefyOption {
	return func(c *PipefyClient) { c.location = loc }
}

// NewPipefy creates a Pipefy CRM client.
func NewPipefy(apiKey, pipeID string, logger *slog.Logger, opts ...PipefyOption) *PipefyClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &PipefyClient{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: "https://api.pipefy.com/graphql",
		apiKey:   apiKey,
		pipeID:   pipeID,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// query posts a GraphQL document and unmarshals the "data" object into out.
func (c *PipefyClient) query(ctx context.Context, doc string, vars map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{"query": doc, "variables": vars})
	if err != nil {
		return fmt.Errorf("crm: marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("crm: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Integration("Pipefy", "falha de comunicação com a API", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Integration("Pipefy", "falha ao ler resposta", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Integration("Pipefy",
			fmt.Sprintf("erro da API (status %d): %s", resp.StatusCode, string(body)), nil)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apperr.Integration("Pipefy", "resposta inválida da API", err)
	}
	if len(envelope.Errors) > 0 {
		return apperr.Integration("Pipefy", envelope.Errors[0].Message, nil)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return apperr.Integration("Pipefy", "resposta inválida da API", err)
		}
	}
	return nil
}

func (c *PipefyClient) FindCardByEmail(ctx context.Context, email string) (string, error) {
	const doc = `
		query($pipeId: ID!, $search: String!) {
			cards(pipe_id: $pipeId, search: { term: $search }) {
				edges {
					node {
						id
						title
						fields { name value }
					}
				}
			}
		}`

	var data struct {
		Cards struct {
			Edges []struct {
				Node struct {
					ID     string `json:"id"`
					Fields []struct {
						Name  string `json:"name"`
						Value string `json:"value"`
					} `json:"fields"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"cards"`
	}
	err := c.query(ctx, doc, map[string]any{"pipeId": c.pipeID, "search": email}, &data)
	if err != nil {
		// A lookup failure degrades to "not found" so the caller falls
		// through to card creation.
		c.logger.Warn("pipefy card lookup failed", "email", email, "error", err)
		return "", nil
	}

	// The search is fuzzy, so confirm the email field matches exactly.
	for _, edge := range data.Cards.Edges {
		for _, f := range edge.Node.Fields {
			if isEmailField(f.Name) && f.Value == email {
				return edge.Node.ID, nil
			}
		}
	}
	return "", nil
}

func (c *PipefyClient) CreateCard(ctx context.Context, lead *protocol.Lead, meeting *protocol.Meeting) (string, error) {
	const doc = `
		mutation($pipeId: ID!, $phaseId: ID, $fields: [FieldValueInput!]!) {
			createCard(input: {
				pipe_id: $pipeId
				phase_id: $phaseId
				fields_attributes: $fields
			}) {
				card { id title }
			}
		}`

	vars := map[string]any{
		"pipeId": c.pipeID,
		"fields": buildFields(lead, meeting),
	}
	if c.phaseID != "" {
		vars["phaseId"] = c.phaseID
	}

	var data struct {
		CreateCard struct {
			Card struct {
				ID string `json:"id"`
			} `json:"card"`
		} `json:"createCard"`
	}
	if err := c.query(ctx, doc, vars, &data); err != nil {
		return "", err
	}
	c.logger.Info("pipefy card created", "card_id", data.CreateCard.Card.ID, "email", lead.Email)
	return data.CreateCard.Card.ID, nil
}

func (c *PipefyClient) UpdateCard(ctx context.Context, cardID string, lead *protocol.Lead, meeting *protocol.Meeting) error {
	const doc = `
		mutation($cardId: ID!, $fields: [FieldValueInput!]!) {
			updateCard(input: {
				id: $cardId
				fields_attributes: $fields
			}) {
				card { id }
			}
		}`

	vars := map[string]any{"cardId": cardID, "fields": buildFields(lead, meeting)}
	if err := c.query(ctx, doc, vars, nil); err != nil {
		return err
	}
	c.logger.Info("pipefy card updated", "card_id", cardID, "email", lead.Email)
	return nil
}

func (c *PipefyClient) UpsertCard(ctx context.Context, lead *protocol.Lead, meeting *protocol.Meeting) (string, error) {
	cardID, err := c.FindCardByEmail(ctx, lead.Email)
	if err != nil {
		return "", err
	}
	if cardID != "" {
		if err := c.UpdateCard(ctx, cardID, lead, meeting); err != nil {
			return "", err
		}
		return cardID, nil
	}
	return c.CreateCard(ctx, lead, meeting)
}

func (c *PipefyClient) AddComment(ctx context.Context, cardID, text string) error {
	const doc = `
		mutation($cardId: ID!, $text: String!) {
			createComment(input: {
				card_id: $cardId
				text: $text
			}) {
				comment { id }
			}
		}`

	err := c.query(ctx, doc, map[string]any{"cardId": cardID, "text": text}, nil)
	if err != nil {
		// Comments are best effort, the card itself is already in place.
		c.logger.Warn("pipefy comment failed", "card_id", cardID, "error", err)
	}
	return nil
}

func (c *PipefyClient) MoveCard(ctx context.Context, cardID, phaseID string) error {
	const doc = `
		mutation($cardId: ID!, $phaseId: ID!) {
			moveCardToPhase(input: {
				card_id: $cardId
				destination_phase_id: $phaseId
			}) {
				card { id }
			}
		}`

	if err := c.query(ctx, doc, map[string]any{"cardId": cardID, "phaseId": phaseID}, nil); err != nil {
		return err
	}
	c.logger.Info("pipefy card moved", "card_id", cardID, "phase_id", phaseID)
	return nil
}

// ListPhases returns the funnel phases of the configured pipe.
func (c *PipefyClient) ListPhases(ctx context.Context) ([]Phase, error) {
	const doc = `
		query($pipeId: ID!) {
			pipe(id: $pipeId) {
				phases { id name }
			}
		}`

	var data struct {
		Pipe struct {
			Phases []Phase `json:"phases"`
		} `json:"pipe"`
	}
	if err := c.query(ctx, doc, map[string]any{"pipeId": c.pipeID}, &data); err != nil {
		return nil, err
	}
	return data.Pipe.Phases, nil
}

// Phase is one step of a Pipefy funnel.
type Phase struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *PipefyClient) RegisterNoInterestLead(ctx context.Context, lead *protocol.Lead) (string, error) {
	lead.Status = protocol.LeadClosedLost
	lead.InterestConfirmed = false

	cardID, err := c.UpsertCard(ctx, lead, nil)
	if err != nil {
		return "", err
	}
	_ = c.AddComment(ctx, cardID, noInterestComment)
	return cardID, nil
}

func (c *PipefyClient) RegisterQualifiedLead(ctx context.Context, lead *protocol.Lead, meeting *protocol.Meeting) (string, error) {
	lead.Status = protocol.LeadMeetingScheduled
	lead.InterestConfirmed = true

	cardID, err := c.UpsertCard(ctx, lead, meeting)
	if err != nil {
		return "", err
	}

	comment := fmt.Sprintf("✅ Lead qualificado!\n\nReunião agendada para: %s\nLink: %s",
		calendar.FormatDatetime(meeting.Datetime, c.location), meeting.Link)
	_ = c.AddComment(ctx, cardID, comment)
	return cardID, nil
}

// buildFields maps a lead snapshot onto the pipe's field ids. Empty
// optional fields are omitted so they keep their current card value.
func buildFields(lead *protocol.Lead, meeting *protocol.Meeting) []map[string]string {
	var fields []map[string]string
	add := func(id, value string) {
		fields = append(fields, map[string]string{"field_id": id, "field_value": value})
	}

	if lead.Name != "" {
		add("nome", lead.Name)
	}
	add("email", lead.Email)
	if lead.Company != "" {
		add("empresa", lead.Company)
	}
	if lead.Phone != "" {
		add("telefone", lead.Phone)
	}
	if lead.Need != "" {
		add("necessidade", lead.Need)
	}
	add("interesse_confirmado", fmt.Sprintf("%t", lead.InterestConfirmed))
	add("status", string(lead.Status))

	if meeting != nil {
		if meeting.Link != "" {
			add("meeting_link", meeting.Link)
		}
		add("meeting_datetime", meeting.Datetime.UTC().Format(time.RFC3339))
	}
	return fields
}

func isEmailField(name string) bool {
	switch name {
	case "email", "Email", "E-mail", "e-mail":
		return true
	}
	return false
}
