// Package dispatch executes model-requested function calls against the
// store, the calendar and the CRM. Execution never returns a Go error:
// every failure becomes a structured failed response the model can relay
// to the visitor.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sdrbot-io/sdrbot/internal/calendar"
	"github.com/sdrbot-io/sdrbot/internal/crm"
	"github.com/sdrbot-io/sdrbot/internal/notify"
	"github.com/sdrbot-io/sdrbot/internal/slotcache"
	"github.com/sdrbot-io/sdrbot/internal/store"
	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// fieldNames maps the labels the model emits onto canonical field names.
// Unknown labels are rejected rather than stored verbatim.
var fieldNames = map[string]string{
	"nome":        protocol.FieldName,
	"email":       protocol.FieldEmail,
	"empresa":     protocol.FieldCompany,
	"telefone":    protocol.FieldPhone,
	"necessidade": protocol.FieldNeed,
	// canonical names pass through
	protocol.FieldName:    protocol.FieldName,
	protocol.FieldCompany: protocol.FieldCompany,
	protocol.FieldPhone:   protocol.FieldPhone,
	protocol.FieldNeed:    protocol.FieldNeed,
}

// Dispatcher routes function calls by name.
type Dispatcher struct {
	store    store.Store
	slots    *slotcache.Cache
	calendar calendar.Client
	crm      crm.Client
	notifier notify.Notifier
	location *time.Location
	logger   *slog.Logger
}

// New creates a dispatcher. notifier may be nil; loc nil means UTC.
func New(st store.Store, slots *slotcache.Cache, cal calendar.Client, crmClient crm.Client, notifier notify.Notifier, loc *time.Location, logger *slog.Logger) *Dispatcher {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:    st,
		slots:    slots,
		calendar: cal,
		crm:      crmClient,
		notifier: notifier,
		location: loc,
		logger:   logger,
	}
}

// Execute runs one function call. The response is always well formed;
// failures carry a user-presentable error string.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any, sessionID string) protocol.FunctionResponse {
	d.logger.Info("executing function", "function", name, "session_id", sessionID)

	var resp protocol.FunctionResponse
	switch name {
	case "record_field":
		resp = d.recordField(ctx, sessionID, stringArg(args, "field"), stringArg(args, "value"))
	case "confirm_interest":
		resp = d.confirmInterest(ctx, sessionID, stringArg(args, "confirmed"))
	case "fetch_available_slots":
		resp = d.fetchAvailableSlots(ctx, sessionID, intArg(args, "days_ahead", 7))
	case "book_meeting":
		resp = d.bookMeeting(ctx, sessionID, intArg(args, "slot_index", -1))
	default:
		resp = fail("Função desconhecida: " + name)
	}

	if !resp.Success {
		d.logger.Warn("function failed", "function", name, "session_id", sessionID, "error", resp.Error)
	}
	return resp
}

func (d *Dispatcher) recordField(ctx context.Context, sessionID, field, value string) protocol.FunctionResponse {
	canonical, ok := fieldNames[field]
	if !ok {
		return fail("Campo desconhecido: " + field)
	}
	if value == "" {
		return fail("Valor não pode estar vazio.")
	}
	if canonical == protocol.FieldEmail && !emailRe.MatchString(value) {
		return fail("Email inválido. Por favor, forneça um email válido.")
	}

	if err := d.store.SaveField(sessionID, canonical, value); err != nil {
		return fail("Erro ao salvar informação: " + err.Error())
	}
	if canonical == protocol.FieldEmail {
		if err := d.store.UpdateSessionEmail(sessionID, value); err != nil {
			d.logger.Warn("session email stamp failed", "session_id", sessionID, "error", err)
		}
	}

	return succeed(map[string]any{
		"field":    field,
		"value":    value,
		"mensagem": field + " salvo com sucesso.",
	})
}

func (d *Dispatcher) confirmInterest(ctx context.Context, sessionID, confirmed string) protocol.FunctionResponse {
	interested := strings.EqualFold(confirmed, "yes")

	if err := d.store.SaveField(sessionID, protocol.FieldInterestConfirmed, strconv.FormatBool(interested)); err != nil {
		return fail("Erro ao salvar informação: " + err.Error())
	}

	data, err := d.store.GetConversationData(sessionID)
	if err != nil {
		return fail("Erro ao carregar dados da conversa: " + err.Error())
	}
	if data.Email == "" {
		return fail("Email não foi coletado ainda.")
	}

	status := protocol.LeadContacted
	if interested {
		status = protocol.LeadQualified
	}
	lead, err := d.upsertLead(data, interested, status)
	if err != nil {
		return fail("Erro ao registrar lead: " + err.Error())
	}

	if !interested {
		cardID, err := d.crm.RegisterNoInterestLead(ctx, lead)
		if err != nil {
			return fail("Erro ao registrar lead no CRM: " + err.Error())
		}
		if err := d.store.SetLeadCardID(lead.Email, cardID); err != nil {
			d.logger.Warn("lead card id update failed", "email", lead.Email, "error", err)
		}
		if err := d.notifier.LeadLost(ctx, lead); err != nil {
			d.logger.Warn("lead lost notification failed", "email", lead.Email, "error", err)
		}
	}

	msg := "Entendido. Agradecemos seu tempo."
	if interested {
		msg = "Interesse confirmado! Vamos agendar uma reunião."
	}
	return succeed(map[string]any{
		"interesseConfirmado": interested,
		"mensagem":            msg,
	})
}

func (d *Dispatcher) fetchAvailableSlots(ctx context.Context, sessionID string, daysAhead int) protocol.FunctionResponse {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	slots, err := d.calendar.ListSlots(ctx, daysAhead)
	if err != nil {
		return fail("Erro ao buscar horários: " + err.Error())
	}
	if len(slots) == 0 {
		return fail("Não há horários disponíveis no momento.")
	}

	d.slots.Put(sessionID, slots)

	// Only the nearest three are shown; the rest stay bookable by index.
	shown := slots
	if len(shown) > 3 {
		shown = shown[:3]
	}
	formatted := make([]string, len(shown))
	for i, s := range shown {
		formatted[i] = fmt.Sprintf("%d. %s", i+1, calendar.FormatDatetime(s.Datetime, d.location))
	}

	return succeed(map[string]any{
		"slots":    formatted,
		"total":    len(slots),
		"mensagem": "Aqui estão os horários disponíveis:",
	})
}

func (d *Dispatcher) bookMeeting(ctx context.Context, sessionID string, index int) protocol.FunctionResponse {
	slots := d.slots.Get(sessionID)
	if len(slots) == 0 {
		return fail("Horários não encontrados. Por favor, busque os horários novamente.")
	}
	if index < 0 || index >= len(slots) {
		return fail("Índice de horário inválido.")
	}
	slot := slots[index]

	data, err := d.store.GetConversationData(sessionID)
	if err != nil {
		return fail("Erro ao carregar dados da conversa: " + err.Error())
	}
	if data.Email == "" || data.Name == "" {
		return fail("Nome e email são obrigatórios para agendar uma reunião.")
	}

	booking, err := d.calendar.Book(ctx, slot, calendar.Attendee{
		Name:    data.Name,
		Email:   data.Email,
		Company: data.Company,
	})
	if err != nil {
		return fail("Erro ao agendar reunião: " + err.Error())
	}

	lead, err := d.upsertLead(data, true, protocol.LeadMeetingScheduled)
	if err != nil {
		return fail("Erro ao registrar lead: " + err.Error())
	}

	meeting, err := d.store.CreateMeeting(&protocol.Meeting{
		LeadID:          lead.ID,
		SessionID:       sessionID,
		Datetime:        slot.Datetime,
		Link:            booking.MeetingLink,
		CalendarEventID: booking.EventID,
		Status:          protocol.MeetingScheduled,
	})
	if err != nil {
		return fail("Erro ao registrar reunião: " + err.Error())
	}

	cardID, err := d.crm.RegisterQualifiedLead(ctx, lead, meeting)
	if err != nil {
		return fail("Erro ao registrar lead no CRM: " + err.Error())
	}
	if err := d.store.SetLeadCardID(lead.Email, cardID); err != nil {
		d.logger.Warn("lead card id update failed", "email", lead.Email, "error", err)
	}

	d.slots.Delete(sessionID)
	if err := d.store.UpdateSessionStatus(sessionID, protocol.SessionCompleted); err != nil {
		d.logger.Warn("session completion failed", "session_id", sessionID, "error", err)
	}

	if err := d.notifier.MeetingBooked(ctx, lead, meeting); err != nil {
		d.logger.Warn("meeting notification failed", "email", lead.Email, "error", err)
	}

	formatted := calendar.FormatDatetime(slot.Datetime, d.location)
	return succeed(map[string]any{
		"meetingLink":     booking.MeetingLink,
		"meetingDatetime": slot.Datetime.UTC().Format(time.RFC3339),
		"formattedDate":   formatted,
		"mensagem":        fmt.Sprintf("Reunião agendada com sucesso para %s!", formatted),
	})
}

// upsertLead writes the collected field set through to the lead record
// keyed by email.
func (d *Dispatcher) upsertLead(data *protocol.ConversationData, interested bool, status protocol.LeadStatus) (*protocol.Lead, error) {
	snapshot := &protocol.Lead{
		Email:             data.Email,
		Name:              data.Name,
		Company:           data.Company,
		Phone:             data.Phone,
		Need:              data.Need,
		InterestConfirmed: interested,
		Status:            status,
	}

	existing, err := d.store.GetLeadByEmail(data.Email)
	switch {
	case err == nil && existing != nil:
		return d.store.UpdateLead(data.Email, snapshot)
	case errors.Is(err, store.ErrNotFound):
		return d.store.CreateLead(snapshot)
	default:
		return nil, err
	}
}

func succeed(data map[string]any) protocol.FunctionResponse {
	return protocol.FunctionResponse{Success: true, Data: data}
}

func fail(msg string) protocol.FunctionResponse {
	return protocol.FunctionResponse{Success: false, Error: msg}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg reads an argument the model may send as a string or a JSON
// number.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return n
	case float64:
		return int(v)
	default:
		return def
	}
}
