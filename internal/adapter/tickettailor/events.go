package tickettailor

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/neomorfeo/boxsync/internal/domain"
)

// EventsResource is the list endpoint mirrored by the sync engine.
const EventsResource = "events"

var _ domain.EventSource = (*Client)(nil)

type eventTime struct {
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Formatted string  `json:"formatted"`
	ISO       string  `json:"iso"`
	Unix      flexInt `json:"unix"`
}

type eventPayload struct {
	ID            flexString `json:"id"`
	EventSeriesID flexString `json:"event_series_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Currency      string     `json:"currency"`
	Timezone      string     `json:"timezone"`
	Start         eventTime  `json:"start"`
	End           eventTime  `json:"end"`
	Venue         struct {
		Name       string `json:"name"`
		Country    string `json:"country"`
		PostalCode string `json:"postal_code"`
	} `json:"venue"`
	Images struct {
		Header    string `json:"header"`
		Thumbnail string `json:"thumbnail"`
	} `json:"images"`
	CheckoutURL        string          `json:"checkout_url"`
	URL                string          `json:"url"`
	CallToAction       string          `json:"call_to_action"`
	OnlineEvent        flexString      `json:"online_event"`
	Private            flexString      `json:"private"`
	Hidden             flexString      `json:"hidden"`
	TicketsAvailable   flexString      `json:"tickets_available"`
	Revenue            flexInt         `json:"revenue"`
	TotalOrders        flexInt         `json:"total_orders"`
	TotalIssuedTickets flexInt         `json:"total_issued_tickets"`
	TicketTypes        json.RawMessage `json:"ticket_types"`
}

type ticketTypePayload struct {
	ID             flexString `json:"id"`
	Name           string     `json:"name"`
	Price          flexInt    `json:"price"`
	QuantityTotal  flexInt    `json:"quantity_total"`
	QuantityIssued flexInt    `json:"quantity_issued"`
}

// FetchEvents returns every event of the account. A single undecodable
// record fails the whole fetch so that no partial listing reaches
// reconciliation.
func (c *Client) FetchEvents(ctx context.Context) ([]domain.RemoteEvent, error) {
	items, err := c.FetchAll(ctx, EventsResource)
	if err != nil {
		return nil, err
	}

	events := make([]domain.RemoteEvent, 0, len(items))
	for i, raw := range items {
		ev, err := decodeEvent(raw)
		if err != nil {
			return nil, &APIError{StatusCode: 200, Message: fmt.Sprintf("decoding event %d: %v", i, err), Err: err}
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeEvent(raw json.RawMessage) (domain.RemoteEvent, error) {
	var p eventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.RemoteEvent{}, err
	}

	ev := domain.RemoteEvent{
		ID:                 string(p.ID),
		SeriesID:           string(p.EventSeriesID),
		Name:               p.Name,
		Description:        p.Description,
		Status:             p.Status,
		Currency:           p.Currency,
		Timezone:           p.Timezone,
		Start:              toEventTime(p.Start),
		End:                toEventTime(p.End),
		HeaderImage:        p.Images.Header,
		ThumbnailImage:     p.Images.Thumbnail,
		CheckoutURL:        p.CheckoutURL,
		URL:                p.URL,
		CallToAction:       p.CallToAction,
		OnlineEvent:        p.OnlineEvent.or("false"),
		Private:            p.Private.or("false"),
		Hidden:             p.Hidden.or("false"),
		TicketsAvailable:   p.TicketsAvailable.or("false"),
		Revenue:            int64(p.Revenue),
		TotalOrders:        int64(p.TotalOrders),
		TotalIssuedTickets: int64(p.TotalIssuedTickets),
		RawTicketTypes:     []byte("[]"),
		Raw:                append([]byte(nil), raw...),
	}
	ev.Venue.Name = p.Venue.Name
	ev.Venue.Country = p.Venue.Country
	ev.Venue.PostalCode = p.Venue.PostalCode

	tt := bytes.TrimSpace(p.TicketTypes)
	if len(tt) > 0 && !bytes.Equal(tt, []byte("null")) {
		var types []ticketTypePayload
		if err := json.Unmarshal(tt, &types); err != nil {
			return domain.RemoteEvent{}, fmt.Errorf("ticket_types: %w", err)
		}
		for _, t := range types {
			ev.TicketTypes = append(ev.TicketTypes, domain.TicketType{
				ID:             string(t.ID),
				Name:           t.Name,
				Price:          int64(t.Price),
				QuantityTotal:  int64(t.QuantityTotal),
				QuantityIssued: int64(t.QuantityIssued),
			})
		}
		ev.RawTicketTypes = append([]byte(nil), tt...)
	}

	return ev, nil
}

func toEventTime(t eventTime) domain.EventTime {
	return domain.EventTime{
		Date:      t.Date,
		Time:      t.Time,
		Formatted: t.Formatted,
		ISO:       t.ISO,
		Unix:      int64(t.Unix),
	}
}

// flexString accepts strings, numbers, booleans and null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

func (f flexString) or(fallback string) string {
	if f == "" {
		return fallback
	}
	return string(f)
}

// flexInt accepts integers, floats, numeric strings and null. Non-numeric
// strings decode as zero.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt(int64(x))
		return nil
	}
	*f = 0
	return nil
}
