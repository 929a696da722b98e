package app_test

import (
	"testing"
	"time"

	"github.com/neomorfeo/boxsync/internal/app"
	"github.com/neomorfeo/boxsync/internal/domain"
)

func prices(cents ...int64) []domain.TicketType {
	out := make([]domain.TicketType, len(cents))
	for i, c := range cents {
		out[i] = domain.TicketType{Price: c}
	}
	return out
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		remote string
		want   domain.DocumentStatus
	}{
		{"published", domain.DocumentPublished},
		{"live", domain.DocumentPublished},
		{"past", domain.DocumentPublished},
		{"LIVE", domain.DocumentPublished},
		{"draft", domain.DocumentDraft},
		{"cancelled", domain.DocumentDraft},
		{"", domain.DocumentDraft},
	}

	for _, tt := range tests {
		if got := app.MapStatus(tt.remote); got != tt.want {
			t.Errorf("MapStatus(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestFormatPriceRange(t *testing.T) {
	tests := []struct {
		name     string
		types    []domain.TicketType
		currency string
		want     string
	}{
		{"no ticket types", nil, "usd", "Free"},
		{"all free", prices(0, 0), "usd", "Free"},
		{"free and paid", prices(0, 500), "usd", "Free - $5"},
		{"single price", prices(1000, 1000), "usd", "$10"},
		{"range", prices(2500, 1000), "usd", "$10 - $25"},
		{"rounds to whole units", prices(1050), "usd", "$11"},
		{"thousands separator", prices(250000), "usd", "$2,500"},
		{"pounds", prices(1500), "gbp", "£15"},
		{"euros", prices(700, 900), "eur", "€7 - €9"},
		{"unknown currency", prices(2000), "chf", "CHF 20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := app.FormatPriceRange(tt.types, tt.currency); got != tt.want {
				t.Errorf("FormatPriceRange = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCapacity(t *testing.T) {
	types := []domain.TicketType{
		{QuantityTotal: 100, QuantityIssued: 40},
		{QuantityTotal: 50, QuantityIssued: 50},
	}
	capacity, remaining := app.Capacity(types)
	if capacity != 150 || remaining != 60 {
		t.Errorf("Capacity = %d/%d, want 150/60", capacity, remaining)
	}

	capacity, remaining = app.Capacity(nil)
	if capacity != 0 || remaining != 0 {
		t.Errorf("Capacity(nil) = %d/%d, want 0/0", capacity, remaining)
	}
}

func TestMapEvent(t *testing.T) {
	synced := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	ev := domain.RemoteEvent{
		ID:          "ev_1",
		Name:        "Summer Gala",
		Description: "<p>Dinner</p>",
		Status:      "live",
		Currency:    "GBP",
		Start:       domain.EventTime{Date: "2024-08-01", Unix: 1722513600},
		Venue:       domain.Venue{Name: "Town Hall", Country: "GB"},
		HeaderImage: "https://cdn.tickettailor.com/header.png",
		OnlineEvent: "true",
		TicketTypes: []domain.TicketType{
			{Price: 0, QuantityTotal: 10, QuantityIssued: 2},
			{Price: 1500, QuantityTotal: 20, QuantityIssued: 5},
		},
		Raw: []byte(`{"id":"ev_1"}`),
	}

	f := app.MapEvent(ev, domain.TenantScope("t-1"), synced)

	if f.Title != "Summer Gala" || f.Status != domain.DocumentPublished {
		t.Errorf("title/status = %q/%q", f.Title, f.Status)
	}
	if f.PriceDisplay != "Free - £15" {
		t.Errorf("PriceDisplay = %q", f.PriceDisplay)
	}
	if f.MinPrice != 0 || f.MaxPrice != 1500 {
		t.Errorf("prices = %d/%d", f.MinPrice, f.MaxPrice)
	}
	if f.Capacity != 30 || f.Remaining != 23 {
		t.Errorf("capacity = %d/%d, want 30/23", f.Capacity, f.Remaining)
	}
	if !f.StartAt.Equal(time.Unix(1722513600, 0)) {
		t.Errorf("StartAt = %v", f.StartAt)
	}
	if !f.EndAt.IsZero() {
		t.Errorf("EndAt = %v, want zero", f.EndAt)
	}
	if string(f.RawPayload) != `{"id":"ev_1"}` {
		t.Errorf("RawPayload = %s", f.RawPayload)
	}
	if !f.LastSyncedAt.Equal(synced) {
		t.Errorf("LastSyncedAt = %v", f.LastSyncedAt)
	}

	wantMeta := map[string]string{
		app.MetaRemoteEventID: "ev_1",
		app.MetaCurrency:      "gbp",
		app.MetaTenantID:      "t-1",
		app.MetaOnlineEvent:   "true",
		app.MetaPrivate:       "false",
		app.MetaTicketTypes:   "[]",
		app.MetaCapacity:      "30",
		app.MetaRemaining:     "23",
		"start_date":          "2024-08-01",
		"start_unix":          "1722513600",
		app.MetaLastSynced:    "2024-07-01T12:00:00Z",
	}
	for k, want := range wantMeta {
		if got := f.Meta[k]; got != want {
			t.Errorf("meta[%q] = %q, want %q", k, got, want)
		}
	}
}

func TestMapEvent_Defaults(t *testing.T) {
	f := app.MapEvent(domain.RemoteEvent{ID: "ev_2"}, domain.GlobalScope(), time.Now())

	if f.Title != "Untitled Event" {
		t.Errorf("Title = %q", f.Title)
	}
	if f.Status != domain.DocumentDraft {
		t.Errorf("Status = %q", f.Status)
	}
	if f.PriceDisplay != "Free" || f.Capacity != 0 {
		t.Errorf("price/capacity = %q/%d", f.PriceDisplay, f.Capacity)
	}
	if f.Meta[app.MetaCurrency] != domain.DefaultCurrency {
		t.Errorf("currency = %q", f.Meta[app.MetaCurrency])
	}
	if f.Meta[app.MetaTenantID] != "" {
		t.Errorf("tenant meta = %q, want empty", f.Meta[app.MetaTenantID])
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Alpha Box Office": "alpha-box-office",
		"  The  Venue! ":   "the-venue",
		"Café 2024":        "caf-2024",
		"***":              "box-office",
	}
	for in, want := range tests {
		if got := app.Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
