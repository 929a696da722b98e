package app

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/neomorfeo/boxsync/internal/domain"
)

// Metadata keys written alongside every mirrored event.
const (
	MetaRemoteEventID    = "remote_event_id"
	MetaSeriesID         = "event_series_id"
	MetaRemoteStatus     = "remote_status"
	MetaCurrency         = "currency"
	MetaTenantID         = "tenant_id"
	MetaTimezone         = "timezone"
	MetaVenueName        = "venue_name"
	MetaVenueCountry     = "venue_country"
	MetaVenuePostalCode  = "venue_postal_code"
	MetaImageHeader      = "image_header"
	MetaImageThumbnail   = "image_thumbnail"
	MetaCheckoutURL      = "checkout_url"
	MetaEventURL         = "event_url"
	MetaCallToAction     = "call_to_action"
	MetaOnlineEvent      = "online_event"
	MetaPrivate          = "private"
	MetaHidden           = "hidden"
	MetaTicketsAvailable = "tickets_available"
	MetaRevenue          = "revenue"
	MetaTotalOrders      = "total_orders"
	MetaTotalIssued      = "total_issued_tickets"
	MetaTicketTypes      = "ticket_types"
	MetaMinPrice         = "min_price"
	MetaMaxPrice         = "max_price"
	MetaPriceDisplay     = "price_display"
	MetaCapacity         = "total_capacity"
	MetaRemaining        = "tickets_remaining"
	MetaLastSynced       = "last_synced"
)

// MapStatus converts an upstream event status to a local document status.
func MapStatus(remote string) domain.DocumentStatus {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case "published", "live", "past":
		return domain.DocumentPublished
	default:
		return domain.DocumentDraft
	}
}

var priceFormatter = message.NewPrinter(language.English)

// CurrencySymbol returns the display prefix for a currency code.
func CurrencySymbol(code string) string {
	switch strings.ToLower(code) {
	case "", "usd", "cad", "aud", "nzd":
		return "$"
	case "gbp":
		return "£"
	case "eur":
		return "€"
	default:
		return strings.ToUpper(code) + " "
	}
}

// PriceRange returns the lowest and highest ticket price in minor units.
// Both are zero when there are no ticket types.
func PriceRange(types []domain.TicketType) (minPrice, maxPrice int64) {
	for i, tt := range types {
		if i == 0 || tt.Price < minPrice {
			minPrice = tt.Price
		}
		if i == 0 || tt.Price > maxPrice {
			maxPrice = tt.Price
		}
	}
	return minPrice, maxPrice
}

// FormatPriceRange renders a price summary such as "Free", "$10" or
// "Free - $5". Amounts are rounded to whole units.
func FormatPriceRange(types []domain.TicketType, currency string) string {
	if len(types) == 0 {
		return "Free"
	}
	minPrice, maxPrice := PriceRange(types)
	if minPrice == 0 && maxPrice == 0 {
		return "Free"
	}

	symbol := CurrencySymbol(currency)
	label := func(cents int64) string {
		if cents == 0 {
			return "Free"
		}
		return symbol + priceFormatter.Sprintf("%d", int64(math.Round(float64(cents)/100)))
	}

	if minPrice == maxPrice {
		return label(minPrice)
	}
	return label(minPrice) + " - " + label(maxPrice)
}

// Capacity returns the total ticket quantity and what is still unsold.
func Capacity(types []domain.TicketType) (capacity, remaining int64) {
	var issued int64
	for _, tt := range types {
		capacity += tt.QuantityTotal
		issued += tt.QuantityIssued
	}
	return capacity, capacity - issued
}

// MapEvent derives the local document fields for a remote event.
func MapEvent(ev domain.RemoteEvent, scope domain.Scope, syncedAt time.Time) domain.EventFields {
	currency := strings.ToLower(ev.Currency)
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	title := ev.Name
	if title == "" {
		title = "Untitled Event"
	}

	minPrice, maxPrice := PriceRange(ev.TicketTypes)
	capacity, remaining := Capacity(ev.TicketTypes)
	display := FormatPriceRange(ev.TicketTypes, currency)

	ticketTypes := string(ev.RawTicketTypes)
	if ticketTypes == "" {
		ticketTypes = "[]"
	}
	tenantID, _ := scope.TenantID()

	meta := map[string]string{
		MetaRemoteEventID:    ev.ID,
		MetaSeriesID:         ev.SeriesID,
		MetaRemoteStatus:     ev.Status,
		MetaCurrency:         currency,
		MetaTenantID:         tenantID,
		MetaTimezone:         ev.Timezone,
		MetaVenueName:        ev.Venue.Name,
		MetaVenueCountry:     ev.Venue.Country,
		MetaVenuePostalCode:  ev.Venue.PostalCode,
		MetaImageHeader:      ev.HeaderImage,
		MetaImageThumbnail:   ev.ThumbnailImage,
		MetaCheckoutURL:      ev.CheckoutURL,
		MetaEventURL:         ev.URL,
		MetaCallToAction:     ev.CallToAction,
		MetaOnlineEvent:      flag(ev.OnlineEvent),
		MetaPrivate:          flag(ev.Private),
		MetaHidden:           flag(ev.Hidden),
		MetaTicketsAvailable: flag(ev.TicketsAvailable),
		MetaRevenue:          strconv.FormatInt(ev.Revenue, 10),
		MetaTotalOrders:      strconv.FormatInt(ev.TotalOrders, 10),
		MetaTotalIssued:      strconv.FormatInt(ev.TotalIssuedTickets, 10),
		MetaTicketTypes:      ticketTypes,
		MetaMinPrice:         strconv.FormatInt(minPrice, 10),
		MetaMaxPrice:         strconv.FormatInt(maxPrice, 10),
		MetaPriceDisplay:     display,
		MetaCapacity:         strconv.FormatInt(capacity, 10),
		MetaRemaining:        strconv.FormatInt(remaining, 10),
		MetaLastSynced:       syncedAt.UTC().Format(time.RFC3339),
	}
	addTimeMeta(meta, "start", ev.Start)
	addTimeMeta(meta, "end", ev.End)

	return domain.EventFields{
		Title:        title,
		Description:  ev.Description,
		Status:       MapStatus(ev.Status),
		StartAt:      eventInstant(ev.Start),
		EndAt:        eventInstant(ev.End),
		VenueName:    ev.Venue.Name,
		PriceDisplay: display,
		MinPrice:     minPrice,
		MaxPrice:     maxPrice,
		Capacity:     capacity,
		Remaining:    remaining,
		ImageURL:     ev.HeaderImage,
		RawPayload:   ev.Raw,
		LastSyncedAt: syncedAt,
		Meta:         meta,
	}
}

func addTimeMeta(meta map[string]string, prefix string, t domain.EventTime) {
	meta[prefix+"_date"] = t.Date
	meta[prefix+"_time"] = t.Time
	meta[prefix+"_formatted"] = t.Formatted
	meta[prefix+"_iso"] = t.ISO
	meta[prefix+"_unix"] = strconv.FormatInt(t.Unix, 10)
}

func eventInstant(t domain.EventTime) time.Time {
	if t.Unix > 0 {
		return time.Unix(t.Unix, 0).UTC()
	}
	if ts, err := time.Parse(time.RFC3339, t.ISO); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}

func flag(v string) string {
	if v == "" {
		return "false"
	}
	return v
}
