package domain

// RemoteEvent is one record from the upstream event listing.
type RemoteEvent struct {
	ID          string
	SeriesID    string
	Name        string
	Description string
	Status      string
	Currency    string
	Timezone    string
	Start       EventTime
	End         EventTime
	Venue       Venue

	HeaderImage    string
	ThumbnailImage string
	CheckoutURL    string
	URL            string
	CallToAction   string

	// Upstream sends these flags as "true"/"false" strings.
	OnlineEvent      string
	Private          string
	Hidden           string
	TicketsAvailable string

	Revenue            int64
	TotalOrders        int64
	TotalIssuedTickets int64

	TicketTypes    []TicketType
	RawTicketTypes []byte
	Raw            []byte
}

// EventTime mirrors the upstream start/end objects.
type EventTime struct {
	Date      string
	Time      string
	Formatted string
	ISO       string
	Unix      int64
}

type Venue struct {
	Name       string
	Country    string
	PostalCode string
}

// TicketType is a priced ticket tier. Price is in minor currency units.
type TicketType struct {
	ID             string
	Name           string
	Price          int64
	QuantityTotal  int64
	QuantityIssued int64
}

// AccountOverview is the subset of the upstream account summary used to
// validate credentials and seed tenant defaults.
type AccountOverview struct {
	BoxOfficeName string
	Currency      string
}
