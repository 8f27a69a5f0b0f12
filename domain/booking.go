package domain

import "time"

// IdentifierAttr selects which rental event attribute guests authenticate
// with.
type IdentifierAttr string

const (
	IdentifierSlotCode IdentifierAttr = "slot_code"
	IdentifierSlotName IdentifierAttr = "slot_name"
	IdentifierLastFour IdentifierAttr = "last_four"
)

// IntegrationConfig stores the per-integration booking source configuration.
type IntegrationConfig struct {
	ID                   string         `bson:"_id" json:"id"`
	IntegrationID        string         `bson:"integration_id" json:"integration_id"`
	IdentifierAttr       IdentifierAttr `bson:"identifier_attr" json:"identifier_attr"`
	CheckoutGraceMinutes int            `bson:"checkout_grace_minutes" json:"checkout_grace_minutes"` // 0-30
	LastSyncUTC          time.Time      `bson:"last_sync_utc,omitempty" json:"last_sync_utc,omitempty"`
	StaleCount           int            `bson:"stale_count" json:"stale_count"`
}

// RentalEvent is a cached booking window synchronized from the property
// management integration. The stored window is the raw booking window; the
// checkout grace period is applied only at grant creation, never persisted
// here.
type RentalEvent struct {
	ID            string    `bson:"_id" json:"id"`
	IntegrationID string    `bson:"integration_id" json:"integration_id"`
	EventIndex    int       `bson:"event_index" json:"event_index"`
	SlotName      string    `bson:"slot_name,omitempty" json:"slot_name,omitempty"`
	SlotCode      string    `bson:"slot_code,omitempty" json:"slot_code,omitempty"` // ^\d{4,}$
	LastFour      string    `bson:"last_four,omitempty" json:"last_four,omitempty"` // ^\d{4}$
	StartUTC      time.Time `bson:"start_utc" json:"start_utc"`
	EndUTC        time.Time `bson:"end_utc" json:"end_utc"`
	RawAttributes string    `bson:"raw_attributes,omitempty" json:"-"`
	CreatedUTC    time.Time `bson:"created_utc" json:"created_utc"`
	UpdatedUTC    time.Time `bson:"updated_utc" json:"updated_utc"`
}

// AttrValue returns the event's value for the given identifier attribute.
func (e *RentalEvent) AttrValue(attr IdentifierAttr) string {
	switch attr {
	case IdentifierSlotCode:
		return e.SlotCode
	case IdentifierSlotName:
		return e.SlotName
	case IdentifierLastFour:
		return e.LastFour
	default:
		return ""
	}
}

// Identifier returns the stored, case-preserved identifier for the event,
// preferring the configured attribute and falling back to slot code then
// slot name when the preferred attribute is absent on this record. Upstream
// data is sometimes incomplete per record even when the integration prefers
// one attribute.
func (e *RentalEvent) Identifier(preferred IdentifierAttr) string {
	if v := e.AttrValue(preferred); v != "" {
		return v
	}
	if e.SlotCode != "" {
		return e.SlotCode
	}
	return e.SlotName
}

// IdentifierChain returns the lookup order for a configured attribute:
// the configured attribute first, then slot code, then slot name, without
// duplicates.
func IdentifierChain(preferred IdentifierAttr) []IdentifierAttr {
	chain := []IdentifierAttr{preferred}
	for _, attr := range []IdentifierAttr{IdentifierSlotCode, IdentifierSlotName} {
		if attr != preferred {
			chain = append(chain, attr)
		}
	}
	return chain
}
