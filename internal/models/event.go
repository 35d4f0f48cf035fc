package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies a real-time auction event.
type EventType string

const (
	EventBidPlaced      EventType = "bid_placed"
	EventAuctionStarted EventType = "auction_started"
	EventAuctionEnded   EventType = "auction_ended"
	EventTimeExtended   EventType = "time_extended"
	EventBidRetracted   EventType = "bid_retracted"
)

// Event is the envelope delivered over the real-time channel. Data carries
// the payload for Type; consumers decode it with the typed accessors below
// and ignore envelopes whose type they do not know.
type Event struct {
	Type      EventType       `json:"type"`
	AuctionID string          `json:"auction_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// BidPlacedPayload is the data of a bid_placed event.
type BidPlacedPayload struct {
	Bid Bid `json:"bid"`
}

// AuctionStartedPayload is the data of an auction_started event.
type AuctionStartedPayload struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// AuctionEndedPayload is the data of an auction_ended event.
type AuctionEndedPayload struct {
	WinnerID   string  `json:"winner_id,omitempty"`
	FinalPrice float64 `json:"final_price"`
}

// TimeExtendedPayload is the data of a time_extended event (anti-snipe).
type TimeExtendedPayload struct {
	NewEndTime time.Time `json:"new_end_time"`
}

// BidRetractedPayload is the data of a bid_retracted event. Declared for the
// wire vocabulary; retraction is not reconciled client-side.
type BidRetractedPayload struct {
	BidID string `json:"bid_id"`
}

// NewEvent builds an envelope for auctionID with the given payload marshalled
// into Data.
func NewEvent(t EventType, auctionID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("event %s: marshal payload: %w", t, err)
	}
	return Event{Type: t, AuctionID: auctionID, Data: data, Timestamp: time.Now().UTC()}, nil
}

// BidPlaced decodes the payload of a bid_placed event.
func (e Event) BidPlaced() (BidPlacedPayload, error) {
	var p BidPlacedPayload
	return p, e.decode(EventBidPlaced, &p)
}

// AuctionStarted decodes the payload of an auction_started event.
func (e Event) AuctionStarted() (AuctionStartedPayload, error) {
	var p AuctionStartedPayload
	return p, e.decode(EventAuctionStarted, &p)
}

// AuctionEnded decodes the payload of an auction_ended event.
func (e Event) AuctionEnded() (AuctionEndedPayload, error) {
	var p AuctionEndedPayload
	return p, e.decode(EventAuctionEnded, &p)
}

// TimeExtended decodes the payload of a time_extended event.
func (e Event) TimeExtended() (TimeExtendedPayload, error) {
	var p TimeExtendedPayload
	return p, e.decode(EventTimeExtended, &p)
}

func (e Event) decode(want EventType, out any) error {
	if e.Type != want {
		return fmt.Errorf("event: cannot decode %s payload from %s event", want, e.Type)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("event %s: decode payload: %w", e.Type, err)
	}
	return nil
}
