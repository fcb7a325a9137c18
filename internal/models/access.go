package models

import "time"

// RequestKind tags an inbound access request at the messaging boundary.
// The subscriber decides the kind so services never sniff payload shapes.
type RequestKind string

const (
	KindRFID       RequestKind = "rfid"
	KindQRGenerate RequestKind = "qr_generate"
	KindQRScan     RequestKind = "qr_scan"
)

// AccessRequest is an inbound admission request (RFID badge or QR payload).
type AccessRequest struct {
	Kind       RequestKind `json:"kind"`
	Identifier string      `json:"identifier"`
	ReceivedAt time.Time   `json:"received_at"`
}

// RFIDCard mirrors one row of the rfid_cards ledger table.
// Read-only from this service's perspective.
type RFIDCard struct {
	CardUID   string    `json:"card_uid"`
	OwnerName string    `json:"owner_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CodeStatus is the lifecycle state of a payable QR code.
type CodeStatus string

const (
	CodeActive  CodeStatus = "active"
	CodePaid    CodeStatus = "paid"
	CodeUsed    CodeStatus = "used"
	CodeExpired CodeStatus = "expired"
)

// Terminal reports whether no further status transition is valid.
func (s CodeStatus) Terminal() bool {
	return s == CodeUsed || s == CodeExpired
}

// PendingCode is a QR code awaiting payment, owned by the pending registry.
type PendingCode struct {
	Code               string     `json:"code"`
	Status             CodeStatus `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	PlacesAtGeneration int        `json:"places_at_generation"`
}

// AccessCode mirrors one row of the access_codes ledger table.
type AccessCode struct {
	Code      string     `json:"access_code"`
	Status    CodeStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Transaction mirrors one completed payment row tied to an access code.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"access_code"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Denial reason codes carried on every refused decision.
const (
	ReasonNotFound    = "not_found"
	ReasonInactive    = "inactive"
	ReasonInvalid     = "invalid"
	ReasonAlreadyUsed = "already_used"
	ReasonExpired     = "expired"
	ReasonUnpaid      = "unpaid"
	ReasonParkingFull = "parking_full"
	ReasonLedgerError = "ledger_error"
	ReasonParseError  = "parse_error"
)

// BarrierCommand is published on the barrier command topic.
type BarrierCommand struct {
	Action    string `json:"action"` // "open" or "stay_closed"
	Method    string `json:"method,omitempty"`
	User      string `json:"user,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Available int    `json:"available"`
	Message   string `json:"message"`
}

// Barrier actions.
const (
	ActionOpen       = "open"
	ActionStayClosed = "stay_closed"
)

// AccessResponse is the reply published on the rfid/qr response topics.
type AccessResponse struct {
	Kind          RequestKind `json:"-"`      // selects the response topic
	Status        string      `json:"status"` // granted / denied / rejected / received / paid
	Reason        string      `json:"reason,omitempty"`
	Valid         bool        `json:"valid"`
	CardUID       string      `json:"card_uid,omitempty"`
	Owner         string      `json:"owner,omitempty"`
	Code          string      `json:"code,omitempty"`
	TransactionID string      `json:"transaction_id,omitempty"`
	UserID        string      `json:"user_id,omitempty"`
	Available     int         `json:"available,omitempty"`
	Total         int         `json:"total,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// AccessLog is one best-effort row in the access_logs audit table.
type AccessLog struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	AccessType string    `json:"access_type"` // "rfid" or "qr"
	Status     string    `json:"status"`
	OwnerName  string    `json:"owner_name"`
	Timestamp  time.Time `json:"timestamp"`
}
