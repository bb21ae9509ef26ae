package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a client fuel order. Financial fields are snapshotted at approval.
type Order struct {
	ID                 uint64              `gorm:"primaryKey" json:"id"`
	OrderRef           string              `gorm:"column:order_ref;size:16;index" json:"order_ref"`
	ClientID           string              `gorm:"column:client_id;size:64;index" json:"client_id"`
	OMC                string              `gorm:"column:omc;size:128;index" json:"omc"`
	BDCName            string              `gorm:"column:bdc_name;size:128;index" json:"bdc_name"`
	Depot              string              `gorm:"column:depot;size:128" json:"depot"`
	Product            string              `gorm:"column:product;size:64;index" json:"product"`
	Region             string              `gorm:"column:region;size:64" json:"region"`
	VehicleNumber      string              `gorm:"column:vehicle_number;size:32" json:"vehicle_number"`
	DriverName         string              `gorm:"column:driver_name;size:128" json:"driver_name"`
	DriverPhone        string              `gorm:"column:driver_phone;size:32" json:"driver_phone"`
	Quantity           decimal.Decimal     `gorm:"column:quantity;type:decimal(14,2);not null;default:0" json:"quantity"`
	PBDCOMC            decimal.NullDecimal `gorm:"column:p_bdc_omc;type:decimal(14,4)" json:"p_bdc_omc"`
	SBDCOMC            decimal.NullDecimal `gorm:"column:s_bdc_omc;type:decimal(14,4)" json:"s_bdc_omc"`
	PTax               decimal.NullDecimal `gorm:"column:p_tax;type:decimal(14,4)" json:"p_tax"`
	STax               decimal.NullDecimal `gorm:"column:s_tax;type:decimal(14,4)" json:"s_tax"`
	STaxAlt            decimal.NullDecimal `gorm:"column:s_tax_alt;type:decimal(14,4)" json:"-"`
	OrderType          string              `gorm:"column:order_type;size:16" json:"order_type"`
	TotalDebt          decimal.NullDecimal `gorm:"column:total_debt;type:decimal(14,2)" json:"total_debt"`
	Margin             decimal.NullDecimal `gorm:"column:margin;type:decimal(14,2)" json:"margin"`
	MarginPrice        decimal.NullDecimal `gorm:"column:margin_price;type:decimal(14,2)" json:"margin_price"`
	MarginTax          decimal.NullDecimal `gorm:"column:margin_tax;type:decimal(14,2)" json:"margin_tax"`
	TotalMarginPerUnit decimal.NullDecimal `gorm:"column:total_margin_per_unit;type:decimal(14,2)" json:"total_margin_per_unit"`
	Expected           decimal.NullDecimal `gorm:"column:expected;type:decimal(14,2)" json:"expected"`
	TotalReturns       decimal.NullDecimal `gorm:"column:total_returns;type:decimal(14,2)" json:"total_returns"`
	ReturnsTotal       decimal.NullDecimal `gorm:"column:returns_total;type:decimal(14,2)" json:"returns_total"`
	Status             string              `gorm:"column:status;size:16;not null;default:pending;index" json:"status"`
	TaxPaymentStatus   string              `gorm:"column:tax_payment_status;size:16;not null;default:''" json:"tax_payment_status"`
	TaxPaidAmount      decimal.Decimal     `gorm:"column:tax_paid_amount;type:decimal(14,2);not null;default:0" json:"tax_paid_amount"`
	TaxPaidAt          *time.Time          `gorm:"column:tax_paid_at" json:"tax_paid_at,omitempty"`
	TaxReference       *string             `gorm:"column:tax_reference;size:128" json:"tax_reference,omitempty"`
	TaxPaidBy          *string             `gorm:"column:tax_paid_by;size:128" json:"tax_paid_by,omitempty"`
	Shareholder        string              `gorm:"column:shareholder;size:64;index" json:"shareholder"`
	DeliveryStatus     string              `gorm:"column:delivery_status;size:32;not null;default:pending" json:"delivery_status"`
	TTSStatus          string              `gorm:"column:tts_status;size:64" json:"tts_status"`
	NPAStatus          string              `gorm:"column:npa_status;size:64" json:"npa_status"`
	OrderedAt          time.Time           `gorm:"column:ordered_at;index" json:"ordered_at"`
	DueDate            *time.Time          `gorm:"column:due_date" json:"due_date,omitempty"`
	CreatedAt          time.Time           `json:"-"`
	UpdatedAt          time.Time           `json:"-"`
}

// Key is the string form of the order id used by loosely-typed references.
func (o *Order) Key() string {
	return strconv.FormatUint(o.ID, 10)
}

// Payment is a client or bank receipt. Only confirmed receipts count.
type Payment struct {
	ID           uint64          `gorm:"primaryKey" json:"id"`
	OrderOID     *uint64         `gorm:"column:order_oid;index" json:"order_oid,omitempty"`
	OrderKey     *string         `gorm:"column:order_key;size:64;index" json:"order_key,omitempty"`
	ClientID     string          `gorm:"column:client_id;size:64;index" json:"client_id"`
	OMC          string          `gorm:"column:omc;size:128" json:"omc"`
	BankName     string          `gorm:"column:bank_name;size:128;index" json:"bank_name"`
	AccountLast4 string          `gorm:"column:account_last4;size:4" json:"account_last4"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	Reference    string          `gorm:"column:reference;size:128" json:"reference"`
	Status       string          `gorm:"column:status;size:16;not null;default:pending;index" json:"status"`
	Date         time.Time       `gorm:"column:date;index" json:"date"`
	CreatedAt    time.Time       `json:"-"`
	UpdatedAt    time.Time       `json:"-"`
}

// EmbeddedPayment is a payment captured on the order itself at approval.
type EmbeddedPayment struct {
	ID             uint64          `gorm:"primaryKey" json:"id"`
	OrderID        uint64          `gorm:"column:order_id;index;not null" json:"order_id"`
	PaymentType    string          `gorm:"column:payment_type;size:32" json:"payment_type"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	Shareholder    string          `gorm:"column:shareholder;size:64" json:"shareholder"`
	DeliveryStatus string          `gorm:"column:delivery_status;size:32" json:"delivery_status"`
	Date           time.Time       `gorm:"column:date" json:"date"`
}

func (EmbeddedPayment) TableName() string { return "order_payment_details" }

// TaxRecord is an append-only tax payment entry.
type TaxRecord struct {
	ID           uint64          `gorm:"primaryKey" json:"id"`
	Type         string          `gorm:"column:type;size:32;not null" json:"type"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	PaymentDate  time.Time       `gorm:"column:payment_date;index" json:"payment_date"`
	Reference    *string         `gorm:"column:reference;size:128" json:"reference,omitempty"`
	PaidBy       *string         `gorm:"column:paid_by;size:128" json:"paid_by,omitempty"`
	OMC          string          `gorm:"column:omc;size:128;index" json:"omc"`
	OrderCode    string          `gorm:"column:order_code;size:16" json:"order_code"`
	OrderOID     *uint64         `gorm:"column:order_oid;index" json:"order_oid,omitempty"`
	OrderKey     *string         `gorm:"column:order_key;size:64;index" json:"order_key,omitempty"`
	SourceBankID *uint64         `gorm:"column:source_bank_id;index" json:"source_bank_id,omitempty"`
	SubmittedAt  time.Time       `gorm:"column:submitted_at" json:"submitted_at"`
}

type BankAccount struct {
	ID            uint64    `gorm:"primaryKey" json:"id"`
	BankName      string    `gorm:"column:bank_name;size:128;not null" json:"bank_name"`
	AccountName   string    `gorm:"column:account_name;size:128" json:"account_name"`
	AccountNumber string    `gorm:"column:account_number;size:64;not null" json:"account_number"`
	CreatedAt     time.Time `json:"-"`
}

// Last4 returns the trailing digits used to match receipts to this account.
func (b *BankAccount) Last4() string {
	if len(b.AccountNumber) <= 4 {
		return b.AccountNumber
	}
	return b.AccountNumber[len(b.AccountNumber)-4:]
}

// SharedTaxRate holds the manually curated per-unit rates for a product.
type SharedTaxRate struct {
	ID              uint64              `gorm:"primaryKey" json:"id"`
	Product         string              `gorm:"column:product;size:64;uniqueIndex;not null" json:"product"`
	TotalTax        decimal.Decimal     `gorm:"column:total_tax;type:decimal(14,4);not null;default:0" json:"total_tax"`
	GRATax          decimal.Decimal     `gorm:"column:gra_tax;type:decimal(14,4);not null;default:0" json:"gra_tax"`
	NPALifeTax      decimal.NullDecimal `gorm:"column:npa_life_tax;type:decimal(14,4)" json:"npa_life_tax"`
	NPAComponentTax decimal.NullDecimal `gorm:"column:npa_component_tax;type:decimal(14,4)" json:"npa_component_tax"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type ShareLink struct {
	ID        uint64     `gorm:"primaryKey" json:"id"`
	Token     string     `gorm:"column:token;size:64;uniqueIndex;not null" json:"token"`
	BDCName   string     `gorm:"column:bdc_name;size:128;not null" json:"bdc_name"`
	PassHash  string     `gorm:"column:pass_hash;size:128;not null" json:"-"`
	CreatedBy string     `gorm:"column:created_by;size:64" json:"created_by,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	ExpiresAt time.Time  `gorm:"column:expires_at" json:"expires_at"`
	RevokedAt *time.Time `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
}

// Valid reports whether the link is neither revoked nor expired at now.
func (l *ShareLink) Valid(now time.Time) bool {
	if l == nil || l.RevokedAt != nil {
		return false
	}
	return l.ExpiresAt.IsZero() || !l.ExpiresAt.Before(now)
}

type ShareLinkAudit struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	ShareLinkID uint64    `gorm:"column:share_link_id;index;not null" json:"share_link_id"`
	Type        string    `gorm:"column:type;size:16;not null" json:"type"`
	At          time.Time `gorm:"column:at" json:"at"`
	By          string    `gorm:"column:by_user;size:64" json:"by,omitempty"`
	IP          string    `gorm:"column:ip;size:64" json:"ip,omitempty"`
	OrderID     *uint64   `gorm:"column:order_id" json:"order_id,omitempty"`
	TTS         *string   `gorm:"column:tts;size:64" json:"tts,omitempty"`
	NPA         *string   `gorm:"column:npa;size:64" json:"npa,omitempty"`
}

type DeliveryHistory struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	OrderID      uint64    `gorm:"column:order_id;index;not null" json:"order_id"`
	TTSStatus    *string   `gorm:"column:tts_status;size:64" json:"tts_status,omitempty"`
	NPAStatus    *string   `gorm:"column:npa_status;size:64" json:"npa_status,omitempty"`
	ByShareToken string    `gorm:"column:by_share_token;size:64" json:"by_share_token"`
	Timestamp    time.Time `gorm:"column:timestamp" json:"timestamp"`
}

func (DeliveryHistory) TableName() string { return "delivery_history" }

// Order status constants
const (
	OrderStatusPending  = "pending"
	OrderStatusApproved = "approved"
)

// Order type constants
const (
	OrderTypeSale  = "s_bdc"
	OrderTypeTax   = "s_tax"
	OrderTypeCombo = "combo"
)

// Tax payment status constants
const (
	TaxPaymentUnset   = ""
	TaxPaymentPartial = "partial"
	TaxPaymentPaid    = "paid"
)

// Payment status constants
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentRejected  = "rejected"
)

// TaxRecordTypeSTax is the type written for S-Tax payments.
const TaxRecordTypeSTax = "S-Tax"

// NeutralShareholder marks orders excluded from shareholder splits.
const NeutralShareholder = "neutral"

// ShareLinkAudit types
const (
	AuditCreate = "create"
	AuditUnlock = "unlock"
	AuditUpdate = "update"
	AuditRevoke = "revoke"
)

// DeliveryStatusOptions are the TTS/NPA states a partner may set.
var DeliveryStatusOptions = []string{
	"Ordered", "Approved", "GoodStanding", "Depot Manager",
	"BRV check pass", "BRV check unpass", "Loading", "Loaded",
	"Moved", "Released",
}
