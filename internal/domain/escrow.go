package domain

import "time"

type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusFunded   EscrowStatus = "funded"
	EscrowStatusActive   EscrowStatus = "active"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
	EscrowStatusDisputed EscrowStatus = "disputed"
	EscrowStatusExpired  EscrowStatus = "expired"
)

type DisputeStatus string

const (
	DisputeStatusOpen          DisputeStatus = "open"
	DisputeStatusInvestigating DisputeStatus = "investigating"
	DisputeStatusResolved      DisputeStatus = "resolved"
	DisputeStatusClosed        DisputeStatus = "closed"
)

// EscrowParty couples a user with the wallet funds move through.
type EscrowParty struct {
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
}

// Condition is a named criterion gating fund release. Conditions are
// append-only once the escrow is active and each toggles fulfilled exactly
// once.
type Condition struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Fulfilled   bool       `json:"fulfilled"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
	FulfilledBy string     `json:"fulfilled_by,omitempty"`
	Evidence    []string   `json:"evidence,omitempty"`
}

type Dispute struct {
	ID          string        `json:"id"`
	RaisedBy    string        `json:"raised_by"`
	Reason      string        `json:"reason"`
	Description string        `json:"description,omitempty"`
	Status      DisputeStatus `json:"status"`
	Evidence    []string      `json:"evidence,omitempty"`
	RaisedAt    time.Time     `json:"raised_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

type ReleaseSettings struct {
	AutoRelease          bool       `json:"auto_release"`
	AutoReleaseDate      *time.Time `json:"auto_release_date,omitempty"`
	RequireAllConditions bool       `json:"require_all_conditions"`
}

type EscrowFees struct {
	EscrowFee     float64 `json:"escrow_fee"`
	ProcessingFee float64 `json:"processing_fee"`
	TotalFee      float64 `json:"total_fee"`
}

// Escrow is a conditional hold coupling a payer and payee wallet through one
// originating escrow_hold transaction.
type Escrow struct {
	ID              string          `json:"id"`
	TransactionID   string          `json:"transaction_id"`
	Amount          float64         `json:"amount"`
	Currency        string          `json:"currency"`
	Payer           EscrowParty     `json:"payer"`
	Payee           EscrowParty     `json:"payee"`
	Conditions      []Condition     `json:"conditions"`
	Disputes        []Dispute       `json:"disputes,omitempty"`
	Status          EscrowStatus    `json:"status"`
	ReleaseSettings ReleaseSettings `json:"release_settings"`
	Fees            EscrowFees      `json:"fees"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ReleasedAt      *time.Time      `json:"released_at,omitempty"`
	RefundedAt      *time.Time      `json:"refunded_at,omitempty"`
}

func NewEscrow(amount float64, currency string, payer, payee EscrowParty, settings ReleaseSettings, expiresAt *time.Time) *Escrow {
	now := time.Now()
	fee := amount * EscrowFeeRate
	return &Escrow{
		ID:              NewID(PrefixEscrow),
		Amount:          amount,
		Currency:        currency,
		Payer:           payer,
		Payee:           payee,
		Status:          EscrowStatusPending,
		ReleaseSettings: settings,
		Fees:            EscrowFees{EscrowFee: fee, TotalFee: fee},
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NetReleaseAmount is what the payee receives on release: the held amount
// minus the escrow fee.
func (e *Escrow) NetReleaseAmount() float64 {
	return e.Amount - e.Fees.TotalFee
}

// Activate moves a freshly funded escrow into the active state where
// conditions may be fulfilled.
func (e *Escrow) Activate() error {
	if e.Status != EscrowStatusPending && e.Status != EscrowStatusFunded {
		return ErrEscrowNotActive
	}
	e.Status = EscrowStatusActive
	e.UpdatedAt = time.Now()
	return nil
}

func (e *Escrow) MarkReleased() error {
	if !e.Releasable() {
		return ErrEscrowNotActive
	}
	now := time.Now()
	e.Status = EscrowStatusReleased
	e.ReleasedAt = &now
	e.UpdatedAt = now
	return nil
}

func (e *Escrow) MarkRefunded() error {
	if !e.Releasable() {
		return ErrEscrowNotActive
	}
	now := time.Now()
	e.Status = EscrowStatusRefunded
	e.RefundedAt = &now
	e.UpdatedAt = now
	return nil
}

func (e *Escrow) MarkExpired() error {
	if !e.Releasable() {
		return ErrEscrowNotActive
	}
	e.Status = EscrowStatusExpired
	e.UpdatedAt = time.Now()
	return nil
}

// AddCondition appends a release criterion. Conditions may only be added
// while funds can still move.
func (e *Escrow) AddCondition(condType, description string) (*Condition, error) {
	if !e.Releasable() {
		return nil, ErrEscrowNotActive
	}
	e.Conditions = append(e.Conditions, Condition{
		ID:          NewID(PrefixCondition),
		Type:        condType,
		Description: description,
	})
	e.UpdatedAt = time.Now()
	return &e.Conditions[len(e.Conditions)-1], nil
}

// FulfillCondition toggles a condition exactly once.
func (e *Escrow) FulfillCondition(conditionID, userID string, evidence []string) error {
	c := e.FindCondition(conditionID)
	if c == nil {
		return ErrConditionNotFound
	}
	if c.Fulfilled {
		return ErrConditionFulfilled
	}
	now := time.Now()
	c.Fulfilled = true
	c.FulfilledAt = &now
	c.FulfilledBy = userID
	c.Evidence = append(c.Evidence, evidence...)
	e.UpdatedAt = now
	return nil
}

// RaiseDispute records a new open dispute and flags the escrow disputed.
func (e *Escrow) RaiseDispute(userID, reason, description string) (*Dispute, error) {
	if !e.Releasable() && e.Status != EscrowStatusFunded {
		return nil, ErrEscrowNotActive
	}
	e.Disputes = append(e.Disputes, Dispute{
		ID:          NewID(PrefixDispute),
		RaisedBy:    userID,
		Reason:      reason,
		Description: description,
		Status:      DisputeStatusOpen,
		RaisedAt:    time.Now(),
	})
	e.Status = EscrowStatusDisputed
	e.UpdatedAt = time.Now()
	return &e.Disputes[len(e.Disputes)-1], nil
}

// IsParty reports whether userID is the payer or the payee.
func (e *Escrow) IsParty(userID string) bool {
	return userID == e.Payer.UserID || userID == e.Payee.UserID
}

// ConditionsSatisfied evaluates the release gate. AND semantics by default;
// with RequireAllConditions false a single fulfilled condition qualifies.
// An escrow with no conditions is vacuously satisfied.
func (e *Escrow) ConditionsSatisfied() bool {
	if len(e.Conditions) == 0 {
		return true
	}
	fulfilled := 0
	for _, c := range e.Conditions {
		if c.Fulfilled {
			fulfilled++
		}
	}
	if e.ReleaseSettings.RequireAllConditions {
		return fulfilled == len(e.Conditions)
	}
	return fulfilled > 0
}

// FindCondition returns a pointer into the conditions slice or nil.
func (e *Escrow) FindCondition(conditionID string) *Condition {
	for i := range e.Conditions {
		if e.Conditions[i].ID == conditionID {
			return &e.Conditions[i]
		}
	}
	return nil
}

// FindDispute returns a pointer into the disputes slice or nil.
func (e *Escrow) FindDispute(disputeID string) *Dispute {
	for i := range e.Disputes {
		if e.Disputes[i].ID == disputeID {
			return &e.Disputes[i]
		}
	}
	return nil
}

// HasOpenDispute reports whether any dispute is still open or under
// investigation.
func (e *Escrow) HasOpenDispute() bool {
	for _, d := range e.Disputes {
		if d.Status == DisputeStatusOpen || d.Status == DisputeStatusInvestigating {
			return true
		}
	}
	return false
}

// IsExpired reports whether the escrow passed its expiry, when one is set.
func (e *Escrow) IsExpired() bool {
	return e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt)
}

// Releasable is true for the statuses funds may still leave from.
func (e *Escrow) Releasable() bool {
	return e.Status == EscrowStatusActive || e.Status == EscrowStatusDisputed
}
