package domain

import "time"

type WalletStatus string

const (
	WalletStatusActive   WalletStatus = "active"
	WalletStatusInactive WalletStatus = "inactive"
	WalletStatusFrozen   WalletStatus = "frozen"
	WalletStatusClosed   WalletStatus = "closed"
)

type OwnerType string

const (
	OwnerTypeUser     OwnerType = "user"
	OwnerTypeMerchant OwnerType = "merchant"
	OwnerTypePlatform OwnerType = "platform"
)

// Wallet is a per-owner, per-currency balance container. Balance fields are
// mutated only through the primitives below so the non-negativity invariant
// holds after every operation.
type Wallet struct {
	ID        string       `json:"id"`
	OwnerType OwnerType    `json:"owner_type"`
	OwnerID   string       `json:"owner_id"`
	Currency  string       `json:"currency"`
	Available float64      `json:"available"`
	Locked    float64      `json:"locked"`
	Pending   float64      `json:"pending"`
	Status    WalletStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func NewWallet(ownerType OwnerType, ownerID, currency string) *Wallet {
	now := time.Now()
	return &Wallet{
		ID:        NewID(PrefixWallet),
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Currency:  currency,
		Status:    WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TotalBalance is available + locked + pending.
func (w *Wallet) TotalBalance() float64 {
	return w.Available + w.Locked + w.Pending
}

func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

func (w *Wallet) checkMutable() error {
	if !w.IsActive() {
		return ErrWalletNotActive
	}
	return nil
}

// LockFunds moves amount from available to locked.
func (w *Wallet) LockFunds(amount float64) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	if w.Available < amount {
		return ErrInsufficientFunds
	}
	w.Available -= amount
	w.Locked += amount
	w.UpdatedAt = time.Now()
	return nil
}

// UnlockFunds moves amount from locked back to available.
func (w *Wallet) UnlockFunds(amount float64) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	if w.Locked < amount {
		return ErrInsufficientLockedFunds
	}
	w.Locked -= amount
	w.Available += amount
	w.UpdatedAt = time.Now()
	return nil
}

// DeductFunds decreases available.
func (w *Wallet) DeductFunds(amount float64) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	if w.Available < amount {
		return ErrInsufficientFunds
	}
	w.Available -= amount
	w.UpdatedAt = time.Now()
	return nil
}

// AddFunds increases available. Used for credits, refunds and settlement.
func (w *Wallet) AddFunds(amount float64) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	w.Available += amount
	w.UpdatedAt = time.Now()
	return nil
}

// AddPending records an inbound credit that the provider has not settled yet.
// Pending funds are visible but not spendable.
func (w *Wallet) AddPending(amount float64) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	w.Pending += amount
	w.UpdatedAt = time.Now()
	return nil
}

// SettlePending moves a confirmed inbound credit from pending to available.
func (w *Wallet) SettlePending(amount float64) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	if w.Pending < amount {
		return ErrInsufficientPendingFunds
	}
	w.Pending -= amount
	w.Available += amount
	w.UpdatedAt = time.Now()
	return nil
}

// ReversePending drops an inbound credit the provider failed to settle.
func (w *Wallet) ReversePending(amount float64) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	if w.Pending < amount {
		return ErrInsufficientPendingFunds
	}
	w.Pending -= amount
	w.UpdatedAt = time.Now()
	return nil
}

// Freeze suspends all balance mutations until Unfreeze.
func (w *Wallet) Freeze() error {
	if w.Status == WalletStatusClosed {
		return ErrWalletNotActive
	}
	w.Status = WalletStatusFrozen
	w.UpdatedAt = time.Now()
	return nil
}

func (w *Wallet) Unfreeze() error {
	if w.Status != WalletStatusFrozen {
		return ErrWalletNotActive
	}
	w.Status = WalletStatusActive
	w.UpdatedAt = time.Now()
	return nil
}

// Close retires the wallet permanently. Only an emptied wallet may close.
func (w *Wallet) Close() error {
	if w.TotalBalance() != 0 {
		return ErrWalletNotEmpty
	}
	w.Status = WalletStatusClosed
	w.UpdatedAt = time.Now()
	return nil
}

// HasSufficientFunds reports whether the wallet can cover amount. It has no
// side effects.
func (w *Wallet) HasSufficientFunds(amount float64, includeLocked bool) bool {
	if includeLocked {
		return w.Available+w.Locked >= amount
	}
	return w.Available >= amount
}
