package domain

import "time"

// LedgerAccount distinguishes the two balance kinds the ledger mutates.
type LedgerAccount string

const (
	LedgerAccountBusinessCredits LedgerAccount = "business_credits"
	LedgerAccountModelRoyalty    LedgerAccount = "model_royalty"
)

// LedgerTransaction is one immutable accounting record: the signed amount
// applied plus the balance that resulted. Rows are append-only.
type LedgerTransaction struct {
	ID        string
	Account   LedgerAccount
	OwnerID   string
	Amount    int64
	Balance   int64
	Reason    string
	RefID     string
	CreatedAt time.Time
}
