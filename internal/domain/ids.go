package domain

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// ledgerPrefix tags ledger entry ids, e.g. "led_01h2xcejqtf2nbrexx3vqjhp41".
const ledgerPrefix = "led"

// NewLedgerEntryID returns a K-sortable ledger entry id.
func NewLedgerEntryID() string {
	tid, err := typeid.Generate(ledgerPrefix)
	if err != nil {
		panic(fmt.Sprintf("domain: ledger id: %v", err))
	}
	return tid.String()
}
