package domain

import "strings"

// ValueObject represents an immutable domain concept defined by its attributes.
type ValueObject interface {
	Equals(other ValueObject) bool
}

// BankDetails identifies a bank account a payout can be transferred to.
// Shared between escrow accounts and payout snapshots.
type BankDetails struct {
	bankCode          string
	accountNumber     string
	accountHolderName string
}

// NewBankDetails creates bank details. All three fields are required.
func NewBankDetails(bankCode, accountNumber, accountHolderName string) (BankDetails, bool) {
	bankCode = strings.TrimSpace(bankCode)
	accountNumber = strings.TrimSpace(accountNumber)
	accountHolderName = strings.TrimSpace(accountHolderName)
	if bankCode == "" || accountNumber == "" || accountHolderName == "" {
		return BankDetails{}, false
	}
	return BankDetails{
		bankCode:          bankCode,
		accountNumber:     accountNumber,
		accountHolderName: accountHolderName,
	}, true
}

func (b BankDetails) BankCode() string          { return b.bankCode }
func (b BankDetails) AccountNumber() string     { return b.accountNumber }
func (b BankDetails) AccountHolderName() string { return b.accountHolderName }

// IsComplete reports whether all fields required for a transfer are present.
func (b BankDetails) IsComplete() bool {
	return b.bankCode != "" && b.accountNumber != "" && b.accountHolderName != ""
}

// Equals checks value equality with another BankDetails.
func (b BankDetails) Equals(other ValueObject) bool {
	if o, ok := other.(BankDetails); ok {
		return b == o
	}
	return false
}
