package models

import "github.com/shopspring/decimal"

// Direction of money movement relative to the statement owner.
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// Channel is the payment rail a transaction used.
type Channel string

const (
	ChannelCard         Channel = "CARD"
	ChannelTransfer     Channel = "TRANSFER"
	ChannelBlikP2P      Channel = "BLIK_P2P"
	ChannelBlikMerchant Channel = "BLIK_MERCHANT"
	ChannelCash         Channel = "CASH"
	ChannelRefund       Channel = "REFUND"
	ChannelFee          Channel = "FEE"
	ChannelOther        Channel = "OTHER"
)

// RawTransaction is the parser output: one statement row, field-mapped but
// not yet cleaned, hashed or classified.
type RawTransaction struct {
	Date            string `json:"date"`                // ISO YYYY-MM-DD
	ValueDate       string `json:"valueDate,omitempty"` // ISO, optional
	Amount          Money  `json:"amount"`              // signed: negative = debit
	Currency        string `json:"currency"`            // 3-letter, default PLN
	BalanceAfter    *Money `json:"balanceAfter,omitempty"`
	CounterpartyRaw string `json:"counterpartyRaw"`
	Title           string `json:"title"`
	RawText         string `json:"rawText"`      // truncated to 500 chars downstream
	BankCategory    string `json:"bankCategory"` // bank's own code, e.g. TR.KART, P.BLIK
}

// Direction derives the movement direction; CREDIT iff amount >= 0.
func (t RawTransaction) Direction() Direction {
	if t.Amount.Sign() >= 0 {
		return DirectionCredit
	}
	return DirectionDebit
}

// StatementInfo holds the header-region metadata of one parsed statement.
type StatementInfo struct {
	BankID               string `json:"bankId"`
	BankName             string `json:"bankName"`
	AccountIBAN          string `json:"accountIban"` // masked for display
	AccountHolder        string `json:"accountHolder"`
	PeriodStart          string `json:"periodStart"` // ISO
	PeriodEnd            string `json:"periodEnd"`   // ISO
	OpeningBalance       *Money `json:"openingBalance,omitempty"`
	ClosingBalance       *Money `json:"closingBalance,omitempty"`
	AvailableBalance     *Money `json:"availableBalance,omitempty"`
	DeclaredCreditsSum   *Money `json:"declaredCreditsSum,omitempty"`
	DeclaredCreditsCount *int   `json:"declaredCreditsCount,omitempty"`
	DeclaredDebitsSum    *Money `json:"declaredDebitsSum,omitempty"` // absolute value
	DeclaredDebitsCount  *int   `json:"declaredDebitsCount,omitempty"`
	Currency             string `json:"currency"`
}

// RuleExplain records a single rule-engine decision for auditability.
type RuleExplain struct {
	Rule    string `json:"rule"`    // e.g. "category:gambling:bookmaker"
	Pattern string `json:"pattern"` // the regex that fired
	Matched string `json:"matched"` // what it was attributed as
}

// NormalizedTransaction is a RawTransaction after cleaning, dedup hashing,
// channel tagging and rule classification.
type NormalizedTransaction struct {
	ID          string `json:"id"` // 32-hex UUID
	StatementID string `json:"statementId"`
	RawTransaction
	CounterpartyClean string        `json:"counterpartyClean"`
	TitleClean        string        `json:"titleClean"`
	CounterpartyID    string        `json:"counterpartyId,omitempty"` // memory link
	Channel           Channel       `json:"channel"`
	Category          string        `json:"category,omitempty"`
	Subcategory       string        `json:"subcategory,omitempty"`
	RiskTags          []string      `json:"riskTags,omitempty"`
	RiskScore         int           `json:"riskScore"` // 0-100 after clamping
	RuleExplains      []RuleExplain `json:"ruleExplains,omitempty"`
	IsWhitelisted     bool          `json:"isWhitelisted,omitempty"`
	IsBlacklisted     bool          `json:"isBlacklisted,omitempty"`
	IsRecurring       bool          `json:"isRecurring,omitempty"`
	RecurringGroup    string        `json:"recurringGroup,omitempty"`
	URLs              []string      `json:"urls,omitempty"`
	TxHash            string        `json:"txHash"` // 16-hex SHA-256 prefix
}

// HasRiskTag reports whether the transaction carries the given tag.
func (t *NormalizedTransaction) HasRiskTag(tag string) bool {
	for _, rt := range t.RiskTags {
		if rt == tag {
			return true
		}
	}
	return false
}

// AbsAmount is the magnitude of the transaction amount.
func (t *NormalizedTransaction) AbsAmount() Money {
	return t.Amount.Abs()
}

// SumAmounts adds a slice of monetary values exactly.
func SumAmounts(values []Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
