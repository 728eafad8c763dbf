// Package ofx parses OFX/QFX statement exports into review transactions, so
// a case can be run from a statement file when the bank API is unavailable.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/moneypennybank/amlflow/internal/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// Statement is a parsed OFX file: the account it belongs to and its
// transactions in statement order.
type Statement struct {
	AccountNumber string
	Transactions  []model.Transaction
}

// ParseFile parses an OFX/QFX file into per-account statements.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]Statement, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var statements []Statement
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		out := Statement{AccountNumber: string(stmt.BankAcctFrom.AcctID)}
		for _, ofxTx := range stmt.BankTranList.Transactions {
			out.Transactions = append(out.Transactions, p.convertTransaction(ofxTx))
		}
		statements = append(statements, out)
	}

	slog.Info("Parsed OFX file",
		"statements", len(statements))

	return statements, nil
}

// convertTransaction maps an OFX transaction to the review model.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction) model.Transaction {
	amountFloat, _ := ofxTx.TrnAmt.Float64()
	amount := amountFloat
	if amount < 0 {
		amount = -amount
	}

	trnType := fmt.Sprintf("%v", ofxTx.TrnType)
	txn := model.Transaction{
		ID:               string(ofxTx.FiTID),
		Timestamp:        ofxTx.DtPosted.Time,
		Amount:           amount,
		Currency:         "USD",
		Type:             reviewType(trnType, amountFloat),
		Description:      strings.TrimSpace(string(ofxTx.Memo)),
		CounterpartyName: counterpartyName(ofxTx),
		Cash:             isCashType(trnType),
	}
	if txn.Description == "" {
		txn.Description = strings.TrimSpace(string(ofxTx.Name))
	}
	if txn.ID == "" {
		txn.ID = txn.Hash()
	}
	return txn
}

// reviewType maps OFX transaction types onto the directions the pattern
// rules understand. Ambiguous types fall back to the amount's sign.
func reviewType(trnType string, signedAmount float64) string {
	switch strings.ToUpper(trnType) {
	case "DEP", "DIRECTDEP", "CREDIT", "INT":
		return "deposit"
	case "ATM", "CASH":
		if signedAmount >= 0 {
			return "deposit"
		}
		return "withdrawal"
	case "XFER":
		if signedAmount >= 0 {
			return "transfer_in"
		}
		return "transfer_out"
	case "POS", "PAYMENT", "CHECK", "DEBIT":
		return "card_payment"
	}
	if signedAmount >= 0 {
		return "deposit"
	}
	return "withdrawal"
}

func isCashType(trnType string) bool {
	switch strings.ToUpper(trnType) {
	case "ATM", "CASH":
		return true
	}
	return false
}

// counterpartyName prefers the PAYEE record, falling back to NAME.
func counterpartyName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}
	return strings.TrimSpace(string(tx.Name))
}
