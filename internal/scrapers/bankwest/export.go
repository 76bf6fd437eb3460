package bankwest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// the columns the export contains when every transaction detail is selected
var exportHeader = []string{
	"BSB Number",
	"Account Number",
	"Transaction Date",
	"Narration",
	"Cheque Number",
	"Debit",
	"Credit",
	"Balance",
	"Transaction Type",
}

const (
	colBsb = iota
	colAccountNumber
	colDate
	colNarration
	colChequeNumber
	colDebit
	colCredit
	colBalance
	colType
)

var utf8Bom = []byte("\xef\xbb\xbf")

func isExportHeader(record []string) bool {
	if len(record) < len(exportHeader) {
		return false
	}
	for i, expected := range exportHeader {
		if !strings.EqualFold(strings.TrimSpace(record[i]), expected) {
			return false
		}
	}
	return true
}

func matchTransactionExport(_ context.Context, page *Page) (Result, error) {
	if page.MediaType() == "text/html" {
		return Result{}, fmt.Errorf("%w: served as html", ErrNoMatch)
	}

	body := bytes.TrimPrefix(page.Body, utf8Bom)
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("%w: read csv header: %v", ErrNoMatch, err)
	}
	if !isExportHeader(header) {
		return Result{}, fmt.Errorf("%w: not an export header", ErrNoMatch)
	}

	transactions, err := parseExportRows(reader)
	if err != nil {
		return Result{}, err
	}
	return Result{Transactions: transactions}, nil
}

func parseExportRows(reader *csv.Reader) ([]Transaction, error) {
	transactions := []Transaction{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("export line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < len(exportHeader) {
			return nil, fmt.Errorf(
				"export line %d: expected %d columns, got %d",
				line, len(exportHeader), len(record),
			)
		}

		tx, err := parseExportRecord(record)
		if err != nil {
			return nil, fmt.Errorf("export line %d: %w", line, err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

func parseExportRecord(record []string) (Transaction, error) {
	date, err := ParseDate(record[colDate])
	if err != nil {
		return Transaction{}, err
	}
	debit, err := parseMoney(record[colDebit])
	if err != nil {
		return Transaction{}, err
	}
	credit, err := parseMoney(record[colCredit])
	if err != nil {
		return Transaction{}, err
	}
	balance, err := parseMoney(record[colBalance])
	if err != nil {
		return Transaction{}, err
	}

	return Transaction{
		Bsb:           strings.TrimSpace(record[colBsb]),
		AccountNumber: strings.TrimSpace(record[colAccountNumber]),
		Date:          date,
		Narrative:     strings.TrimSpace(record[colNarration]),
		ChequeNumber:  strings.TrimSpace(record[colChequeNumber]),
		Amount:        credit.Sub(debit.Abs()),
		Balance:       balance,
		Type:          strings.TrimSpace(record[colType]),
	}, nil
}
