package bankwest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"bankwest-session/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const searchFormId = "aspnetForm"

var unknownExportFailure = regexp.MustCompile(`(?i)export failed for an unknown reason`)

func pageDocument(page *Page) (*goquery.Document, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	return doc, nil
}

func matchLogin(_ context.Context, page *Page) (Result, error) {
	doc, err := pageDocument(page)
	if err != nil {
		return Result{}, err
	}
	if doc.Find("form input[type=password]").Length() == 0 {
		return Result{}, fmt.Errorf("%w: no password input", ErrNoMatch)
	}
	return Result{}, nil
}

func matchLogout(_ context.Context, page *Page) (Result, error) {
	doc, err := pageDocument(page)
	if err != nil {
		return Result{}, err
	}
	heading := strings.ToLower(htmlutil.SelectionText(doc.Find("title, h1, h2")))
	if !strings.Contains(heading, "logged out") {
		return Result{}, fmt.Errorf("%w: no logged out heading", ErrNoMatch)
	}
	return Result{}, nil
}

func matchAccounts(_ context.Context, page *Page) (Result, error) {
	doc, err := pageDocument(page)
	if err != nil {
		return Result{}, err
	}
	grid := doc.Find("table[id$=grdBalances]")
	if grid.Length() == 0 {
		return Result{}, fmt.Errorf("%w: no balances grid", ErrNoMatch)
	}

	accounts := []Account{}
	var rowErr error
	grid.First().Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 4 {
			// header and footer rows
			return true
		}
		number := htmlutil.SelectionText(cells.Eq(1))
		if !accountPattern.MatchString(number) {
			// totals and other summary rows
			return true
		}

		balance, err := parseMoney(cells.Eq(2).Text())
		if err != nil {
			rowErr = fmt.Errorf("balances grid row %d: %w", i, err)
			return false
		}
		available, err := parseMoney(cells.Eq(3).Text())
		if err != nil {
			rowErr = fmt.Errorf("balances grid row %d: %w", i, err)
			return false
		}

		accounts = append(accounts, Account{
			Name:      htmlutil.SelectionText(cells.Eq(0)),
			Number:    number,
			Balance:   balance,
			Available: available,
		})
		return true
	})
	if rowErr != nil {
		return Result{}, rowErr
	}

	return Result{Accounts: accounts}, nil
}

func matchTransactionSearch(_ context.Context, page *Page) (Result, error) {
	doc, err := pageDocument(page)
	if err != nil {
		return Result{}, err
	}
	form, err := htmlutil.FindForm(doc, searchFormId)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	if form.Find("select[name$=ddlAccount]").Length() == 0 {
		return Result{}, fmt.Errorf("%w: no account selector", ErrNoMatch)
	}

	var messages []string
	doc.Find("[id$=ValidationSummary] li, span[id$=lblError]").Each(func(_ int, s *goquery.Selection) {
		text := htmlutil.SelectionText(s)
		if text != "" {
			messages = append(messages, text)
		}
	})

	for _, m := range messages {
		if unknownExportFailure.MatchString(m) {
			return Result{}, &ExportFailedError{
				Reason:   ExportFailureUnknown,
				Messages: messages,
			}
		}
	}

	return Result{Messages: messages}, nil
}
