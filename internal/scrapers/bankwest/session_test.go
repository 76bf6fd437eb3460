package bankwest

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"bankwest-session/internal/components/telemetry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	//go:embed testdata/accounts.html
	accountsPage []byte
	//go:embed testdata/login.html
	loginPage []byte
	//go:embed testdata/logout.html
	logoutPage []byte
	//go:embed testdata/unexpected.html
	unexpectedPage []byte
	//go:embed testdata/search.html
	searchPage []byte
	//go:embed testdata/search_rejected.html
	searchRejectedPage []byte
	//go:embed testdata/search_stale_failure.html
	searchStaleFailurePage []byte
	//go:embed testdata/export.csv
	exportCsv []byte
)

const (
	accountsPath     = "/CMWeb/AccountManagement/AccountSummary.aspx"
	transactionsPath = "/CMWeb/AccountInformation/TS/TransactionSearch.aspx"
	logoutPath       = "/CMWeb/Logout.aspx"

	sessionCookie = "ASP.NET_SessionId"
)

type response struct {
	body        []byte
	contentType string
}

func htmlResponse(body []byte) response {
	return response{body: body, contentType: "text/html; charset=utf-8"}
}

func csvResponse(body []byte) response {
	return response{body: body, contentType: "text/csv"}
}

// mockBank serves a fixed response per page, any request without the session
// cookie gets the login page like the real site.
type mockBank struct {
	server *httptest.Server

	accounts response
	search   response
	export   response
	logout   response

	lock        sync.Mutex
	requests    int
	submissions []url.Values
}

func newMockBank(t testing.TB) *mockBank {
	bank := &mockBank{
		accounts: htmlResponse(accountsPage),
		search:   htmlResponse(searchPage),
		export:   csvResponse(exportCsv),
		logout:   htmlResponse(logoutPage),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(accountsPath, func(w http.ResponseWriter, r *http.Request) {
		bank.serve(w, r, bank.accounts)
	})
	mux.HandleFunc(transactionsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			bank.serve(w, r, bank.search)
			return
		}
		err := r.ParseForm()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		bank.lock.Lock()
		bank.submissions = append(bank.submissions, r.PostForm)
		bank.lock.Unlock()
		bank.serve(w, r, bank.export)
	})
	mux.HandleFunc(logoutPath, func(w http.ResponseWriter, r *http.Request) {
		bank.serve(w, r, bank.logout)
	})

	bank.server = httptest.NewServer(mux)
	t.Cleanup(bank.server.Close)
	return bank
}

func (b *mockBank) serve(w http.ResponseWriter, r *http.Request, res response) {
	b.lock.Lock()
	b.requests++
	b.lock.Unlock()

	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		res = htmlResponse(loginPage)
	}
	w.Header().Set("content-type", res.contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(res.body)
}

func (b *mockBank) requestCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.requests
}

func (b *mockBank) session(t testing.TB, tel telemetry.API, authenticated bool) *Session {
	cookies := map[string]string{}
	if authenticated {
		cookies[sessionCookie] = "qx3vbf55hb2pan45ftq1dn45"
	}

	client, err := NewClient(ClientOptions{
		BaseUrl: b.server.URL,
		Cookies: cookies,
	}, tel)
	if err != nil {
		t.Fatal(err)
	}

	session, err := NewSession(client, SessionOptions{
		AccountsUri:     b.server.URL + accountsPath,
		TransactionsUri: b.server.URL + transactionsPath,
		LogoutUri:       b.server.URL + logoutPath,
	}, tel)
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func mustDate(t testing.TB, s string) time.Time {
	date, err := ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return date
}

func TestListAccounts(t *testing.T) {
	bank := newMockBank(t)
	session := bank.session(t, telemetry.NewRecorder(), true)

	accounts, err := session.ListAccounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, accounts, 3)

	// order is whatever the user arranged in the web ui
	require.Equal(t, "Hero Saver", accounts[0].Name)
	require.Equal(t, "303-111 0054321", accounts[0].Number)
	require.Equal(t, "Easy Transaction", accounts[1].Name)
	require.Equal(t, "303-111 0012345", accounts[1].Number)
	require.Equal(t, "Breeze Mastercard", accounts[2].Name)

	require.True(t, decimal.RequireFromString("12500").Equal(accounts[0].Balance))
	require.True(t, decimal.RequireFromString("1234.56").Equal(accounts[1].Balance))
	require.True(t, decimal.RequireFromString("1200").Equal(accounts[1].Available))
	require.True(t, decimal.RequireFromString("-80.15").Equal(accounts[2].Balance))

	require.Equal(t, bank.server.URL+accountsPath, session.CurrentPage().Url.String())
}

func TestListAccountsNoAccounts(t *testing.T) {
	bank := newMockBank(t)
	bank.accounts = htmlResponse([]byte(`<html><body>
		<table id="ctl00_ctl00_cphBody_cphMainBody_grdBalances">
			<tr><th>Account</th><th>BSB / Account Number</th><th>Current Balance</th><th>Available Balance</th></tr>
		</table>
	</body></html>`))
	session := bank.session(t, telemetry.NewRecorder(), true)

	accounts, err := session.ListAccounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.NotNil(t, accounts)
	require.Len(t, accounts, 0)
}

func TestListAccountsSessionExpired(t *testing.T) {
	bank := newMockBank(t)
	session := bank.session(t, telemetry.NewRecorder(), false)

	accounts, err := session.ListAccounts(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Nil(t, accounts)
}

func TestListAccountsUnexpectedPage(t *testing.T) {
	bank := newMockBank(t)
	bank.accounts = htmlResponse(unexpectedPage)
	tel := telemetry.NewRecorder()
	session := bank.session(t, tel, true)

	_, err := session.ListAccounts(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedPage)
	require.NotErrorIs(t, err, ErrSessionExpired)

	var pageErr *UnexpectedPageError
	require.True(t, errors.As(err, &pageErr))
	require.Equal(t, []Shape{ShapeAccounts, ShapeLogin}, pageErr.Accepted)
	require.NotErrorIs(t, err, ErrNoMatch)
	require.Contains(t, tel.BrokenIds(), "bankwest_scraper: session.list-accounts")
}

func TestExportTransactions(t *testing.T) {
	bank := newMockBank(t)
	session := bank.session(t, telemetry.NewRecorder(), true)

	transactions, err := session.ExportTransactions(
		context.Background(),
		"303-111 0012345",
		mustDate(t, "31/12/2012"),
		time.Time{},
	)
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, bank.submissions, 1)
	form := bank.submissions[0]

	require.Equal(t, "303-111 0012345", form.Get(fieldAccount))
	require.Equal(t, "31/12/2012", form.Get(fieldDateFrom))
	require.Contains(t, form, fieldDateTo)
	require.Equal(t, "", form.Get(fieldDateTo))
	require.Equal(t, eventTargetExport, form.Get(fieldEventTarget))
	require.Equal(t, exportColumnsAll, form.Get(fieldExportColumns))

	// hidden tokens of the search page are echoed back
	require.Equal(t, "/wEPDwUJNzE4NjQ2MjQ3D2QWAmYPZBYCAgMPZBYCAgEPZBYEAgEPDxYCHgRUZXh0BQ", form.Get("__VIEWSTATE"))
	require.Equal(t, "4A3C1F2E", form.Get("__VIEWSTATEGENERATOR"))
	require.Equal(t, "/wEWDgKo2pXbDQLt9/mPBgKrzNiiDwK3r5aDBQ", form.Get("__EVENTVALIDATION"))
	require.Contains(t, form, "__EVENTARGUMENT")

	require.Len(t, transactions, 3)
	for _, tx := range transactions {
		require.NotEmpty(t, tx.Narrative)
		require.False(t, tx.Amount.IsZero())
	}

	require.Equal(t, "WOOLWORTHS 4321 PERTH, AU", transactions[0].Narrative)
	require.True(t, decimal.RequireFromString("-54.20").Equal(transactions[0].Amount))
	require.Equal(t, mustDate(t, "02/01/2013"), transactions[0].Date)
	require.Equal(t, "303-111", transactions[0].Bsb)
	require.Equal(t, "0012345", transactions[0].AccountNumber)

	require.Equal(t, "SALARY ACME PTY LTD", transactions[1].Narrative)
	require.True(t, decimal.RequireFromString("2500").Equal(transactions[1].Amount))
	require.True(t, decimal.RequireFromString("3680.36").Equal(transactions[1].Balance))

	require.Equal(t, "000123", transactions[2].ChequeNumber)
	require.Equal(t, "CHQ", transactions[2].Type)
}

func TestExportTransactionsWithToDate(t *testing.T) {
	bank := newMockBank(t)
	session := bank.session(t, telemetry.NewRecorder(), true)

	_, err := session.ExportTransactions(
		context.Background(),
		"303-111 0012345",
		mustDate(t, "01/01/2013"),
		mustDate(t, "31/01/2013"),
	)
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, bank.submissions, 1)
	require.Equal(t, "01/01/2013", bank.submissions[0].Get(fieldDateFrom))
	require.Equal(t, "31/01/2013", bank.submissions[0].Get(fieldDateTo))
}

func TestExportTransactionsKeepsCallerDates(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatal(err)
	}
	bank := newMockBank(t)
	session := bank.session(t, telemetry.NewRecorder(), true)

	// midnight in Sydney is still the day before in Perth
	_, err = session.ExportTransactions(
		context.Background(),
		"303-111 0012345",
		time.Date(2012, 12, 31, 0, 0, 0, 0, sydney),
		time.Date(2013, 1, 31, 0, 0, 0, 0, sydney),
	)
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, bank.submissions, 1)
	require.Equal(t, "31/12/2012", bank.submissions[0].Get(fieldDateFrom))
	require.Equal(t, "31/01/2013", bank.submissions[0].Get(fieldDateTo))
}

func TestExportTransactionsSearchPageUnexpected(t *testing.T) {
	bank := newMockBank(t)
	bank.search = htmlResponse(unexpectedPage)
	tel := telemetry.NewRecorder()
	session := bank.session(t, tel, true)

	transactions, err := session.ExportTransactions(
		context.Background(),
		"303-111 0012345",
		mustDate(t, "31/12/2012"),
		time.Time{},
	)
	require.ErrorIs(t, err, ErrUnexpectedPage)
	require.NotErrorIs(t, err, ErrExportFailed)
	require.Nil(t, transactions)
	require.Len(t, bank.submissions, 0)
	require.Equal(t, 1, bank.requestCount())
	require.Contains(t, tel.BrokenIds(), "bankwest_scraper: session.export-transactions")
}

func TestExportTransactionsSearchPageUnreachable(t *testing.T) {
	bank := newMockBank(t)
	session := bank.session(t, telemetry.NewRecorder(), true)
	bank.server.Close()

	transactions, err := session.ExportTransactions(
		context.Background(),
		"303-111 0012345",
		mustDate(t, "31/12/2012"),
		time.Time{},
	)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnexpectedPage)
	require.NotErrorIs(t, err, ErrExportFailed)
	require.NotErrorIs(t, err, ErrSessionExpired)
	require.Nil(t, transactions)
	require.Len(t, bank.submissions, 0)
	require.Nil(t, session.CurrentPage())
}

func TestExportTransactionsIgnoresStaleFailure(t *testing.T) {
	bank := newMockBank(t)
	bank.search = htmlResponse(searchStaleFailurePage)
	tel := telemetry.NewRecorder()
	session := bank.session(t, tel, true)

	transactions, err := session.ExportTransactions(
		context.Background(),
		"303-111 0012345",
		mustDate(t, "31/12/2012"),
		time.Time{},
	)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, transactions, 3)
	require.Len(t, bank.submissions, 1)
	require.Contains(t, tel.WarningIds(), "bankwest_scraper: session.export-transactions")
}

func TestExportTransactionsRejected(t *testing.T) {
	bank := newMockBank(t)
	bank.export = htmlResponse(searchRejectedPage)
	session := bank.session(t, telemetry.NewRecorder(), true)

	transactions, err := session.ExportTransactions(
		context.Background(),
		"303-111 0012345",
		mustDate(t, "31/12/2012"),
		time.Time{},
	)
	require.Nil(t, transactions)
	require.ErrorIs(t, err, ErrExportFailed)

	var exportErr *ExportFailedError
	require.True(t, errors.As(err, &exportErr))
	require.Equal(t, ExportFailureRejected, exportErr.Reason)
	require.Equal(t, []string{
		"The From Date cannot be in the future.",
		"The To Date cannot be before the From Date.",
	}, exportErr.Messages)
}

func TestExportTransactionsRejectedWithoutMessages(t *testing.T) {
	bank := newMockBank(t)
	bank.export = htmlResponse(searchPage)
	session := bank.session(t, telemetry.NewRecorder(), true)

	_, err := session.ExportTransactions(
		context.Background(),
		"303-111 0012345",
		mustDate(t, "31/12/2012"),
		time.Time{},
	)

	var exportErr *ExportFailedError
	require.True(t, errors.As(err, &exportErr))
	require.Equal(t, ExportFailureRejected, exportErr.Reason)
	require.Empty(t, exportErr.Messages)
}

func TestExportTransactionsUnknownFailureOnSubmit(t *testing.T) {
	bank := newMockBank(t)
	bank.export = htmlResponse(searchStaleFailurePage)
	session := bank.session(t, telemetry.NewRecorder(), true)

	_, err := session.ExportTransactions(
		context.Background(),
		"303-111 0012345",
		mustDate(t, "31/12/2012"),
		time.Time{},
	)

	var exportErr *ExportFailedError
	require.True(t, errors.As(err, &exportErr))
	require.Equal(t, ExportFailureUnknown, exportErr.Reason)
}

func TestExportTransactionsSessionExpired(t *testing.T) {
	t.Run("SearchPage", func(t *testing.T) {
		bank := newMockBank(t)
		session := bank.session(t, telemetry.NewRecorder(), false)

		transactions, err := session.ExportTransactions(
			context.Background(),
			"303-111 0012345",
			mustDate(t, "31/12/2012"),
			time.Time{},
		)
		require.ErrorIs(t, err, ErrSessionExpired)
		require.Nil(t, transactions)
		require.Len(t, bank.submissions, 0)
	})

	t.Run("Submission", func(t *testing.T) {
		bank := newMockBank(t)
		bank.export = htmlResponse(loginPage)
		session := bank.session(t, telemetry.NewRecorder(), true)

		transactions, err := session.ExportTransactions(
			context.Background(),
			"303-111 0012345",
			mustDate(t, "31/12/2012"),
			time.Time{},
		)
		require.ErrorIs(t, err, ErrSessionExpired)
		require.NotErrorIs(t, err, ErrExportFailed)
		require.Nil(t, transactions)
	})
}

func TestExportTransactionsInvalidQuery(t *testing.T) {
	bank := newMockBank(t)
	session := bank.session(t, telemetry.NewRecorder(), true)

	table := []struct {
		account string
		from    time.Time
	}{
		{account: "3031110012345", from: mustDate(t, "31/12/2012")},
		{account: "303-111 12345", from: mustDate(t, "31/12/2012")},
		{account: "", from: mustDate(t, "31/12/2012")},
		{account: "303-111 0012345", from: time.Time{}},
	}

	for _, row := range table {
		_, err := session.ExportTransactions(context.Background(), row.account, row.from, time.Time{})
		require.Error(t, err)
	}
	require.Equal(t, 0, bank.requestCount())
}

func TestLogout(t *testing.T) {
	t.Run("LoggedOut", func(t *testing.T) {
		bank := newMockBank(t)
		session := bank.session(t, telemetry.NewRecorder(), true)
		require.NoError(t, session.Logout(context.Background()))
	})

	t.Run("AlreadyLoggedOut", func(t *testing.T) {
		bank := newMockBank(t)
		session := bank.session(t, telemetry.NewRecorder(), false)
		require.NoError(t, session.Logout(context.Background()))
	})

	t.Run("UnexpectedPage", func(t *testing.T) {
		bank := newMockBank(t)
		bank.logout = htmlResponse(unexpectedPage)
		session := bank.session(t, telemetry.NewRecorder(), true)

		err := session.Logout(context.Background())
		require.ErrorIs(t, err, ErrUnexpectedPage)
	})
}

func TestNewSessionUris(t *testing.T) {
	client, err := NewClient(ClientOptions{}, telemetry.NewRecorder())
	if err != nil {
		t.Fatal(err)
	}

	session, err := NewSession(client, SessionOptions{}, telemetry.NewRecorder())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, DefaultAccountsUri, session.accountsUri.String())
	require.Equal(t, DefaultTransactionsUri, session.transactionsUri.String())
	require.Equal(t, DefaultLogoutUri, session.logoutUri.String())
	require.Nil(t, session.CurrentPage())

	_, err = NewSession(client, SessionOptions{
		AccountsUri: "/CMWeb/AccountManagement/AccountSummary.aspx",
	}, telemetry.NewRecorder())
	require.Error(t, err)

	_, err = NewSession(client, SessionOptions{
		LogoutUri: "://bad",
	}, telemetry.NewRecorder())
	require.Error(t, err)
}
