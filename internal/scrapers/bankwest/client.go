// client.go contains the authenticated http client, it knows nothing about
// which pages exist on the bank's site.

package bankwest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"bankwest-session/internal/components/assert"
	"bankwest-session/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_get       = "client.get"
	report_client_post_form = "client.post-form"
)

const DefaultBaseUrl = "https://ibs.bankwest.com.au"

type ClientOptions struct {
	// BaseUrl is the origin the session cookies belong to, it defaults to
	// DefaultBaseUrl.
	BaseUrl string
	// Cookies are the cookies of an already logged in session, by name.
	Cookies map[string]string
	// BypassCloudflare wraps the transport so requests look like they come
	// from a browser.
	BypassCloudflare bool
	// Output receives a dump of every request/response, it can be nil.
	Output telemetry.MessageOutput
}

// Client is an http client holding the cookies of a session that was
// authenticated elsewhere. It is not safe for concurrent use since every
// request reads and writes the same cookie jar.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	tel telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("bankwest_scraper", tel)

	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	parsedBaseUrl, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("bankwest: parse base url: %w", err)
	}
	if !parsedBaseUrl.IsAbs() || parsedBaseUrl.Host == "" {
		return nil, fmt.Errorf("bankwest: base url '%s' is not absolute", baseUrl)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	cookies := make([]*http.Cookie, 0, len(opts.Cookies))
	for name, value := range opts.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:  name,
			Value: value,
			Path:  "/",
		})
	}
	jar.SetCookies(parsedBaseUrl, cookies)

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	if opts.BypassCloudflare {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(time.Second * 30)

	// 2 requests max per second
	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(2, 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.Output)

	return &Client{
		BaseUrl: parsedBaseUrl,
		Http:    httpClient,
		tel:     tel,
	}, nil
}

// Get fetches `uri` and returns it as the new current page.
func (c *Client) Get(ctx context.Context, uri string) (*Page, error) {
	c.tel.ReportDebug(report_client_get, uri)

	res, err := c.Http.R().
		SetContext(ctx).
		Get(uri)
	if err != nil {
		c.tel.ReportBroken(
			report_client_get,
			fmt.Errorf("fetch: %w", err),
			uri,
		)
		return nil, fmt.Errorf("bankwest: get %s: %w", uri, err)
	}
	return pageFromResponse(res), nil
}

// PostForm submits `fields` url-encoded to `uri` the way a browser submits a
// form.
func (c *Client) PostForm(ctx context.Context, uri string, fields map[string]string) (*Page, error) {
	c.tel.ReportDebug(report_client_post_form, uri, len(fields))

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(uri)
	if err != nil {
		c.tel.ReportBroken(
			report_client_post_form,
			fmt.Errorf("fetch: %w", err),
			uri,
		)
		return nil, fmt.Errorf("bankwest: post %s: %w", uri, err)
	}
	return pageFromResponse(res), nil
}
