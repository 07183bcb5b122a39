// Package fetch retrieves retailer pages the way a browser would, retrying according to
// a fixed state machine when the retailer pushes back.
package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"pricetracker-backend/internal/components/chrono"
	"pricetracker-backend/internal/components/telemetry"
	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/internal/scraper"
	"pricetracker-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("pricetracker.internal.scraper.fetch")

const (
	report_fetch_fetch   = "client.fetch"
	report_fetch_attempt = "client.attempt"
	report_fetch_blocked = "client.blocked"
)

// HumanDelay configures the randomized pause taken before every attempt.
type HumanDelay struct {
	Min time.Duration
	Max time.Duration
	// BusinessStart and BusinessEnd are inclusive hours of the day (local to the clock)
	// during which the delay is multiplied by BusinessFactor.
	BusinessStart  int
	BusinessEnd    int
	BusinessFactor float64
}

// DefaultHumanDelay waits 1-3 seconds, 20% longer between 9:00 and 17:59.
var DefaultHumanDelay = HumanDelay{
	Min:            time.Second,
	Max:            3 * time.Second,
	BusinessStart:  9,
	BusinessEnd:    17,
	BusinessFactor: 1.2,
}

type Options struct {
	// Timeout bounds a single attempt, it defaults to 30 seconds.
	Timeout    time.Duration
	HumanDelay *HumanDelay
	// RequestsPerSecond limits attempts across every Fetch made through the client, 0
	// means unlimited.
	RequestsPerSecond float64

	// Transport replaces the per-fetch cloudflare bypass transport, tests use this to
	// fake retailers.
	Transport http.RoundTripper
	// Sleep replaces the context aware wall clock sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  *rand.Rand
	Clock chrono.TimeAPI
	Tel   telemetry.API
	// Dump receives every request/response pair verbatim, nil disables dumping.
	Dump restyutil.InstrumentOutput
}

// Client is safe for concurrent use, every Fetch runs in its own session.
type Client struct {
	timeout   time.Duration
	delay     HumanDelay
	limiter   *rate.Limiter
	transport http.RoundTripper
	sleep     func(ctx context.Context, d time.Duration) error
	rndm      *lockedRand
	clock     chrono.TimeAPI
	tel       telemetry.API
	dump      restyutil.InstrumentOutput
}

func NewClient(opts Options) *Client {
	c := &Client{
		timeout:   opts.Timeout,
		delay:     DefaultHumanDelay,
		transport: opts.Transport,
		sleep:     opts.Sleep,
		clock:     opts.Clock,
		tel:       opts.Tel,
		dump:      opts.Dump,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if opts.HumanDelay != nil {
		c.delay = *opts.HumanDelay
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	rndm := opts.Rand
	if rndm == nil {
		rndm = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	c.rndm = &lockedRand{rndm: rndm}
	if c.clock == nil {
		c.clock = chrono.NewStandardTime(nil)
	}
	if c.tel == nil {
		c.tel = telemetry.SlogAPI{}
	}
	c.tel = telemetry.NewScopedAPI("fetch", c.tel)
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.sleep(ctx, d)
}

// humanDelay returns the pre-request pause for the current time of day.
func (c *Client) humanDelay() time.Duration {
	d := c.delay.Min
	if c.delay.Max > c.delay.Min {
		d += time.Duration(c.rndm.Float64() * float64(c.delay.Max-c.delay.Min))
	}
	hour := c.clock.Now().Hour()
	if hour >= c.delay.BusinessStart && hour <= c.delay.BusinessEnd && c.delay.BusinessFactor > 0 {
		d = time.Duration(float64(d) * c.delay.BusinessFactor)
	}
	return d
}

// session is the scoped state of a single Fetch call, nothing in it outlives the call.
type session struct {
	http  *resty.Client
	owned *http.Transport
}

func (c *Client) newSession(target *url.URL) (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if r, err := retailer.Detect(target.String()); err == nil {
		c.rndm.mutex.Lock()
		cookies := retailer.SessionCookies(r, c.rndm.rndm, c.clock.Now())
		c.rndm.mutex.Unlock()
		jar.SetCookies(target, cookies)
	}

	s := &session{}
	transport := c.transport
	if transport == nil {
		s.owned = http.DefaultTransport.(*http.Transport).Clone()
		transport = cloudflarebp.AddCloudFlareByPass(s.owned)
	}

	httpClient := resty.NewWithClient(&http.Client{
		Transport: transport,
		Jar:       jar,
	})
	httpClient.SetTimeout(c.timeout)
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if c.limiter != nil {
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return c.limiter.Wait(req.Context())
		})
	}
	telemetry.InstrumentResty(httpClient, c.tel)
	restyutil.InstrumentClient(httpClient, tracer, c.dump)

	s.http = httpClient
	return s, nil
}

func (s *session) close() {
	if s.owned != nil {
		s.owned.CloseIdleConnections()
	}
}

// Fetch returns the body of the page at rawUrl. It fails with a *scraper.ScraperError once
// the retry state machine gives up, or with the context's error if ctx is done first.
func (c *Client) Fetch(ctx context.Context, rawUrl string) (string, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawUrl))

	target, err := url.Parse(rawUrl)
	if err != nil || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		span.SetStatus(codes.Error, "invalid url")
		return "", scraper.Errorf(scraper.CauseUnsupported, rawUrl, "invalid url")
	}

	sess, err := c.newSession(target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create session")
		c.tel.ReportBroken(report_fetch_fetch, fmt.Errorf("create session: %w", err), rawUrl)
		return "", scraper.Errorf(scraper.CauseConnectionFailed, rawUrl, "create session: %w", err)
	}
	defer sess.close()

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		err = c.wait(ctx, c.humanDelay())
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", rawUrl, err)
		}

		res, err := sess.http.R().
			SetContext(ctx).
			SetHeaders(identity(c.rndm, target)).
			Get(rawUrl)

		var o outcome
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("fetch %s: %w", rawUrl, ctx.Err())
			}
			o = classifyError(err)
		} else {
			o = classifyStatus(res.StatusCode())
		}
		span.AddEvent(o.String())

		d := decide(c.rndm, o, attempt)
		if d.done {
			body := res.String()
			if LooksBlocked(body) {
				c.tel.ReportWarning(report_fetch_blocked, rawUrl, len(body))
			}
			return body, nil
		}
		if !d.retry {
			span.SetStatus(codes.Error, string(d.cause))
			c.tel.ReportWarning(report_fetch_fetch, rawUrl, string(d.cause), attempt+1)
			return "", c.terminalError(d.cause, rawUrl, res, err)
		}

		c.tel.ReportDebug(report_fetch_attempt, rawUrl, o.String(), attempt+1, d.delay.String())
		err = c.wait(ctx, d.delay)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", rawUrl, err)
		}
	}

	// decide always fails on the last attempt, this is only reached if MaxAttempts < 1.
	return "", scraper.Errorf(scraper.CauseServerError, rawUrl, "attempts exhausted")
}

func (c *Client) terminalError(cause scraper.Cause, rawUrl string, res *resty.Response, reqErr error) error {
	if reqErr != nil {
		return &scraper.ScraperError{Cause: cause, URL: rawUrl, Err: reqErr}
	}
	return scraper.Errorf(cause, rawUrl, "status %d", res.StatusCode())
}
