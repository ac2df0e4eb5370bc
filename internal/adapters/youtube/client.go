// Package youtube adapts the YouTube Data API v3 to the collector's Source port
package youtube

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"tubesense/internal/core/record"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/platform/logger"
	"tubesense/internal/services/collect/domain"
)

const (
	defaultRPS      = 5
	defaultLanguage = "en"
	defaultUA       = "tubesense-collector"
)

// Options configures the Client
type Options struct {
	APIKey    string
	Endpoint  string // empty uses the library default
	UserAgent string

	// RPS and Burst shape the client side token bucket; RPS <= 0 disables it
	RPS   float64
	Burst int

	// Language biases search relevance (relevanceLanguage)
	Language string

	// SameDay restricts search to videos published since UTC midnight
	SameDay bool

	// Transport overrides the base round tripper (tests)
	Transport http.RoundTripper
}

// Client implements domain.Source over youtube/v3
type Client struct {
	svc  *yt.Service
	opts Options
	lim  *rate.Limiter
	log  logger.Logger
	now  func() time.Time
}

var _ domain.Source = (*Client)(nil)

// New builds a Client. The API key travels as the key query parameter on
// every request, which is all the Data API needs for public reads
func New(ctx context.Context, o Options) (*Client, error) {
	if strings.TrimSpace(o.APIKey) == "" {
		return nil, perr.WithField(perr.InvalidArgf("youtube api key is required"), "api_key")
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Language == "" {
		o.Language = defaultLanguage
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}

	lim := rate.NewLimiter(rate.Inf, o.Burst)
	if o.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(o.RPS), o.Burst)
	}

	base := o.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := &http.Client{Transport: &keyTransport{base: base, key: o.APIKey, ua: o.UserAgent, lim: lim}}

	copts := []option.ClientOption{option.WithHTTPClient(hc)}
	if o.Endpoint != "" {
		copts = append(copts, option.WithEndpoint(o.Endpoint))
	}
	svc, err := yt.NewService(ctx, copts...)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "create youtube service")
	}
	return &Client{svc: svc, opts: o, lim: lim, log: *logger.Named("youtube"), now: time.Now}, nil
}

// Search implements domain.Source. Costs 100 units upstream
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchPage, error) {
	call := c.svc.Search.List([]string{"id"}).
		Q(q.Keyword).
		Type("video").
		RegionCode(q.Region).
		RelevanceLanguage(c.opts.Language).
		Order("relevance").
		MaxResults(int64(max(1, min(q.MaxResults, domain.MaxIDsPerLookup))))
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}
	if c.opts.SameDay {
		call = call.PublishedAfter(dayStart(c.now()).Format(time.RFC3339))
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return domain.SearchPage{}, classify(err, "search.list")
	}

	page := domain.SearchPage{NextPageToken: resp.NextPageToken}
	for _, it := range resp.Items {
		if it == nil || it.Id == nil || it.Id.VideoId == "" {
			continue
		}
		page.VideoIDs = append(page.VideoIDs, it.Id.VideoId)
	}
	c.log.Debug().
		Str("region", q.Region).
		Str("keyword", q.Keyword).
		Int("ids", len(page.VideoIDs)).
		Bool("more", page.NextPageToken != "").
		Msg("youtube search page")
	return page, nil
}

// Videos implements domain.Source. Costs 1 unit upstream
func (c *Client) Videos(ctx context.Context, ids []string) ([]record.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := c.svc.Videos.List([]string{"snippet", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err, "videos.list")
	}

	out := make([]record.Video, 0, len(resp.Items))
	for _, v := range resp.Items {
		if v != nil {
			out = append(out, toVideo(v))
		}
	}
	return out, nil
}

// Channels implements domain.Source. Costs 1 unit upstream
func (c *Client) Channels(ctx context.Context, ids []string) ([]record.Channel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := c.svc.Channels.List([]string{"snippet", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err, "channels.list")
	}

	out := make([]record.Channel, 0, len(resp.Items))
	for _, ch := range resp.Items {
		if ch != nil {
			out = append(out, toChannel(ch))
		}
	}
	return out, nil
}

func toVideo(v *yt.Video) record.Video {
	out := record.Video{VideoID: v.Id}
	if s := v.Snippet; s != nil {
		out.ChannelID = s.ChannelId
		out.Title = s.Title
		out.Description = s.Description
		out.Tags = s.Tags
		out.CategoryID, _ = strconv.Atoi(s.CategoryId)
		if ts, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			out.PublishedAt = ts.UTC()
		}
	}
	if st := v.Statistics; st != nil {
		out.ViewCount = int64(st.ViewCount)
		out.LikeCount = int64(st.LikeCount)
		out.CommentCount = int64(st.CommentCount)
	}
	return out
}

func toChannel(ch *yt.Channel) record.Channel {
	out := record.Channel{ChannelID: ch.Id, Country: record.UnknownCountry}
	if s := ch.Snippet; s != nil {
		out.Title = s.Title
		if s.Country != "" {
			out.Country = s.Country
		}
	}
	if st := ch.Statistics; st != nil {
		if !st.HiddenSubscriberCount {
			n := int64(st.SubscriberCount)
			out.SubscriberCount = &n
		}
		out.VideoCount = int64(st.VideoCount)
	}
	return out
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// keyTransport adds the api key and user agent, then waits on the limiter
type keyTransport struct {
	base http.RoundTripper
	key  string
	ua   string
	lim  *rate.Limiter
}

func (t *keyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.lim.Wait(req.Context()); err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()
	r.Header.Set("User-Agent", t.ua)
	return t.base.RoundTrip(r)
}
