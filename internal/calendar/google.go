package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/metrics"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/telemetry"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	primaryCalendar = "primary"
	breakerTrip     = 5
	breakerCooldown = 30 * time.Second

	opBusy   = "busy"
	opCreate = "create_event"
)

var calendarScopes = []string{gcal.CalendarScope}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	// Endpoint overrides the Calendar API base URL. Empty means Google's.
	Endpoint string
	Timeout  time.Duration
	// HTTPClient is the base client for token and API calls. Defaults to an
	// instrumented client.
	HTTPClient *http.Client
}

// GoogleGateway talks to Google Calendar on behalf of each principal.
type GoogleGateway struct {
	oauth    *oauth2.Config
	endpoint string
	timeout  time.Duration
	base     *http.Client
	store    CredentialStore
	breaker  *gobreaker.CircuitBreaker
	metrics  metrics.Recorder
	log      *logger.Logger
}

func NewGoogleGateway(cfg GoogleConfig, store CredentialStore, recorder metrics.Recorder, log *logger.Logger) *GoogleGateway {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	return &GoogleGateway{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: calendarScopes,
		},
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		base:     cfg.HTTPClient,
		store:    store,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "google-calendar",
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerTrip
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		metrics: recorder,
		log:     log,
	}
}

func (g *GoogleGateway) BusyIntervals(ctx context.Context, principalID string, start, end time.Time) ([]model.BusyInterval, error) {
	ctx, span := g.startSpan(ctx, "calendar.BusyIntervals", principalID)
	defer span.End()

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	began := time.Now()
	var busy []model.BusyInterval
	err := g.do(ctx, principalID, func(svc *gcal.Service) error {
		resp, err := svc.Freebusy.Query(&gcal.FreeBusyRequest{
			TimeMin:  start.UTC().Format(time.RFC3339),
			TimeMax:  end.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
			Items:    []*gcal.FreeBusyRequestItem{{Id: primaryCalendar}},
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		busy, err = parseFreeBusy(resp)
		return err
	})
	g.metrics.ObserveCalendarLatency(opBusy, time.Since(began))

	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("%w: %w", ErrCalendarUnavailable, err)
	}
	span.SetAttributes(attribute.Int("calendar.busy_count", len(busy)))
	return busy, nil
}

func (g *GoogleGateway) CreateEvent(ctx context.Context, principalID string, spec EventSpec) (*EventRef, error) {
	ctx, span := g.startSpan(ctx, "calendar.CreateEvent", principalID)
	defer span.End()

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	began := time.Now()
	var ref *EventRef
	err := g.do(ctx, principalID, func(svc *gcal.Service) error {
		created, err := svc.Events.Insert(primaryCalendar, newEvent(spec)).
			ConferenceDataVersion(1).
			SendUpdates("all").
			Context(ctx).
			Do()
		if isStatus(err, http.StatusConflict) && spec.IdempotencyKey != "" {
			// A previous attempt already created it.
			created, err = svc.Events.Get(primaryCalendar, spec.IdempotencyKey).Context(ctx).Do()
		}
		if err != nil {
			return err
		}
		ref = eventRef(created)
		return nil
	})
	g.metrics.ObserveCalendarLatency(opCreate, time.Since(began))

	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("%w: %w", ErrCalendarWrite, err)
	}
	span.SetAttributes(attribute.String("calendar.event_id", ref.ID))
	return ref, nil
}

// do runs fn with a fresh token. A 401 forces one refresh and one retry.
func (g *GoogleGateway) do(ctx context.Context, principalID string, fn func(svc *gcal.Service) error) error {
	tok, err := g.token(ctx, principalID, false)
	if err != nil {
		return err
	}

	err = g.call(ctx, tok, fn)
	if !isStatus(err, http.StatusUnauthorized) {
		return err
	}

	g.log.FromContext(ctx).Info("Calendar rejected access token, refreshing", "principal_id", principalID)
	if tok, err = g.token(ctx, principalID, true); err != nil {
		return err
	}
	return g.call(ctx, tok, fn)
}

// call runs fn through the breaker. Client errors are the caller's problem and do not
// count against the provider's health.
func (g *GoogleGateway) call(ctx context.Context, tok *oauth2.Token, fn func(svc *gcal.Service) error) error {
	opts := []option.ClientOption{
		option.WithHTTPClient(&http.Client{
			Transport: &oauth2.Transport{Source: oauth2.StaticTokenSource(tok), Base: g.base.Transport},
			Timeout:   g.base.Timeout,
		}),
	}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build calendar client: %w", err)
	}

	var callErr error
	_, err = g.breaker.Execute(func() (interface{}, error) {
		callErr = fn(svc)
		if callErr != nil && !isClientError(callErr) {
			return nil, callErr
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	return callErr
}

// token loads the principal's credential, refreshing it when expired or when force is set.
// A refreshed credential is written back through the store.
func (g *GoogleGateway) token(ctx context.Context, principalID string, force bool) (*oauth2.Token, error) {
	cred, err := g.store.Credential(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil || (cred.AccessToken == "" && cred.RefreshToken == "") {
		return nil, ErrNotConnected
	}

	tok := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
		TokenType:    "Bearer",
	}
	if tok.Valid() && !force {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: access token expired and no refresh token stored", ErrNotConnected)
	}

	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, g.base)
	fresh, err := g.oauth.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	updated := &model.CalendarCredential{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		Expiry:       fresh.Expiry,
	}
	if err := g.store.UpdateCredential(ctx, principalID, updated); err != nil {
		g.log.FromContext(ctx).Warn("Failed to persist refreshed credential",
			"principal_id", principalID,
			"error", err,
		)
	}
	return fresh, nil
}

func (g *GoogleGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *GoogleGateway) startSpan(ctx context.Context, name, principalID string) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("calendar.principal_id", principalID)),
	)
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func newEvent(spec EventSpec) *gcal.Event {
	attendees := make([]*gcal.EventAttendee, 0, len(spec.Attendees))
	for _, a := range spec.Attendees {
		attendees = append(attendees, &gcal.EventAttendee{Email: a.Email, DisplayName: a.Name})
	}

	ev := &gcal.Event{
		Id:          spec.IdempotencyKey,
		Summary:     spec.Title,
		Description: spec.Description,
		Location:    "Google Meet",
		Start:       &gcal.EventDateTime{DateTime: spec.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: spec.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Attendees:   attendees,
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             conferenceRequestID(spec),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}
	return ev
}

func conferenceRequestID(spec EventSpec) string {
	if spec.IdempotencyKey != "" {
		return spec.IdempotencyKey
	}
	return "meet-" + uuid.NewString()
}

func eventRef(ev *gcal.Event) *EventRef {
	ref := &EventRef{ID: ev.Id, MeetingLink: ev.HangoutLink}
	if ref.MeetingLink == "" && ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.Uri != "" {
				ref.MeetingLink = ep.Uri
				break
			}
		}
	}
	return ref
}

func parseFreeBusy(resp *gcal.FreeBusyResponse) ([]model.BusyInterval, error) {
	cal, ok := resp.Calendars[primaryCalendar]
	if !ok {
		return nil, errors.New("primary calendar missing from free/busy response")
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("free/busy error: %s", cal.Errors[0].Reason)
	}

	busy := make([]model.BusyInterval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid busy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("invalid busy end %q: %w", p.End, err)
		}
		busy = append(busy, model.BusyInterval{Start: start.UTC(), End: end.UTC()})
	}
	return busy, nil
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

func isClientError(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests
}
