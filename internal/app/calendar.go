package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/tainamorais/clinica-agenda/internal/slots"
)

const oauthStateCookie = "oauth_state"

// NewOAuthConfig returns nil unless client id, secret and redirect URL are all set.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// GoogleCalendar reads busy time from the clinic's Google calendar.
type GoogleCalendar struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
}

// NewGoogleCalendar builds a client that refreshes its access token from
// refreshToken. The refresh grant needs no redirect URL.
func NewGoogleCalendar(ctx context.Context, clientID, clientSecret, refreshToken, calendarID string, loc *time.Location) (*GoogleCalendar, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("google calendar: oauth client and refresh token are required")
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("google calendar: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleCalendar{svc: svc, calendarID: calendarID, loc: loc}, nil
}

// BusyBlocks lists the events that overlap date and converts them to blocks.
func (g *GoogleCalendar) BusyBlocks(ctx context.Context, date time.Time) ([]slots.Block, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, g.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	events, err := g.svc.Events.List(g.calendarID).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var out []slots.Block
	for _, ev := range events.Items {
		if b, ok := eventBlock(ev, dayStart, dayEnd); ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// eventBlock maps an event to a block of the day [dayStart, dayEnd). Cancelled
// and free (transparent) events are ignored. All-day events block the whole day.
func eventBlock(ev *calendar.Event, dayStart, dayEnd time.Time) (slots.Block, bool) {
	if ev == nil || ev.Status == "cancelled" || ev.Transparency == "transparent" {
		return slots.Block{}, false
	}
	if ev.Start == nil || ev.End == nil {
		return slots.Block{}, false
	}
	if ev.Start.Date != "" {
		return slots.Block{}, true
	}

	loc := dayStart.Location()
	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return slots.Block{}, false
	}
	end, err := time.Parse(time.RFC3339, ev.End.DateTime)
	if err != nil {
		return slots.Block{}, false
	}
	start, end = start.In(loc), end.In(loc)
	if !end.After(dayStart) || !start.Before(dayEnd) || !end.After(start) {
		return slots.Block{}, false
	}

	from := 0
	if start.After(dayStart) {
		from = start.Hour()*60 + start.Minute()
	}
	to := 24 * 60
	if end.Before(dayEnd) {
		to = end.Hour()*60 + end.Minute()
		if end.Second() > 0 || end.Nanosecond() > 0 {
			to++
		}
	}
	if from >= to {
		return slots.Block{}, false
	}
	return slots.Block{Start: slots.FormatHHMM(from), End: slots.FormatHHMM(to)}, true
}

// GET /api/calendar/auth
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", a.Production, true)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": a.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce),
	})
}

// GET /oauth2callback
// The refresh token is shown once so it can be stored as GOOGLE_REFRESH_TOKEN.
func (a *App) OAuth2CallbackHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	want, err := c.Cookie(oauthStateCookie)
	if err != nil || want == "" || want != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", a.Production, true)

	token, err := a.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		a.Logger.Warn("oauth exchange failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	if token.RefreshToken == "" {
		c.JSON(http.StatusOK, gin.H{"message": "authorized, but Google returned no refresh token; revoke access and try again"})
		return
	}
	a.Logger.Info("google calendar authorized")
	c.JSON(http.StatusOK, gin.H{
		"message":       "authorization successful",
		"refresh_token": token.RefreshToken,
	})
}
