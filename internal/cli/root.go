package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/julianstephens/daystreak/internal/config"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/tracker"
)

type Context struct {
	Ctx     context.Context
	Config  *config.Config
	Store   storage.Provider
	Service *tracker.Service
	Session *tracker.Session
	Out     io.Writer
}

// NewContext builds the command context around store, with a service and
// a session for the configured user.
func NewContext(ctx context.Context, cfg *config.Config, store storage.Provider, opts tracker.Options) *Context {
	svc := tracker.NewService(store, opts)
	user := ""
	if cfg != nil {
		user = cfg.User
	}
	session := tracker.NewSession(svc, user)
	session.Subscribe(logRefresh(user))
	return &Context{
		Ctx:     ctx,
		Config:  cfg,
		Store:   store,
		Service: svc,
		Session: session,
		Out:     os.Stdout,
	}
}

// logRefresh records each session refresh at debug level.
func logRefresh(user string) tracker.Listener {
	return func(habits []models.HabitView) {
		due, done := 0, 0
		for _, h := range habits {
			if h.IsDueToday {
				due++
				if h.IsCompletedToday {
					done++
				}
			}
		}
		logger.Debug("Session refreshed", "user", user, "habits", len(habits), "due", due, "done", done)
	}
}

// UserID returns the configured user, or ErrNotAuthenticated.
func (c *Context) UserID() (string, error) {
	if c.Session == nil || c.Session.UserID() == "" {
		return "", apperrors.ErrNotAuthenticated
	}
	return c.Session.UserID(), nil
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.writer(), format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.writer(), args...)
}

func (c *Context) writer() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Truncate shortens s to n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// Pad right-pads s with spaces to n runes.
func Pad(s string, n int) string {
	if l := len([]rune(s)); l < n {
		return s + strings.Repeat(" ", n-l)
	}
	return s
}

// ShortID is the id prefix shown in listings.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
