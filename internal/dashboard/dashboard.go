// Package dashboard loads the home screen of a signed in resident.
//
// The units of the user are fetched first. Once a unit is selected, its details, visitor log,
// help-desk tickets and the society announcements are fetched concurrently. A failing section
// does not fail the others: each section carries its own error.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/societyhub/internal/gateway"
	"github.com/ubuntu/societyhub/internal/models"
	"github.com/ubuntu/societyhub/internal/normalize"
	"github.com/ubuntu/societyhub/internal/temporal"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownUnit is returned when selecting a unit the user is not attached to.
var ErrUnknownUnit = errors.New("unknown unit")

// DefaultVisitorWindow is how far back the visitor log goes.
const DefaultVisitorWindow = 7 * 24 * time.Hour

// Caller calls a stored procedure.
type Caller interface {
	Call(ctx context.Context, p gateway.Procedure, args gateway.Args) (normalize.Records, error)
}

// Session identifies the signed in user.
type Session struct {
	UserID    string
	SocietyID string
}

// Section is a part of the dashboard loaded independently of the others.
type Section[T any] struct {
	Items []T `yaml:"items" json:"items"`
	// Err is set when the section failed to load. Items may still hold the rows which could be read.
	Err error `yaml:"-" json:"-"`
	// Error is the message of Err, for rendering.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Failed reports whether the section failed to load.
func (s Section[T]) Failed() bool {
	return s.Err != nil
}

func newSection[T any](items []T, err error) Section[T] {
	s := Section[T]{Items: items, Err: err}
	if s.Items == nil {
		s.Items = []T{}
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Dashboard is the home screen of a user.
type Dashboard struct {
	Units []models.Unit `yaml:"units" json:"units"`
	// Selected is nil when the user has no unit.
	Selected      *models.Unit                 `yaml:"selected,omitempty" json:"selected,omitempty"`
	Detail        Section[models.UnitDetail]   `yaml:"detail" json:"detail"`
	Visitors      Section[models.Visitor]      `yaml:"visitors" json:"visitors"`
	Tickets       Section[models.Ticket]       `yaml:"tickets" json:"tickets"`
	Announcements Section[models.Announcement] `yaml:"announcements" json:"announcements"`
}

// Failed returns the errors of every section which failed to load.
func (d Dashboard) Failed() error {
	var errs []error
	for _, s := range []struct {
		name string
		err  error
	}{
		{"detail", d.Detail.Err},
		{"visitors", d.Visitors.Err},
		{"tickets", d.Tickets.Err},
		{"announcements", d.Announcements.Err},
	} {
		if s.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, s.err))
		}
	}
	return errors.Join(errs...)
}

// Loader loads dashboards for a session.
// A new Load or Select cancels and discards the one in progress.
type Loader struct {
	caller  Caller
	session Session
	coercer temporal.Coercer
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger

	latest Latest
}

type options struct {
	coercer temporal.Coercer
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option overrides a Loader default.
type Option func(*options)

// WithCoercer sets the coercer of the dates of the dashboard.
func WithCoercer(c temporal.Coercer) Option {
	return func(o *options) {
		o.coercer = c
	}
}

// WithVisitorWindow sets how far back the visitor log goes.
func WithVisitorWindow(d time.Duration) Option {
	return func(o *options) {
		o.window = d
	}
}

// WithLogger sets the logger of the Loader. Defaults to slog.Default at call time.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New returns a Loader for session.
func New(caller Caller, session Session, args ...Option) *Loader {
	opts := options{
		coercer: temporal.New(),
		window:  DefaultVisitorWindow,
		now:     time.Now,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Loader{
		caller:  caller,
		session: session,
		coercer: opts.coercer,
		window:  opts.window,
		now:     opts.now,
		logger:  opts.logger,
	}
}

func (l *Loader) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

// Load fetches the units of the user, selects unitID, or the first unit when unitID is empty,
// and loads its sections.
//
// Only a failure to fetch the units fails the load. A user without units gets an empty dashboard.
func (l *Loader) Load(ctx context.Context, unitID string) (d Dashboard, err error) {
	defer decorate.OnError(&err, "could not load dashboard")

	return Run(ctx, &l.latest, func(ctx context.Context) (Dashboard, error) {
		units, err := l.units(ctx)
		if err != nil {
			return Dashboard{}, err
		}
		d := Dashboard{Units: units}
		if len(units) == 0 {
			l.log().Info("No unit attached to the user", "user", l.session.UserID)
			return d, nil
		}
		return l.selectUnit(ctx, d, unitID)
	})
}

// Select loads the sections of another unit of d, keeping its units.
func (l *Loader) Select(ctx context.Context, d Dashboard, unitID string) (_ Dashboard, err error) {
	defer decorate.OnError(&err, "could not select unit %q", unitID)

	return Run(ctx, &l.latest, func(ctx context.Context) (Dashboard, error) {
		return l.selectUnit(ctx, Dashboard{Units: d.Units}, unitID)
	})
}

// Retry reloads the failed sections of d only.
func (l *Loader) Retry(ctx context.Context, d Dashboard) (_ Dashboard, err error) {
	defer decorate.OnError(&err, "could not retry dashboard")

	if d.Selected == nil {
		return l.Load(ctx, "")
	}
	return Run(ctx, &l.latest, func(ctx context.Context) (Dashboard, error) {
		l.fanOut(ctx, &d, true)
		return d, ctx.Err()
	})
}

// Cancel stops the load in progress, if any.
func (l *Loader) Cancel() {
	l.latest.Cancel(context.Canceled)
}

func (l *Loader) units(ctx context.Context) ([]models.Unit, error) {
	records, err := l.caller.Call(ctx, gateway.UnitGet, gateway.Args{"UserID": l.session.UserID})
	if err != nil {
		return nil, err
	}
	units, err := models.Decode[models.Unit](records, models.WithCoercer(l.coercer))
	if err != nil {
		// Units which could be read are still usable.
		l.log().Warn("Some units could not be read", "error", err)
	}
	return units, nil
}

func (l *Loader) selectUnit(ctx context.Context, d Dashboard, unitID string) (Dashboard, error) {
	if len(d.Units) == 0 {
		return d, fmt.Errorf("%w: %q: no unit attached to the user", ErrUnknownUnit, unitID)
	}

	d.Selected = &d.Units[0]
	if unitID != "" {
		d.Selected = nil
		for i := range d.Units {
			if d.Units[i].ID == unitID {
				d.Selected = &d.Units[i]
				break
			}
		}
		if d.Selected == nil {
			return d, fmt.Errorf("%w: %q", ErrUnknownUnit, unitID)
		}
	}

	l.fanOut(ctx, &d, false)
	// A canceled load has incomplete sections.
	return d, ctx.Err()
}

// fanOut loads the sections of the selected unit concurrently and waits for all of them.
// When onlyFailed is set, sections which loaded fine are kept.
func (l *Loader) fanOut(ctx context.Context, d *Dashboard, onlyFailed bool) {
	unit := *d.Selected
	society := l.session.SocietyID
	if society == "" {
		society = unit.SocietyID
	}
	now := l.now()
	log := l.log().With("unit", unit.ID)
	log.Debug("Loading dashboard sections")

	var g errgroup.Group
	if !onlyFailed || d.Detail.Failed() {
		g.Go(func() error {
			details, err := fetch[models.UnitDetail](ctx, l, gateway.UnitDetailGet, gateway.Args{"UnitID": unit.ID})
			if len(details) > 1 {
				details = details[:1]
			}
			d.Detail = newSection(details, err)
			return nil
		})
	}
	if !onlyFailed || d.Visitors.Failed() {
		g.Go(func() error {
			d.Visitors = newSection(fetch[models.Visitor](ctx, l, gateway.VisitorGet, gateway.Args{
				"UnitID":   unit.ID,
				"FromDate": now.Add(-l.window),
				"ToDate":   now,
			}))
			return nil
		})
	}
	if !onlyFailed || d.Tickets.Failed() {
		g.Go(func() error {
			d.Tickets = newSection(fetch[models.Ticket](ctx, l, gateway.TicketGet, gateway.Args{"UnitID": unit.ID}))
			return nil
		})
	}
	if !onlyFailed || d.Announcements.Failed() {
		g.Go(func() error {
			d.Announcements = newSection(fetch[models.Announcement](ctx, l, gateway.AnnouncementGet, gateway.Args{
				"SocietyID": society,
				"UnitID":    unit.ID,
			}))
			return nil
		})
	}
	// Sections never fail the group.
	_ = g.Wait()

	if ctx.Err() != nil {
		// Canceled or superseded: the result is discarded, nothing failed.
		log.Debug("Dashboard load canceled", "cause", context.Cause(ctx))
		return
	}
	if err := d.Failed(); err != nil {
		log.Warn("Some dashboard sections failed to load", "error", err)
	}
}

func fetch[T any](ctx context.Context, l *Loader, p gateway.Procedure, args gateway.Args) ([]T, error) {
	records, err := l.caller.Call(ctx, p, args)
	if err != nil {
		return nil, err
	}
	return models.Decode[T](records, models.WithCoercer(l.coercer))
}
