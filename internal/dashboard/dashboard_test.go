package dashboard_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/societyhub/internal/dashboard"
	"github.com/ubuntu/societyhub/internal/gateway"
	"github.com/ubuntu/societyhub/internal/models"
	"github.com/ubuntu/societyhub/internal/normalize"
	"github.com/ubuntu/societyhub/internal/temporal"
	"github.com/ubuntu/societyhub/internal/testutils"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGateway answers stored procedures from canned records.
type fakeGateway struct {
	records map[string]normalize.Records
	errs    map[string]error
	// hook runs before answering, it may block until the context is done.
	hook func(ctx context.Context, procedure string) error

	mu    sync.Mutex
	calls []string
	args  map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		records: map[string]normalize.Records{
			"UNM_SP_Unit_Get": {
				map[string]any{"UnitID": "12", "UnitName": "101", "Block": "A", "SocietyID": "3"},
				map[string]any{"UnitID": "13", "UnitName": "102", "Block": "A", "SocietyID": "3"},
			},
			"UNM_SP_UnitDetail_Get":   {map[string]any{"UnitID": "12", "UnitName": "101", "UnitType": "2BHK"}},
			"VMS_SP_Visitor_Get":      {map[string]any{"VisitorName": "Asha", "EntryDate": "2024-01-15"}},
			"HDM_SP_Ticket_Get":       {map[string]any{"TicketID": "1", "Subject": "Leak", "Status": "Open"}},
			"ANM_SP_Announcement_Get": {map[string]any{"Title": "Water cut", "PublishDate": "2024-01-10"}},
		},
		errs: make(map[string]error),
		args: make(map[string]string),
	}
}

func (f *fakeGateway) Call(ctx context.Context, p gateway.Procedure, args gateway.Args) (normalize.Records, error) {
	values, err := p.Bind(args)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, p.Name)
	f.args[p.Name] = values.String()
	hook := f.hook
	records, callErr := f.records[p.Name], f.errs[p.Name]
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, p.Name); err != nil {
			return nil, err
		}
	}
	return records, callErr
}

func (f *fakeGateway) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) argsOf(procedure string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.args[procedure]
}

var sections = []string{"UNM_SP_UnitDetail_Get", "VMS_SP_Visitor_Get", "HDM_SP_Ticket_Get", "ANM_SP_Announcement_Get"}

func newLoader(gw *fakeGateway, session dashboard.Session) *dashboard.Loader {
	return dashboard.New(gw, session,
		dashboard.WithCoercer(temporal.New(temporal.WithLocation(time.UTC))),
		dashboard.WithNow(func() time.Time { return time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC) }),
		dashboard.WithVisitorWindow(5*24*time.Hour),
	)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		unitID    string
		societyID string
		errs      map[string]error
		noUnits   bool

		wantSelected     string
		wantFailed       []string
		wantErr          error
		wantFanOut       bool
		wantAnnounceArgs string
	}{
		"First unit is selected by default": {wantSelected: "12", wantFanOut: true, wantAnnounceArgs: "@SocietyID=3,@UnitID=12"},
		"Requested unit is selected":        {unitID: "13", wantSelected: "13", wantFanOut: true, wantAnnounceArgs: "@SocietyID=3,@UnitID=13"},
		"Session society wins":              {societyID: "9", wantSelected: "12", wantFanOut: true, wantAnnounceArgs: "@SocietyID=9,@UnitID=12"},
		"User without unit":                 {noUnits: true},

		"Failing sections are tolerated": {
			errs:       map[string]error{"HDM_SP_Ticket_Get": gateway.ErrTransport, "UNM_SP_UnitDetail_Get": gateway.ErrStatus},
			wantFailed: []string{"detail", "tickets"}, wantSelected: "12", wantFanOut: true, wantAnnounceArgs: "@SocietyID=3,@UnitID=12",
		},

		"Unit fetch failure fails the load": {errs: map[string]error{"UNM_SP_Unit_Get": gateway.ErrTransport}, wantErr: gateway.ErrTransport},
		"Unknown unit":                      {unitID: "99", wantErr: dashboard.ErrUnknownUnit},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			gw := newFakeGateway()
			for p, err := range tc.errs {
				gw.errs[p] = err
			}
			if tc.noUnits {
				gw.records["UNM_SP_Unit_Get"] = normalize.Records{}
			}

			d, err := newLoader(gw, dashboard.Session{UserID: "5", SocietyID: tc.societyID}).Load(context.Background(), tc.unitID)

			calls := gw.called()
			require.Equal(t, "UNM_SP_Unit_Get", calls[0], "Units should be fetched first")
			require.Equal(t, "@UserID=5,@UnitID=NULL", gw.argsOf("UNM_SP_Unit_Get"))
			if tc.wantFanOut {
				require.ElementsMatch(t, sections, calls[1:], "Every section should be fetched once")
			} else {
				require.Len(t, calls, 1, "Sections should not be fetched")
			}

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			if tc.noUnits {
				require.Empty(t, d.Units)
				require.Nil(t, d.Selected)
				return
			}

			require.Len(t, d.Units, 2)
			require.NotNil(t, d.Selected)
			require.Equal(t, tc.wantSelected, d.Selected.ID)
			require.Equal(t, "@UnitID="+tc.wantSelected+",@FromDate=2024-01-15,@ToDate=2024-01-20", gw.argsOf("VMS_SP_Visitor_Get"))
			require.Equal(t, tc.wantAnnounceArgs, gw.argsOf("ANM_SP_Announcement_Get"))

			failed := map[string]bool{
				"detail":        d.Detail.Failed(),
				"visitors":      d.Visitors.Failed(),
				"tickets":       d.Tickets.Failed(),
				"announcements": d.Announcements.Failed(),
			}
			for section, isFailed := range failed {
				want := false
				for _, f := range tc.wantFailed {
					if f == section {
						want = true
					}
				}
				require.Equal(t, want, isFailed, "Unexpected failure state for section %s", section)
			}

			if len(tc.wantFailed) > 0 {
				require.Error(t, d.Failed())
				require.NotEmpty(t, d.Tickets.Error)
				require.Empty(t, d.Tickets.Items)
				require.Len(t, d.Visitors.Items, 1, "Other sections should still be loaded")
				return
			}
			require.NoError(t, d.Failed())
			require.Equal(t, []models.UnitDetail{{UnitID: "12", Name: "101", Type: "2BHK"}}, d.Detail.Items)
			require.Equal(t, "Asha", d.Visitors.Items[0].Name)
			require.Equal(t, "Leak", d.Tickets.Items[0].Subject)
			require.Equal(t, "Water cut", d.Announcements.Items[0].Title)
		})
	}
}

func TestLoadFansOutConcurrently(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	var started sync.WaitGroup
	started.Add(len(sections))
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()
	gw.hook = func(ctx context.Context, procedure string) error {
		if procedure == "UNM_SP_Unit_Get" {
			return nil
		}
		started.Done()
		// Every section waits for the others: a sequential load would never get there.
		select {
		case <-allStarted:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("sections were not fetched concurrently")
		}
	}

	d, err := newLoader(gw, dashboard.Session{UserID: "5"}).Load(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, d.Failed())
}

func TestLoadSupersedesPrevious(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	firstStarted := make(chan struct{})
	var once sync.Once
	gw.hook = func(ctx context.Context, procedure string) error {
		if procedure != "HDM_SP_Ticket_Get" {
			return nil
		}
		first := false
		once.Do(func() { first = true })
		if !first {
			return nil
		}
		close(firstStarted)
		<-ctx.Done()
		return context.Cause(ctx)
	}
	l := newLoader(gw, dashboard.Session{UserID: "5"})

	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), "12")
		firstErr <- err
	}()
	<-firstStarted

	d, err := l.Load(context.Background(), "13")
	require.NoError(t, err, "Latest load should succeed")
	require.Equal(t, "13", d.Selected.ID)
	require.NoError(t, d.Failed())

	err = <-firstErr
	require.ErrorIs(t, err, dashboard.ErrSuperseded, "Superseded load should be discarded")
}

func TestLoadWarnings(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		sectionErr bool
		cancel     bool

		wantWarnings int
	}{
		"Successful load does not warn": {},
		"Failed section warns once":     {sectionErr: true, wantWarnings: 1},
		"Canceled load does not warn":   {cancel: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			gw := newFakeGateway()
			if tc.sectionErr {
				gw.errs["HDM_SP_Ticket_Get"] = gateway.ErrTransport
			}
			started := make(chan struct{})
			if tc.cancel {
				gw.hook = func(ctx context.Context, procedure string) error {
					if procedure != "HDM_SP_Ticket_Get" {
						return nil
					}
					close(started)
					<-ctx.Done()
					return context.Cause(ctx)
				}
			}
			h := testutils.NewMockHandler()
			l := dashboard.New(gw, dashboard.Session{UserID: "5"},
				dashboard.WithCoercer(temporal.New(temporal.WithLocation(time.UTC))),
				dashboard.WithLogger(slog.New(h)),
			)

			if !tc.cancel {
				_, err := l.Load(context.Background(), "12")
				require.NoError(t, err, "Load should not fail on a section error")
				require.Equal(t, tc.wantWarnings, h.Count(slog.LevelWarn), "Unexpected number of warnings")
				return
			}

			errc := make(chan error, 1)
			go func() {
				_, err := l.Load(context.Background(), "12")
				errc <- err
			}()
			<-started
			l.Cancel()
			require.ErrorIs(t, <-errc, dashboard.ErrSuperseded, "Canceled load should be discarded")
			require.Equal(t, tc.wantWarnings, h.Count(slog.LevelWarn), "Unexpected number of warnings")
		})
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	ctx, cancel := context.WithCancel(context.Background())
	gw.hook = func(ctx context.Context, procedure string) error {
		if procedure == "UNM_SP_Unit_Get" {
			cancel()
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := newLoader(gw, dashboard.Session{UserID: "5"}).Load(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoaderCancel(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	started := make(chan struct{})
	gw.hook = func(ctx context.Context, procedure string) error {
		if procedure != "UNM_SP_Unit_Get" {
			return nil
		}
		close(started)
		<-ctx.Done()
		return context.Cause(ctx)
	}
	l := newLoader(gw, dashboard.Session{UserID: "5"})

	done := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), "")
		done <- err
	}()
	<-started
	l.Cancel()

	require.ErrorIs(t, <-done, dashboard.ErrSuperseded)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	l := newLoader(gw, dashboard.Session{UserID: "5"})

	d, err := l.Load(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "12", d.Selected.ID)

	d, err = l.Select(context.Background(), d, "13")
	require.NoError(t, err)
	require.Equal(t, "13", d.Selected.ID)
	require.Len(t, d.Units, 2, "Units should be kept")

	calls := gw.called()
	require.Len(t, calls, 1+2*len(sections), "Units should not be fetched again")
	require.Equal(t, "@UnitID=13", gw.argsOf("UNM_SP_UnitDetail_Get"))

	_, err = l.Select(context.Background(), d, "99")
	require.ErrorIs(t, err, dashboard.ErrUnknownUnit)
}

func TestRetry(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.errs["HDM_SP_Ticket_Get"] = gateway.ErrTransport
	l := newLoader(gw, dashboard.Session{UserID: "5"})

	d, err := l.Load(context.Background(), "")
	require.NoError(t, err)
	require.True(t, d.Tickets.Failed())

	gw.mu.Lock()
	delete(gw.errs, "HDM_SP_Ticket_Get")
	gw.calls = nil
	gw.mu.Unlock()

	d, err = l.Retry(context.Background(), d)
	require.NoError(t, err)
	require.False(t, d.Tickets.Failed())
	require.Empty(t, d.Tickets.Error)
	require.Len(t, d.Tickets.Items, 1)
	require.Equal(t, []string{"HDM_SP_Ticket_Get"}, gw.called(), "Only failed sections should be fetched again")
}

func TestRetryWithoutSelection(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	d, err := newLoader(gw, dashboard.Session{UserID: "5"}).Retry(context.Background(), dashboard.Dashboard{})
	require.NoError(t, err)
	require.Equal(t, "12", d.Selected.ID, "Retrying an empty dashboard should load it")
}

func TestLatest(t *testing.T) {
	t.Parallel()

	var l dashboard.Latest

	got, err := dashboard.Run(context.Background(), &l, func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, 1, got)

	got, err = dashboard.Run(context.Background(), &l, func(ctx context.Context) (int, error) { return 0, errors.New("boom") })
	require.EqualError(t, err, "boom", "Errors of the latest run should be returned")
	require.Zero(t, got)

	// A run started from within another one supersedes it.
	got, err = dashboard.Run(context.Background(), &l, func(ctx context.Context) (int, error) {
		inner, err := dashboard.Run(context.Background(), &l, func(ctx context.Context) (int, error) { return 2, nil })
		require.NoError(t, err)
		require.Equal(t, 2, inner)
		require.ErrorIs(t, context.Cause(ctx), dashboard.ErrSuperseded)
		return 1, nil
	})
	require.ErrorIs(t, err, dashboard.ErrSuperseded)
	require.Zero(t, got)
}
