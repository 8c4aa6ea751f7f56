package commands_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/societyhub/cmd/societyhub/commands"
	"gopkg.in/yaml.v3"
)

// fixtures are the answers of the fake gateway, by stored procedure.
var fixtures = map[string]string{
	"UNM_SP_Unit_Get": `{"Data":[
		{"UnitID":12,"UnitName":"101","Block":"A","SocietyID":3,"SocietyName":"Green Park"},
		{"UnitID":13,"UnitName":"102","Block":"A","SocietyID":3,"SocietyName":"Green Park"}]}`,
	"UNM_SP_UnitDetail_Get": `[{"UnitID":12,"UnitName":"101","UnitType":"2BHK","Area":"1150.5","PossessionDate":"0000-00-00"}]`,
	"VMS_SP_Visitor_Get":    `{"result":[{"VisitorID":1,"VisitorName":"Asha","Purpose":"Delivery","VisitDate":"2024-01-15T00:00:00.000Z"}]}`,
	"HDM_SP_Ticket_Get": `{"Records":[
		{"TicketID":1,"Subject":"Water leakage","Status":"Open","CreatedDate":"15/01/2024"},
		{"TicketID":2,"Subject":"Lift not working","Status":"Closed","CreatedDate":"2024-01-02","ClosedDate":"2024-01-05"},
		{"TicketID":3,"Subject":"Noise","Status":"Open","CreatedDate":"NULL"}]}`,
	"ANM_SP_Announcement_Get": `{"status":"ok","rows":[{"AnnouncementID":7,"Title":"Water cut","Message":"Tomorrow 10-12","PublishDate":"20240110"}]}`,
	"UNM_SP_Owner_Get":        `{"Data":[{"OwnerID":1,"FirstName":"Ravi","LastName":"Kumar","Mobile":"9876543210","OwnershipDate":"2019-03-01","IsResiding":1}]}`,
	"UNM_SP_Tenant_Get":       `{"Data":[]}`,
	"UNM_SP_Occupant_Get":     `[{"OccupantID":4,"FirstName":"Meera","Relation":"Daughter"},{"OccupantID":5,"FirstName":"Kiran","Relation":"Son"}]`,
	"UNM_SP_Owner_Insert":     `{"Data":[{"NewID":42,"Message":"Saved"}]}`,
	"UNM_SP_Tenant_Insert":    `{"Data":[{"NewID":43,"Message":"Saved"}]}`,
	"UNM_SP_Occupant_Insert":  `{"Data":[{"NewID":44,"Message":"Saved"}]}`,
	"HDM_SP_Ticket_Insert":    `{"Data":[{"TicketID":45,"Message":"Ticket raised"}]}`,
}

type call struct {
	object string
	values string
}

// fakeGateway serves the fixtures, or errors for the procedures listed in failing.
type fakeGateway struct {
	*httptest.Server

	mu    sync.Mutex
	calls []call

	// blocked calls wait until their request is canceled or the test ends.
	blocked     string
	arrived     chan struct{}
	arrivedOnce sync.Once
	release     chan struct{}
}

func newFakeGateway(t *testing.T, failing ...string) *fakeGateway {
	t.Helper()

	g := &fakeGateway{arrived: make(chan struct{}), release: make(chan struct{})}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("AuthKey") != "auth" || r.PostForm.Get("HostKey") != "host" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		object := r.PostForm.Get("Object")
		g.mu.Lock()
		g.calls = append(g.calls, call{object: object, values: r.PostForm.Get("Values")})
		blocked := g.blocked == object
		g.mu.Unlock()

		if blocked {
			g.arrivedOnce.Do(func() { close(g.arrived) })
			select {
			case <-r.Context().Done():
			case <-g.release:
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		for _, f := range failing {
			if f == object {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("procedure failed"))
				return
			}
		}
		body, ok := fixtures[object]
		if !ok {
			body = `{"Data":[]}`
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(g.Close)
	// Runs before Close, which waits for the blocked handlers.
	t.Cleanup(func() { close(g.release) })

	return g
}

// block makes the calls to object hang. The returned channel is closed when the first one arrives.
func (g *fakeGateway) block(object string) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.blocked = object
	return g.arrived
}

func (g *fakeGateway) callsTo(object string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var values []string
	for _, c := range g.calls {
		if c.object == object {
			values = append(values, c.values)
		}
	}
	return values
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// connArgs are the flags connecting to g, without any signed in user.
func (g *fakeGateway) connArgs() []string {
	return []string{"--gateway-url", g.URL + "/api/rest/Invoke", "--auth-key", "auth", "--host-key", "host"}
}

// userArgs are connArgs for user 5 of society 3.
func (g *fakeGateway) userArgs() []string {
	return append(g.connArgs(), "--user-id", "5", "--society-id", "3")
}

// newAppForTests returns an app running args with its profiles in configDir, and its output.
func newAppForTests(t *testing.T, configDir string, args ...string) (*commands.App, *bytes.Buffer) {
	t.Helper()

	if configDir == "" {
		configDir = t.TempDir()
	}

	a, err := commands.New(commands.WithConfigDir(configDir))
	require.NoError(t, err, "Setup: could not create app")
	a.SetArgs(args...)

	out := &bytes.Buffer{}
	a.SetOutput(out)

	return a, out
}

// parseOutput reads the YAML or JSON output of a command.
func parseOutput[T any](t *testing.T, out []byte) T {
	t.Helper()

	var v T
	// JSON is a subset of YAML.
	require.NoError(t, yaml.Unmarshal(out, &v), "could not parse command output:\n%s", out)
	return v
}

// splitValues reads the parameters sent to a stored procedure.
func splitValues(s string) map[string]string {
	values := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		name, value, _ := strings.Cut(pair, "=")
		values[name] = value
	}
	return values
}
