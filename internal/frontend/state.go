package frontend

import (
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"github.com/simonduel/SimonDuel/internal/api"
	"github.com/simonduel/SimonDuel/internal/poll"
	"k8s.io/klog/v2"
)

// GlobalClientState holds what every screen shares: the REST client, the
// poll scheduler (one per browser tab) and the render listeners. Game state
// itself lives in the per-screen engines, never here.
type GlobalClientState struct {
	API       *api.Client
	Scheduler *poll.Scheduler
	Error     string

	// Listeners for state updates
	Listeners map[string]func()
}

var State *GlobalClientState

// InitState creates the shared state once. Also runs during server-side
// prerendering, where the client is never actually used.
func InitState() {
	if State != nil {
		klog.V(1).Infof("InitState: state already exists")
		return
	}
	klog.V(1).Infof("InitState: creating new state (was nil)")

	baseURL := app.Getenv("API_URL")
	if baseURL == "" {
		baseURL = "/api"
	}

	client := api.NewClient(baseURL)
	client.TokenSource = sessionToken

	State = &GlobalClientState{
		API:       client,
		Scheduler: poll.NewScheduler(),
		Listeners: make(map[string]func()),
	}
	State.Scheduler.ErrSink = func(key string, err error) {
		klog.Errorf("poll %q failed: %v", key, err)
	}
}

// sessionToken reads the bearer token the login flow left in localStorage.
// Session management itself is outside this app; we only attach the token.
func sessionToken() string {
	if app.IsServer {
		return ""
	}
	v := app.Window().Get("localStorage").Call("getItem", "auth_token")
	if v.Truthy() {
		return v.String()
	}
	return ""
}

// PlayerName returns the display name stored by the login flow, if any.
func PlayerName() string {
	if app.IsServer {
		return "Jugador"
	}
	v := app.Window().Get("localStorage").Call("getItem", "auth_fullname")
	if v.Truthy() {
		return v.String()
	}
	return "Jugador"
}

func (s *GlobalClientState) Notify() {
	klog.V(1).Infof("GlobalClientState: notifying %d listeners", len(s.Listeners))
	for _, l := range s.Listeners {
		if l != nil {
			l()
		}
	}
}
