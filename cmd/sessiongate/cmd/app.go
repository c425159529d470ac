package cmd

import (
	"fmt"
	"io"
	"net/http"

	"github.com/jmcleod/sessiongate/client"
	"github.com/jmcleod/sessiongate/flow"
	"github.com/jmcleod/sessiongate/internal/profile"
	"github.com/jmcleod/sessiongate/nav"
)

// app wires the session core for one command invocation. The shell's part
// is small: it owns the profile and prints whatever intents the core emits.
type app struct {
	profile *profile.Profile
	client  *client.Client
	flow    *flow.Controller
	bus     *nav.Bus
	unsub   func()
}

func newApp(out io.Writer) (*app, error) {
	p, err := profile.Open(cfg.ProfileDir, logger)
	if err != nil {
		return nil, err
	}

	bus := nav.NewBus()
	unsub := bus.Subscribe(func(i nav.Intent) {
		fmt.Fprintf(out, "-> %s\n", i)
	})

	c, err := client.New(cfg.BaseURL, p.Store,
		client.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		client.WithNavigator(bus),
		client.WithLogger(logger),
		client.WithUserAgent("sessiongate-cli/"+Version),
	)
	if err != nil {
		unsub()
		p.Close()
		return nil, err
	}

	ctrl := flow.New(c, p.Store, bus,
		flow.WithLogger(logger),
		flow.WithLoginRedirectDelay(cfg.Flow.LoginRedirectDelay),
		flow.WithAutoLoginDelay(cfg.Flow.AutoLoginDelay),
	)
	return &app{profile: p, client: c, flow: ctrl, bus: bus, unsub: unsub}, nil
}

// waitFor returns a channel that receives the first intent for route.
func (a *app) waitFor(route nav.Route) <-chan nav.Intent {
	ch := make(chan nav.Intent, 1)
	unsub := a.bus.Subscribe(func(i nav.Intent) {
		if i.Route != route {
			return
		}
		select {
		case ch <- i:
		default:
		}
	})
	prev := a.unsub
	a.unsub = func() {
		unsub()
		prev()
	}
	return ch
}

func (a *app) Close() error {
	a.flow.Close()
	a.unsub()
	return a.profile.Close()
}
