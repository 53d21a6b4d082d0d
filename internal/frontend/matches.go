package frontend

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"github.com/simonduel/SimonDuel/internal/api"
	"github.com/simonduel/SimonDuel/internal/matchlist"
	"k8s.io/klog/v2"
)

// Matches lists the joinable matches and keeps them fresh through the
// synchronizer. Joining stops the refresh before navigating away.
type Matches struct {
	app.Compo
	Error   string
	joining bool

	sync *matchlist.Synchronizer
}

func (m *Matches) OnMount(ctx app.Context) {
	klog.V(1).Infof("Matches: OnMount called")
	m.sync = matchlist.New(State.API, State.Scheduler, func() {
		ctx.Dispatch(func(ctx app.Context) {})
	})
	ctx.Async(func() {
		m.sync.Start(ctx)
	})
}

func (m *Matches) OnDismount() {
	klog.V(1).Infof("Matches: OnDismount called")
	if m.sync != nil {
		m.sync.Close()
	}
}

func (m *Matches) onJoin(match api.Match) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		if m.joining {
			return
		}
		m.joining = true
		m.Error = ""

		ctx.Async(func() {
			res, err := m.sync.Join(ctx, match)
			ctx.Dispatch(func(ctx app.Context) {
				m.joining = false
				if err != nil {
					klog.Errorf("Matches: joining match %d: %v", match.ID, err)
					m.Error = "No se pudo unir a la partida"
					return
				}
				ctx.Navigate(fmt.Sprintf("/juego/%d", res.Partida.ID))
			})
		})
	}
}

// createdAgo renders a match's creation time as a relative phrase.
func createdAgo(m api.Match) string {
	t, err := time.Parse(time.RFC3339, m.CreatedAt)
	if err != nil {
		return ""
	}
	return humanize.Time(t)
}

func (m *Matches) Render() app.UI {
	var errLine app.UI = app.Text("")
	if m.Error != "" {
		errLine = app.P().Style("color", "red").Text(m.Error)
	}

	matches := []api.Match{}
	if m.sync != nil {
		matches = m.sync.Matches()
	}

	var rows []app.UI
	for _, match := range matches {
		match := match
		creator := ""
		if match.Jugador1 != nil {
			creator = match.Jugador1.FullName
		}
		rows = append(rows, app.Tr().Body(
			app.Td().Text(match.Nombre),
			app.Td().Text(match.Descripcion),
			app.Td().Text(creator),
			app.Td().Text(createdAgo(match)),
			app.Td().Body(
				app.Button().
					Disabled(m.joining).
					Text("Unirse").
					OnClick(m.onJoin(match)),
			),
		))
	}

	var content app.UI
	if len(rows) == 0 {
		content = app.P().Text("No hay partidas abiertas ahora mismo. ¡Crea una!")
	} else {
		content = app.Table().Body(
			app.THead().Body(
				app.Tr().Body(
					app.Th().Text("Nombre"),
					app.Th().Text("Descripción"),
					app.Th().Text("Creador"),
					app.Th().Text("Creada"),
					app.Th(),
				),
			),
			app.TBody().Body(rows...),
		)
	}

	return app.Main().Class("container").Body(
		&TopBar{},
		app.Article().Body(
			app.Header().Body(
				app.H2().Text(fmt.Sprintf("Partidas abiertas (%d)", len(matches))),
			),
			errLine,
			content,
		),
	)
}
