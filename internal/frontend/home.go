package frontend

import (
	"fmt"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"github.com/simonduel/SimonDuel/internal/api"
	"k8s.io/klog/v2"
)

var paletteOptions = []string{"rojo", "azul", "verde", "amarillo"}

// Home is the landing page: win/loss stats plus the create-match form.
type Home struct {
	app.Compo
	Nombre      string
	Descripcion string
	Stats       *api.Stats
	Error       string
	creating    bool
}

func (h *Home) OnMount(ctx app.Context) {
	klog.V(1).Infof("Home: OnMount called")
	State.Listeners["home"] = func() {
		ctx.Dispatch(func(ctx app.Context) {})
	}

	ctx.Async(func() {
		stats, err := State.API.FetchStats(ctx)
		if err != nil {
			klog.Errorf("Home: fetching stats: %v", err)
			return
		}
		ctx.Dispatch(func(ctx app.Context) {
			h.Stats = stats
		})
	})
}

func (h *Home) OnDismount() {
	delete(State.Listeners, "home")
}

func (h *Home) onNombreChange(ctx app.Context, e app.Event) {
	h.Nombre = ctx.JSSrc().Get("value").String()
}

func (h *Home) onDescripcionChange(ctx app.Context, e app.Event) {
	h.Descripcion = ctx.JSSrc().Get("value").String()
}

func (h *Home) onCreateMatch(ctx app.Context, e app.Event) {
	e.PreventDefault()
	if h.creating {
		return
	}
	if h.Nombre == "" {
		h.Error = "La partida necesita un nombre"
		return
	}
	h.creating = true
	h.Error = ""

	ctx.Async(func() {
		created, err := State.API.CreateMatch(ctx, api.CreateMatchRequest{
			Nombre:             h.Nombre,
			Descripcion:        h.Descripcion,
			ColoresDisponibles: paletteOptions,
		})
		ctx.Dispatch(func(ctx app.Context) {
			h.creating = false
			if err != nil {
				klog.Errorf("Home: creating match: %v", err)
				h.Error = "No se pudo crear la partida"
				return
			}
			klog.Infof("Home: match %d created, entering waiting room", created.ID)
			ctx.Navigate(fmt.Sprintf("/sala-espera/%d", created.ID))
		})
	})
}

func (h *Home) Render() app.UI {
	var statsLine app.UI = app.Text("")
	if h.Stats != nil {
		statsLine = app.P().Text(fmt.Sprintf("Ganadas: %d · Perdidas: %d", h.Stats.Ganadas, h.Stats.Perdidas))
	}

	var errLine app.UI = app.Text("")
	if h.Error != "" {
		errLine = app.P().Style("color", "red").Text(h.Error)
	}

	return app.Main().Class("container").Body(
		&TopBar{},
		app.Article().Body(
			app.Header().Body(
				app.H2().Text("Crear una partida"),
			),
			statsLine,
			app.P().Text("Crea una partida y espera a que otro jugador se una, o únete a una existente."),
			errLine,
			app.Form().OnSubmit(h.onCreateMatch).Body(
				app.Label().For("nombre").Text("Nombre"),
				app.Input().
					Type("text").
					ID("nombre").
					Placeholder("p. ej. Duelo rápido").
					Value(h.Nombre).
					OnInput(h.onNombreChange),
				app.Label().For("descripcion").Text("Descripción"),
				app.Input().
					Type("text").
					ID("descripcion").
					Value(h.Descripcion).
					OnInput(h.onDescripcionChange),
				app.Button().Type("submit").Disabled(h.creating).Text("Crear partida"),
			),
			app.P().Body(
				app.A().Href("/partidas").Text("Ver partidas abiertas"),
			),
		),
	)
}
