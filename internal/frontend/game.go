package frontend

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"github.com/simonduel/SimonDuel/internal/engine"
	"k8s.io/klog/v2"
)

// FlashDuration is how long a revealed color stays lit on the pad.
const FlashDuration = 900 * time.Millisecond

var padColors = map[string]string{
	"rojo":     "#e63946",
	"azul":     "#457b9d",
	"verde":    "#2a9d8f",
	"amarillo": "#e9c46a",
}

// Juego is the board screen: the color pads, the status line and the winner
// panel, all driven by one engine per viewed match.
type Juego struct {
	app.Compo
	MatchID int
	Error   string

	eng      *engine.Engine
	flashing string // pad currently lit by a reveal, "" otherwise
}

func (j *Juego) OnMount(ctx app.Context) {
	klog.V(1).Infof("Juego: OnMount called")

	path := app.Window().URL().Path
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "juego" {
		if id, err := strconv.Atoi(parts[1]); err == nil {
			j.MatchID = id
		}
	}
	if j.MatchID == 0 {
		j.Error = "Partida no válida"
		klog.Errorf("Juego: no match id in %q", path)
		return
	}

	j.eng = engine.New(State.API, State.Scheduler, j.MatchID, func() {
		ctx.Dispatch(func(ctx app.Context) {
			j.consumeFlash(ctx)
		})
	})

	ctx.Async(func() {
		if err := j.eng.Start(ctx); err != nil {
			ctx.Dispatch(func(ctx app.Context) {
				j.Error = "No se pudo cargar la partida"
			})
		}
	})
}

func (j *Juego) OnDismount() {
	klog.V(1).Infof("Juego: OnDismount called")
	if j.eng != nil {
		j.eng.Close()
	}
}

// consumeFlash lights up the revealed pad and schedules it to go dark again.
func (j *Juego) consumeFlash(ctx app.Context) {
	color, ok := j.eng.TakeFlash()
	if !ok {
		return
	}
	j.flashing = color
	time.AfterFunc(FlashDuration, func() {
		ctx.Dispatch(func(ctx app.Context) {
			if j.flashing == color {
				j.flashing = ""
			}
		})
	})
}

func (j *Juego) onPad(color string) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		j.eng.SelectColor(color)
	}
}

func (j *Juego) Render() app.UI {
	if j.Error != "" {
		return app.Main().Class("container").Body(
			&TopBar{},
			app.Article().Body(
				app.P().Style("color", "red").Text(j.Error),
				app.A().Href("/partidas").Text("Volver a las partidas"),
			),
		)
	}
	if j.eng == nil || j.eng.Snapshot() == nil {
		return app.Main().Class("container").Body(
			&TopBar{},
			app.Div().Aria("busy", "true").Text("Cargando la partida..."),
		)
	}

	snap := j.eng.Snapshot()
	if j.eng.State() == engine.Finished {
		return app.Main().Class("container").Body(
			&TopBar{},
			j.renderFinished(),
		)
	}

	myTurn := j.eng.IsMyTurn()
	submitting := j.eng.State() == engine.Submitting
	selection := j.eng.Selection()
	want := snap.Juego.NivelActual + 1

	turnLine := "Turno de tu oponente, espera..."
	if myTurn {
		turnLine = fmt.Sprintf("¡Tu turno! Repite la secuencia (%d/%d)", len(selection), want)
	}
	if submitting {
		turnLine = "Enviando secuencia..."
	}

	var msgLine app.UI = app.Text("")
	if msg := j.eng.Message(); msg != "" {
		msgLine = app.P().Class("ins").Text(msg)
	}

	var pads []app.UI
	for _, color := range paletteOptions {
		color := color
		style := padColors[color]
		opacity := "0.55"
		if j.flashing == color || (myTurn && !submitting) {
			opacity = "1"
		}
		pads = append(pads, app.Button().
			Class("pad").
			Style("background-color", style).
			Style("opacity", opacity).
			Style("width", "7rem").
			Style("height", "7rem").
			Style("margin", "0.4rem").
			Disabled(!myTurn || submitting).
			Title(color).
			OnClick(j.onPad(color)),
		)
	}

	opponent := "..."
	if snap.Oponente != nil {
		opponent = snap.Oponente.FullName
	}

	return app.Main().Class("container").Body(
		&TopBar{},
		app.Article().Body(
			app.Header().Body(
				app.H2().Text(snap.Partida.Nombre),
				app.P().Text(fmt.Sprintf("Nivel %d · %s contra %s",
					snap.Juego.NivelActual+1, snap.JugadorActual.FullName, opponent)),
			),
			app.P().Text(turnLine),
			msgLine,
			app.Div().Style("text-align", "center").Body(pads...),
		),
	)
}

func (j *Juego) renderFinished() app.UI {
	snap := j.eng.Snapshot()
	headline := "Partida terminada"
	detail := j.eng.Message()

	if winner := j.eng.Winner(); winner != nil {
		if *winner == snap.JugadorActual.ID {
			headline = "¡Has ganado! 🎉"
		} else {
			headline = "Has perdido"
		}
	}
	if snap.ResultadoFinal != nil && snap.ResultadoFinal.Mensaje != "" {
		detail = snap.ResultadoFinal.Mensaje
	}

	return app.Article().Body(
		app.Header().Body(
			app.H2().Text(headline),
		),
		app.P().Text(detail),
		app.Footer().Body(
			app.A().Href("/").Class("button").Text("Volver al inicio"),
			app.A().Href("/partidas").Text("Ver más partidas"),
		),
	)
}
