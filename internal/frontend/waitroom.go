package frontend

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"github.com/simonduel/SimonDuel/internal/waitroom"
	qrcode "github.com/skip2/go-qrcode"
	"k8s.io/klog/v2"
)

// SalaEspera is the pre-game lobby screen for a match the player created.
type SalaEspera struct {
	app.Compo
	MatchID int
	Error   string
	qrData  string

	coord *waitroom.Coordinator
}

func (s *SalaEspera) OnMount(ctx app.Context) {
	klog.V(1).Infof("SalaEspera: OnMount called")

	path := app.Window().URL().Path
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "sala-espera" {
		if id, err := strconv.Atoi(parts[1]); err == nil {
			s.MatchID = id
		}
	}
	if s.MatchID == 0 {
		s.Error = "Partida no válida"
		klog.Errorf("SalaEspera: no match id in %q", path)
		return
	}

	s.qrData = inviteQR()

	s.coord = waitroom.New(State.API, State.Scheduler, s.MatchID, waitroom.Hooks{
		OnChange: func() {
			ctx.Dispatch(func(ctx app.Context) {})
		},
		NavigateToGame: func(path string) {
			ctx.Dispatch(func(ctx app.Context) {
				klog.Infof("SalaEspera: opponent found, navigating to %s", path)
				ctx.Navigate(path)
			})
		},
		NavigateHome: func() {
			ctx.Dispatch(func(ctx app.Context) {
				ctx.Navigate("/")
			})
		},
	})

	ctx.Async(func() {
		if err := s.coord.Start(ctx); err != nil {
			// A missing match is not transient; leave instead of retrying.
			ctx.Dispatch(func(ctx app.Context) {
				ctx.Navigate("/")
			})
		}
	})
}

func (s *SalaEspera) OnDismount() {
	klog.V(1).Infof("SalaEspera: OnDismount called")
	if s.coord != nil {
		s.coord.Close()
	}
}

// inviteQR encodes the current URL as a PNG data URI so the creator can
// hand the lobby to an opponent on another device.
func inviteQR() string {
	url := app.Window().URL().String()
	png, err := qrcode.Encode(url, qrcode.Medium, 160)
	if err != nil {
		klog.Errorf("SalaEspera: encoding invite QR: %v", err)
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

func (s *SalaEspera) onCancel(ctx app.Context, e app.Event) {
	e.PreventDefault()
	ctx.Async(func() {
		s.coord.Cancel(ctx)
	})
}

func (s *SalaEspera) Render() app.UI {
	if s.Error != "" {
		return app.Main().Class("container").Body(
			&TopBar{},
			app.Article().Body(
				app.P().Style("color", "red").Text(s.Error),
				app.A().Href("/").Text("Volver al inicio"),
			),
		)
	}
	if s.coord == nil || s.coord.State() == waitroom.Loading {
		return app.Main().Class("container").Body(
			&TopBar{},
			app.Div().Aria("busy", "true").Text("Cargando la sala de espera..."),
		)
	}

	var qr app.UI = app.Text("")
	if s.qrData != "" {
		qr = app.Div().Style("text-align", "center").Body(
			app.Img().Src(s.qrData).Alt("Código QR de invitación"),
			app.P().Class("ins").Text("Comparte este código para invitar a un jugador"),
		)
	}

	redirecting := s.coord.State() == waitroom.ReadyToTransition || s.coord.State() == waitroom.TransitionedOut

	return app.Main().Class("container").Body(
		&TopBar{},
		app.Article().Body(
			app.Header().Body(
				app.H2().Text(fmt.Sprintf("Sala de espera · Partida %d", s.MatchID)),
			),
			app.P().Text(s.coord.StatusMessage()),
			app.Progress().Value(s.coord.ProgressPercent()).Max(100),
			app.P().Text(fmt.Sprintf("Jugadores: %d / 2", s.coord.Players())),
			qr,
			app.Footer().Body(
				app.Button().
					Class("outline contrast").
					Disabled(redirecting).
					Text("Cancelar partida").
					OnClick(s.onCancel),
			),
		),
	)
}
