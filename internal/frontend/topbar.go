package frontend

import (
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

type TopBar struct {
	app.Compo
}

func (t *TopBar) onBannerClick(ctx app.Context, e app.Event) {
	ctx.Navigate("/")
}

func (t *TopBar) Render() app.UI {
	return app.Nav().Body(
		app.Ul().Body(
			app.Li().Body(
				app.Strong().
					Text("SimonDuel").
					Style("cursor", "pointer").
					OnClick(t.onBannerClick),
			),
		),
		app.Ul().Body(
			app.Li().Body(
				app.A().Href("/partidas").Text("Partidas"),
			),
			app.Li().Body(
				app.Span().Text(PlayerName()),
			),
		),
	)
}
