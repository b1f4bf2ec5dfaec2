package web

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// Home renders the status page listing live rooms.
func Home(rooms []RoomSummary, now time.Time) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Sketch Judge</title>
  </head>
  <body>
    <main class="shell">
      <header class="hero">
        <h1>Sketch Judge</h1>
        <p>One judge, one prompt, everyone draws.</p>
      </header>
      <section class="panel">
        <h2>Live rooms</h2>
`)
		b.WriteString(roomsTable(rooms, now))
		b.WriteString(`      </section>
    </main>
  </body>
</html>
`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func roomsTable(rooms []RoomSummary, now time.Time) string {
	if len(rooms) == 0 {
		return "        <p class=\"empty\">No rooms are open.</p>\n"
	}
	var b strings.Builder
	b.WriteString("        <table class=\"rooms\">\n")
	b.WriteString("          <tr><th>Code</th><th>Phase</th><th>Players</th><th>Started</th><th>Open for</th></tr>\n")
	for _, room := range rooms {
		started := "no"
		if room.GameStarted {
			started = "yes"
		}
		players := itoa(room.Participants)
		if room.Capacity > 0 {
			players += "/" + itoa(room.Capacity)
		}
		b.WriteString("          <tr><td>")
		b.WriteString(templ.EscapeString(room.Code))
		b.WriteString("</td><td>")
		b.WriteString(templ.EscapeString(room.Phase))
		b.WriteString("</td><td>")
		b.WriteString(players)
		b.WriteString("</td><td>")
		b.WriteString(started)
		b.WriteString("</td><td>")
		b.WriteString(age(room.CreatedAt, now))
		b.WriteString("</td></tr>\n")
	}
	b.WriteString("        </table>\n")
	return b.String()
}
