package router

import (
	"testing"

	tg "github.com/m3rciful/quicklink/core/telegram"
	"github.com/m3rciful/quicklink/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	return b
}

func textUpdate(id int, userID int64, text string) tele.Update {
	return tele.Update{ID: id, Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}}
}

func findRoute(routes []tg.Route, endpoint any) tele.HandlerFunc {
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	return nil
}

func TestMessageRoutesPreferCommands(t *testing.T) {
	b := offlineBot(t)
	reg := tg.NewRegistry()
	var ran []string
	reg.RegisterCommand("/shorten", commands.Command{
		Description: "Shorten",
		Aliases:     []string{"shortner"},
		Handler: func(c tele.Context) error {
			ran = append(ran, "cmd:"+c.Text())
			return nil
		},
	})
	routes := MessageRoutes(reg, MessageOptions{OnMessage: func(c tele.Context) error {
		ran = append(ran, "msg:"+c.Text())
		return nil
	}})
	text := findRoute(routes, tele.OnText)
	if text == nil {
		t.Fatal("no text route")
	}
	if findRoute(routes, tele.OnPhoto) == nil || findRoute(routes, tele.OnDocument) == nil {
		t.Fatal("media routes missing")
	}

	_ = text(b.NewContext(textUpdate(1, 5, "/Shortner")))
	_ = text(b.NewContext(textUpdate(2, 5, "https://example.com")))
	_ = text(b.NewContext(textUpdate(3, 5, "/nope")))

	want := []string{"cmd:/Shortner", "msg:https://example.com", "msg:/nope"}
	if len(ran) != len(want) {
		t.Fatalf("ran = %v", ran)
	}
	for i := range want {
		if ran[i] != want[i] {
			t.Fatalf("ran[%d] = %q, want %q", i, ran[i], want[i])
		}
	}
}

func TestCommandRoutesAliasesAndAdmin(t *testing.T) {
	b := offlineBot(t)
	reg := tg.NewRegistry()
	var ran, rejected int
	reg.RegisterCommand("/admin", commands.Command{
		Description: "Admin",
		AdminOnly:   true,
		Handler:     func(tele.Context) error { ran++; return nil },
	})
	reg.RegisterCommand("/state", commands.Command{
		Description: "Stats",
		Aliases:     []string{"stats"},
		Handler:     func(tele.Context) error { return nil },
	})
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       100,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	if len(routes) != 3 {
		t.Fatalf("routes = %d, want 3", len(routes))
	}
	if findRoute(routes, "/stats") == nil {
		t.Fatal("alias route missing")
	}
	admin := findRoute(routes, "/admin")
	_ = admin(b.NewContext(textUpdate(10, 7, "/admin")))
	_ = admin(b.NewContext(textUpdate(11, 100, "/admin")))
	if ran != 1 || rejected != 1 {
		t.Fatalf("ran=%d rejected=%d", ran, rejected)
	}
}

func TestCallbackRouteDispatchesByNamespace(t *testing.T) {
	b := offlineBot(t)
	reg := tg.NewRegistry()
	var got string
	_ = reg.RegisterCallback("alias", func(c tele.Context) error {
		got = c.Callback().Data
		return nil
	})
	notFound := 0
	route := CallbackRoute(reg, CallbackOptions{NotFound: func(tele.Context) error { notFound++; return nil }})

	upd := func(id int, data string) tele.Update {
		return tele.Update{ID: id, Callback: &tele.Callback{
			Data:   data,
			Sender: &tele.User{ID: 3},
		}}
	}
	_ = route.Handler(b.NewContext(upd(20, "alias|skip")))
	_ = route.Handler(b.NewContext(upd(21, "zzz|1")))
	if got != "alias|skip" {
		t.Fatalf("data = %q", got)
	}
	if notFound != 1 {
		t.Fatalf("not found = %d", notFound)
	}
}
