package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/text/language"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/catalogs"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name      = flag.String("name", "bot", "player name")
		locale    = flag.String("locale", "en-US", "client locale")
		configDir = flag.String("configs", "./configs", "config directory (item ids)")
		interval  = flag.Duration("interval", 250*time.Millisecond, "delay between scripted packets")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tag, err := i18n.ParseLocale(*locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	pctx := protocol.NewContext(tag)
	pctx.Items = cats.Items

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send := func(m protocol.Message) {
		b, err := protocol.Serverbound().Encode(pctx, m)
		if err != nil {
			logger.Printf("encode %T: %v", m, err)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
			logger.Printf("write: %v", err)
		}
	}

	// Reader goroutine; all writes stay on this goroutine.
	inbound := make(chan protocol.Message, 64)
	go func() {
		defer close(inbound)
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			m, err := protocol.Clientbound().Decode(pctx, frame)
			if err != nil {
				logger.Printf("decode: %s: %v", protocol.CodeFor(err), err)
				continue
			}
			inbound <- m
		}
	}()

	send(protocol.LoginStart{Name: *name})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var script []protocol.Message
	for {
		select {
		case <-stop:
			return
		case m, ok := <-inbound:
			if !ok {
				return
			}
			switch v := m.(type) {
			case protocol.LoginSuccess:
				logger.Printf("LOGIN uuid=%s name=%s protocol=%d", v.UUID, v.Name, protocol.Version)
			case protocol.JoinGame:
				pctx.SetEntityIDs(v.EntityID, v.EntityID)
				logger.Printf("JOIN entity_id=%d max_players=%d", v.EntityID, v.MaxPlayers)
				send(protocol.ClientSettings{Locale: *locale, ViewDistance: 8, ChatColors: true, SkinParts: 0x7f})
				script = gameplayScript()
			case protocol.KeepAlive:
				send(protocol.KeepAlive{ID: v.ID})
			case protocol.Advancements:
				printAdvancements(logger, v)
			case protocol.SelectAdvancementTab:
				logger.Printf("TAB %q", v.TabID)
			case protocol.ChatMessage:
				logger.Printf("CHAT %s", v.Text.String())
			case protocol.Disconnect:
				logger.Printf("DISCONNECT %s", v.Reason.String())
				return
			}
		case <-ticker.C:
			if len(script) == 0 {
				continue
			}
			send(script[0])
			script = script[1:]
		}
	}
}

// gameplayScript touches every trigger the bundled advancements listen to.
func gameplayScript() []protocol.Message {
	item := func(key string) protocol.Message {
		return protocol.CreativeInventoryAction{Slot: 36, Item: protocol.Slot{Item: key, Count: 1}}
	}
	msgs := []protocol.Message{
		item("crafting_table"),
		item("cobblestone"),
		item("stone_pickaxe"),
	}
	for i := 0; i <= 12; i++ {
		msgs = append(msgs, protocol.PlayerPosition{X: float64(i * 5), Y: 64, Z: 0, OnGround: true})
	}
	msgs = append(msgs,
		protocol.StartSneaking{},
		protocol.LeaveBed{},
		protocol.StartElytraFlying{},
		protocol.ClientChat{Message: "hello from the bot"},
	)
	return msgs
}

func printAdvancements(logger *log.Logger, a protocol.Advancements) {
	logger.Printf("ADVANCEMENTS clear=%v added=%d removed=%d progress=%d", a.Clear, len(a.Added), len(a.Removed), len(a.Progress))
	for _, s := range a.Added {
		title := ""
		if s.Display != nil {
			title = s.Display.Title.String()
		}
		logger.Printf("  + %s parent=%q %s", s.ID, s.Parent, title)
	}
	for _, id := range a.Removed {
		logger.Printf("  - %s", id)
	}
	for _, p := range a.Progress {
		done := 0
		for _, c := range p.Criteria {
			if c.Achieved {
				done++
			}
		}
		logger.Printf("  %s %d/%d", p.ID, done, len(p.Criteria))
	}
}
