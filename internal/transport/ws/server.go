package ws

import (
	"context"
	"crypto/md5"
	"io"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/text/language"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/world"
)

// Config holds the per-connection codec settings.
type Config struct {
	DefaultLocale language.Tag
	Localizer     protocol.Localizer
	Items         protocol.ItemRegistry

	MaxFrameBytes int
	MaxNBTDepth   int
	MaxNBTBytes   int
	OutboundQueue int
}

type Server struct {
	world *world.World
	store *snapshot.Store
	cfg   Config
	log   *log.Logger

	upgrader websocket.Upgrader
}

var validName = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)

// NewServer serves the binary protocol over websocket frames, one packet per
// binary message. store may be nil to start every player fresh.
func NewServer(w *world.World, store *snapshot.Store, cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.OutboundQueue <= 0 {
		cfg.OutboundQueue = 256
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = 2 << 20
	}
	if cfg.DefaultLocale == language.Und {
		cfg.DefaultLocale = language.AmericanEnglish
	}
	return &Server{
		world: w,
		store: store,
		cfg:   cfg,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// OfflineUUID is the id an unauthenticated server gives a name: an MD5
// name-based UUID of "OfflinePlayer:<name>" without a namespace.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	return uuid.UUID(sum)
}

func (s *Server) newContext() *protocol.Context {
	ctx := protocol.NewContext(s.cfg.DefaultLocale)
	ctx.Localizer = s.cfg.Localizer
	ctx.Items = s.cfg.Items
	if s.cfg.MaxNBTDepth > 0 {
		ctx.MaxNBTDepth = s.cfg.MaxNBTDepth
	}
	if s.cfg.MaxNBTBytes > 0 {
		ctx.MaxNBTBytes = s.cfg.MaxNBTBytes
	}
	return ctx
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(int64(s.cfg.MaxFrameBytes))

		ref, pctx, out := s.handshake(conn)
		if out == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine. The world closes out when the session ends.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
						_ = conn.Close()
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			mt, frame, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if mt != websocket.BinaryMessage {
				cancel()
				<-writerDone
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "expected binary frames"), time.Now().Add(time.Second))
				break
			}
			msg, err := protocol.Serverbound().Decode(pctx, frame)
			if err != nil {
				code := protocol.CodeFor(err)
				s.log.Printf("ws %s: %s: %v", ref.PlayerID, code, err)
				cancel()
				<-writerDone
				s.kick(conn, i18n.Translatable("multiplayer.disconnect.malformed", i18n.Plain(code)), code)
				break
			}
			s.world.Inbox() <- world.PacketEnvelope{PlayerID: ref.PlayerID, Session: ref.Session, Msg: msg}
		}

		// Cleanup.
		cancel()
		s.world.Leave() <- ref
	}
}

// handshake reads LoginStart, loads saved progress and joins the world
// under a fresh session id. It returns a nil queue when the connection must
// be closed.
func (s *Server) handshake(conn *websocket.Conn) (world.LeaveRequest, *protocol.Context, chan []byte) {
	var none world.LeaveRequest
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, frame, err := conn.ReadMessage()
	if err != nil {
		return none, nil, nil
	}
	if mt != websocket.BinaryMessage {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected LoginStart"), time.Now().Add(time.Second))
		return none, nil, nil
	}

	pctx := s.newContext()
	msg, err := protocol.Serverbound().Decode(pctx, frame)
	if err != nil {
		code := protocol.CodeFor(err)
		s.kick(conn, i18n.Translatable("multiplayer.disconnect.malformed", i18n.Plain(code)), code)
		return none, nil, nil
	}
	login, ok := msg.(protocol.LoginStart)
	if !ok {
		s.kick(conn, i18n.Translatable("multiplayer.disconnect.login_expected"), "expected LoginStart")
		return none, nil, nil
	}
	if !validName.MatchString(login.Name) {
		s.kick(conn, i18n.Translatable("multiplayer.disconnect.invalid_name"), "invalid name")
		return none, nil, nil
	}

	id := OfflineUUID(login.Name)
	var saved *snapshot.PlayerV1
	if s.store != nil {
		snap, found, err := s.store.Load(id)
		if err != nil {
			s.log.Printf("ws %s: load progress: %v", login.Name, err)
			s.kick(conn, i18n.Translatable("multiplayer.disconnect.load_failed"), "load failed")
			return none, nil, nil
		}
		if found {
			saved = &snap
		}
	}

	session := uuid.New()
	out := make(chan []byte, s.cfg.OutboundQueue)
	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{
		Name:    login.Name,
		UUID:    id,
		Session: session,
		Saved:   saved,
		Ctx:     pctx,
		Out:     out,
		Resp:    respCh,
	}
	resp := <-respCh
	if resp.Refused {
		s.kick(conn, resp.Reason, "refused")
		return none, nil, nil
	}

	b, err := protocol.Clientbound().Encode(pctx, protocol.LoginSuccess{UUID: id, Name: login.Name})
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err = conn.WriteMessage(websocket.BinaryMessage, b)
	}
	ref := world.LeaveRequest{PlayerID: id, Session: session}
	if err != nil {
		s.world.Leave() <- ref
		return none, nil, nil
	}
	return ref, pctx, out
}

// kick writes a Disconnect and a close frame. It encodes with a fresh
// context: the session context belongs to the world goroutine once joined.
func (s *Server) kick(conn *websocket.Conn, reason i18n.Text, closeText string) {
	if b, err := protocol.Clientbound().Encode(s.newContext(), protocol.Disconnect{Reason: reason}); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = conn.WriteMessage(websocket.BinaryMessage, b)
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, closeText), time.Now().Add(time.Second))
}
