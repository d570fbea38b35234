package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/parley/internal/chat"
	"github.com/eldtechnologies/parley/internal/metrics"
)

// maxConnsPerIP bounds concurrent connections from one address.
const maxConnsPerIP = 32

// Server terminates client websockets and translates frames into chat
// operations. Each connection's frames are handled sequentially in its own
// read loop; concurrency across connections is the chat core's problem.
type Server struct {
	log      zerolog.Logger
	chat     *chat.Server
	upgrader websocket.Upgrader
	limiter  *connLimiter
}

// NewServer creates a websocket front end for the given chat server.
func NewServer(log zerolog.Logger, c *chat.Server) *Server {
	return &Server{
		log:  log.With().Str("component", "ws").Logger(),
		chat: c,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		limiter: newConnLimiter(maxConnsPerIP),
	}
}

// ServeHTTP upgrades the connection and runs its read loop until the client
// goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := realIP(r)
	if !s.limiter.acquire(ip) {
		s.log.Warn().Str("ip", ip).Msg("connection limit reached")
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	defer s.limiter.release(ip)

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("upgrade failed")
		return
	}

	c := newConn(uuid.New().String(), sock, s.log)
	metrics.Connections.Inc()
	defer metrics.Connections.Dec()

	go c.writePump()
	defer c.shutdown()

	c.log.Info().Str("remote", r.RemoteAddr).Msg("client connected")

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			break
		}

		f, err := ParseFrame(data)
		if err != nil {
			c.log.Debug().Err(err).Msg("bad frame")
			continue
		}

		resp := s.handle(r.Context(), c, f)
		if err := c.enqueue(resp); err != nil {
			break
		}
	}

	c.log.Info().Msg("client disconnected")
}

// handle dispatches one request frame and builds its result frame. Pushes
// triggered along the way (evictions, deliveries, drains) go out through the
// sessions' own connections, not through the response.
func (s *Server) handle(ctx context.Context, c *conn, f Frame) Frame {
	resp := Frame{Type: TypeResult, ID: f.ID}

	switch f.Type {
	case TypeHello:
		resp.ClientID = s.chat.RegisterClient()
		resp.OK = true

	case TypeCreateAccount:
		ok, err := s.chat.CreateAccount(ctx, f.Account)
		s.result(&resp, ok, err)

	case TypeDeleteAccount:
		ok, err := s.chat.DeleteAccount(ctx, f.Account)
		s.result(&resp, ok, err)

	case TypeCreateGroup:
		if err := s.chat.CreateGroup(ctx, f.Group, f.Members); err != nil {
			resp.Error = err.Error()
		} else {
			resp.OK = true
		}

	case TypeDeleteGroup:
		ok, err := s.chat.DeleteGroup(ctx, f.Group)
		s.result(&resp, ok, err)

	case TypeListAccounts:
		names, err := s.chat.ListAccounts(ctx, f.Pattern)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.OK = true
			resp.Names = names
		}

	case TypeListGroups:
		names, err := s.chat.ListGroups(ctx, f.Pattern)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.OK = true
			resp.Names = names
		}

	case TypeLogin:
		ok, err := s.chat.Login(ctx, f.ClientID, f.Seq, c, f.Account)
		s.result(&resp, ok, err)

	case TypeLogout:
		resp.OK = s.chat.Logout(f.ClientID, f.Seq, f.Account)

	case TypeLoginStatus:
		resp.OK = true
		resp.Account = s.chat.LoginStatus(f.ClientID)

	case TypeSendAccount:
		ok, err := s.chat.SendToAccount(ctx, f.ClientID, f.Seq, f.Sender, f.Recipient, f.Body, f.Timestamp)
		s.result(&resp, ok, err)

	case TypeSendGroup:
		ok, err := s.chat.SendToGroup(ctx, f.ClientID, f.Seq, f.Sender, f.Group, f.Body, f.Timestamp)
		s.result(&resp, ok, err)

	case TypeUndelivered:
		ok, err := s.chat.Undelivered(ctx, c, f.Account)
		s.result(&resp, ok, err)

	default:
		resp.Error = "unknown frame type: " + f.Type
	}

	return resp
}

func (s *Server) result(resp *Frame, ok bool, err error) {
	if err != nil {
		resp.Error = err.Error()
		return
	}
	resp.OK = ok
}
