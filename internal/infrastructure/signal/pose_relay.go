package signal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
	"dancebattle/internal/core/services"
	"dancebattle/internal/infrastructure/middleware"
	"dancebattle/pkg/config"
	"dancebattle/pkg/errors"
	rlog "dancebattle/pkg/logger"
	"dancebattle/pkg/similarity"
	"dancebattle/pkg/tracing"
	"dancebattle/pkg/utils"
	"dancebattle/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxLoggedPayload = 256

// PoseRelay is the streaming gateway. Each (room, player) pair holds at most one
// connection; a newer connection replaces the older one.
type PoseRelay struct {
	rooms     ports.RoomService
	signaling ports.SignalingService
	tokens    services.PlayerTokenService
	metrics   ports.MetricsRecorder
	cfg       *config.Config

	upgrader    websocket.Upgrader
	unsubscribe func()

	clients map[domain.RoomID]map[domain.PlayerID]*client
	mu      sync.RWMutex

	logger *rlog.ContextLogger
}

var _ ports.WebSocketHandler = (*PoseRelay)(nil)

type client struct {
	roomID   domain.RoomID
	playerID domain.PlayerID
	conn     *websocket.Conn
	send     chan *OutboundMessage
	encoding atomic.Int32
	tracker  *similarity.Tracker
	limiter  *rate.Limiter

	// last reference pose the player sent; owned by the reader goroutine
	reference []*similarity.Landmark

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPoseRelay subscribes the relay to room events so lifecycle and signaling changes
// made through any entry point reach connected players.
func NewPoseRelay(
	rooms ports.RoomService,
	signaling ports.SignalingService,
	tokens services.PlayerTokenService,
	events ports.EventSubscriber,
	metrics ports.MetricsRecorder,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *PoseRelay {
	if metrics == nil {
		metrics = services.NopMetrics{}
	}
	if logger == nil {
		logger = rlog.NewNop()
	}
	r := &PoseRelay{
		rooms:     rooms,
		signaling: signaling,
		tokens:    tokens,
		metrics:   metrics,
		cfg:       cfg,
		clients:   make(map[domain.RoomID]map[domain.PlayerID]*client),
		logger:    rlog.NewContextLogger(logger),
	}
	r.upgrader = websocket.Upgrader{
		CheckOrigin:     originChecker(cfg.Auth.AllowedOrigins),
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if events != nil {
		r.unsubscribe = events.Subscribe(r.onEvent)
	}
	return r
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket serves GET /ws/rooms/:id?player_id=&token=.
func (r *PoseRelay) HandleWebSocket(c *gin.Context) {
	roomID := domain.RoomID(validation.NormalizeRoomCode(c.Param("id")))
	if err := validation.ValidateRoomCode(string(roomID)); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	playerID := domain.PlayerID(c.Query("player_id"))
	if err := validation.ValidatePlayerID(string(playerID)); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if token == "" {
		c.Error(errors.NewUnauthorizedError("player token required"))
		return
	}
	claims, err := r.tokens.ValidatePlayerToken(token)
	if err != nil {
		c.Error(errors.NewUnauthorizedError(err.Error()))
		return
	}
	if err := claims.Authorizes(roomID, playerID); err != nil {
		c.Error(errors.NewUnauthorizedError(err.Error()))
		return
	}

	room, err := r.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		c.Error(err)
		return
	}
	if !room.HasPlayer(playerID) {
		c.Error(domain.ErrNotRoomMember)
		return
	}
	if room.Status == domain.RoomStatusCompleted {
		c.Error(domain.ErrGameCompleted)
		return
	}

	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		r.logger.For(c.Request.Context()).Warnw("websocket upgrade failed", "room_id", roomID, "player_id", playerID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = rlog.WithRoom(ctx, string(roomID), string(playerID))
	cl := &client{
		roomID:   roomID,
		playerID: playerID,
		conn:     conn,
		send:     make(chan *OutboundMessage, r.cfg.Signal.SendBuffer),
		tracker:  similarity.NewTracker(r.cfg.Scoring.RunningWindow),
		limiter:  middleware.NewMessageLimiter(r.cfg),
		ctx:      ctx,
		cancel:   cancel,
	}

	r.register(cl)
	r.metrics.ConnectionOpened()
	r.logger.For(ctx).Infow("player connected")

	go r.writePump(cl)
	r.readPump(cl)

	cl.cancel()
	if r.unregister(cl) {
		r.broadcast(roomID, playerID, &OutboundMessage{Type: TypeOpponentDisconnected, PlayerID: playerID})
	}
	r.metrics.ConnectionClosed()
	r.logger.For(ctx).Infow("player disconnected")
}

func (r *PoseRelay) register(cl *client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	players, ok := r.clients[cl.roomID]
	if !ok {
		players = make(map[domain.PlayerID]*client)
		r.clients[cl.roomID] = players
	}
	if old, exists := players[cl.playerID]; exists {
		r.logger.For(cl.ctx).Infow("replacing existing connection")
		old.cancel()
	}
	players[cl.playerID] = cl
}

// unregister removes cl unless a newer connection already took its slot.
func (r *PoseRelay) unregister(cl *client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := r.clients[cl.roomID]
	if players[cl.playerID] != cl {
		return false
	}
	delete(players, cl.playerID)
	if len(players) == 0 {
		delete(r.clients, cl.roomID)
	}
	return true
}

func (r *PoseRelay) readPump(cl *client) {
	pongTimeout := r.cfg.Signal.PongTimeout
	cl.conn.SetReadLimit(r.cfg.Signal.MaxMessageSizeBytes)
	cl.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		frameType, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				r.logger.For(cl.ctx).Infow("error reading message", "error", err)
			}
			return
		}
		cl.conn.SetReadDeadline(time.Now().Add(pongTimeout))

		msg, enc, err := DecodeMessage(frameType, data)
		cl.encoding.Store(int32(enc))
		if err != nil {
			r.logger.For(cl.ctx).Debugw("undecodable frame",
				"error", err,
				"payload", utils.TruncateString(string(data), maxLoggedPayload),
			)
			r.sendError(cl, errors.NewInvalidInputError(err.Error()))
			continue
		}
		if cl.limiter != nil && !cl.limiter.Allow() {
			r.sendError(cl, errors.NewRateLimitError())
			continue
		}

		if err := r.handleMessage(cl, msg); err != nil {
			r.sendError(cl, err)
			continue
		}
		if msg.Type == TypeLeave {
			return
		}
	}
}

func (r *PoseRelay) writePump(cl *client) {
	ticker := time.NewTicker(r.cfg.Signal.PingInterval)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	writeTimeout := r.cfg.Signal.WriteTimeout
	for {
		select {
		case msg := <-cl.send:
			enc := Encoding(cl.encoding.Load())
			data, err := EncodeMessage(enc, msg)
			if err != nil {
				r.logger.For(cl.ctx).Warnw("dropping unencodable message", "type", msg.Type, "error", err)
				continue
			}
			cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(enc.frameType(), data); err != nil {
				r.logger.For(cl.ctx).Debugw("write failed", "error", err)
				cl.cancel()
				return
			}

		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.cancel()
				return
			}

		case <-cl.ctx.Done():
			cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		}
	}
}

// enqueue never blocks; a player whose buffer is full misses the message.
func (r *PoseRelay) enqueue(cl *client, msg *OutboundMessage) bool {
	select {
	case cl.send <- msg:
		return true
	default:
		r.logger.For(cl.ctx).Warnw("send buffer full, dropping message", "type", msg.Type)
		return false
	}
}

func (r *PoseRelay) sendError(cl *client, err error) {
	appErr := middleware.MapDomainError(err)
	message := appErr.Message
	if appErr.Code == errors.ErrCodeInternal {
		r.logger.For(cl.ctx).Errorw("message handling failed", "error", err)
		message = "internal error"
	}
	r.enqueue(cl, &OutboundMessage{Type: TypeError, Code: string(appErr.Code), Message: message})
}

// broadcast delivers msg to every local connection of the room except the given player.
// It returns the number of connections that accepted the message.
func (r *PoseRelay) broadcast(roomID domain.RoomID, except domain.PlayerID, msg *OutboundMessage) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for playerID, cl := range r.clients[roomID] {
		if playerID == except {
			continue
		}
		if r.enqueue(cl, msg) {
			delivered++
		}
	}
	return delivered
}

func (r *PoseRelay) handleMessage(cl *client, msg *InboundMessage) error {
	ctx, span := tracing.TraceWebSocketMessage(cl.ctx, msg.Type, string(cl.roomID), string(cl.playerID))
	defer span.End()

	var err error
	switch msg.Type {
	case TypePose:
		err = r.handlePose(cl, msg)
	case TypeFinish:
		err = r.handleFinish(ctx, cl)
	case TypeStart:
		err = r.rooms.StartGame(ctx, cl.roomID)
	case TypeLeave:
		err = r.rooms.LeaveRoom(ctx, cl.roomID, cl.playerID)
	case TypeOffer:
		err = r.signaling.PostOffer(ctx, cl.roomID, cl.playerID, msg.SDP)
	case TypeAnswer:
		err = r.signaling.PostAnswer(ctx, cl.roomID, cl.playerID, msg.SDP)
	case TypeICECandidate:
		if msg.Candidate == nil {
			return errors.NewInvalidInputError("candidate is required")
		}
		_, err = r.signaling.PostICECandidate(ctx, cl.roomID, cl.playerID, msg.Candidate.toWebRTC())
	case "":
		return errors.NewInvalidInputError("message type is required")
	default:
		return errors.NewInvalidInputError(fmt.Sprintf("unknown message type: %s", msg.Type))
	}
	tracing.RecordError(ctx, err)
	return err
}

func (r *PoseRelay) handlePose(cl *client, msg *InboundMessage) error {
	if len(msg.Landmarks) == 0 {
		return errors.NewInvalidInputError("landmarks are required")
	}
	if len(msg.ReferenceLandmarks) > 0 {
		cl.reference = msg.ReferenceLandmarks
	}

	relayed := r.broadcast(cl.roomID, cl.playerID, &OutboundMessage{
		Type:               TypeOpponentPose,
		PlayerID:           cl.playerID,
		Landmarks:          msg.Landmarks,
		ReferenceLandmarks: cl.reference,
	})
	for i := 0; i < relayed; i++ {
		r.metrics.PoseFrameRelayed()
	}

	if len(cl.reference) == 0 {
		return nil
	}
	score := cl.tracker.AddFrame(
		similarity.FromNullable(cl.reference),
		similarity.FromNullable(msg.Landmarks),
	)
	r.enqueue(cl, &OutboundMessage{
		Type:    TypeScoreUpdate,
		Score:   float64Ptr(score),
		Running: float64Ptr(cl.tracker.Running()),
	})
	return nil
}

func (r *PoseRelay) handleFinish(ctx context.Context, cl *client) error {
	if cl.tracker.Count() == 0 {
		return errors.NewFailedPreconditionError("no scored frames to submit")
	}
	final := cl.tracker.Final()
	result, err := r.rooms.SubmitScore(ctx, cl.roomID, cl.playerID, final)
	if err != nil {
		return err
	}
	r.enqueue(cl, &OutboundMessage{
		Type:      TypeScoreSubmitted,
		PlayerID:  cl.playerID,
		Score:     float64Ptr(final),
		Completed: result.Completed,
		WinnerID:  result.WinnerID,
	})
	return nil
}

// onEvent turns room events into pushes to the connections of that room.
func (r *PoseRelay) onEvent(ev *domain.RoomEvent) {
	switch ev.Type {
	case domain.EventRoomCompleted:
		var result domain.GameResult
		if err := ev.DecodePayload(&result); err != nil {
			r.logger.For(context.Background()).Warnw("bad game result payload", "room_id", ev.RoomID, "error", err)
			return
		}
		r.broadcast(ev.RoomID, "", &OutboundMessage{
			Type:     TypeGameResult,
			WinnerID: result.WinnerID,
			Scores:   result.Scores,
		})

	case domain.EventSignal:
		var payload domain.SignalPayload
		if err := ev.DecodePayload(&payload); err != nil {
			r.logger.For(context.Background()).Warnw("bad signal payload", "room_id", ev.RoomID, "error", err)
			return
		}
		msg := &OutboundMessage{Type: TypeSignal, PlayerID: ev.PlayerID, Kind: payload.Kind}
		switch {
		case payload.Offer != nil:
			msg.SDP = payload.Offer.SDP
		case payload.Answer != nil:
			msg.SDP = payload.Answer.SDP
		case payload.Candidate != nil:
			msg.Candidate = candidateFromWebRTC(payload.Candidate.Candidate)
			msg.Seq = payload.Candidate.Seq
		}
		r.broadcast(ev.RoomID, ev.PlayerID, msg)

	case domain.EventRoomStarted:
		r.mu.RLock()
		for _, cl := range r.clients[ev.RoomID] {
			cl.tracker.Reset()
		}
		r.mu.RUnlock()
		r.broadcast(ev.RoomID, "", &OutboundMessage{Type: TypeGameStarted})

	case domain.EventPlayerJoined:
		r.broadcast(ev.RoomID, ev.PlayerID, &OutboundMessage{Type: TypePlayerJoined, PlayerID: ev.PlayerID})

	case domain.EventPlayerLeft:
		r.broadcast(ev.RoomID, ev.PlayerID, &OutboundMessage{Type: TypeOpponentLeft, PlayerID: ev.PlayerID})
	}
}

// ConnectedPlayers lists the players of a room connected to this instance.
func (r *PoseRelay) ConnectedPlayers(roomID domain.RoomID) []domain.PlayerID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := make([]domain.PlayerID, 0, len(r.clients[roomID]))
	for id := range r.clients[roomID] {
		players = append(players, id)
	}
	return players
}

func (r *PoseRelay) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, players := range r.clients {
		n += len(players)
	}
	return n
}

// Close stops event delivery and disconnects every player.
func (r *PoseRelay) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, players := range r.clients {
		for _, cl := range players {
			cl.cancel()
		}
	}
}
