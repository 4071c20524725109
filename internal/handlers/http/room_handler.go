package http

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
	"dancebattle/internal/core/services"
	"dancebattle/internal/infrastructure/middleware"
	"dancebattle/pkg/cache"
	"dancebattle/pkg/errors"
	"dancebattle/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	qrCodeSize       = 320
	qrCacheTTL       = 10 * time.Minute
	qrCacheEntries   = 1024
	sinceParamPrefix = "since_"
)

type RoomHandler struct {
	rooms      ports.RoomService
	signaling  ports.SignalingService
	tokens     services.PlayerTokenService
	iceServers []webrtc.ICEServer
	publicURL  string
	qrCodes    *cache.Cache[domain.RoomID, []byte]
	logger     *zap.SugaredLogger
}

var _ ports.RoomHTTPHandler = (*RoomHandler)(nil)

func NewRoomHandler(
	rooms ports.RoomService,
	signaling ports.SignalingService,
	tokens services.PlayerTokenService,
	iceServers []webrtc.ICEServer,
	publicURL string,
	logger *zap.SugaredLogger,
) *RoomHandler {
	return &RoomHandler{
		rooms:      rooms,
		signaling:  signaling,
		tokens:     tokens,
		iceServers: iceServers,
		publicURL:  strings.TrimRight(publicURL, "/"),
		qrCodes:    cache.NewCache[domain.RoomID, []byte](qrCacheTTL, qrCacheEntries),
		logger:     logger,
	}
}

// SetupRoutes registers the room RPCs. playerAuth guards the calls made on behalf of a player.
func (h *RoomHandler) SetupRoutes(api *gin.RouterGroup, playerAuth gin.HandlerFunc) {
	api.GET("/ice-servers", h.ICEServers)

	rooms := api.Group("/rooms")
	{
		rooms.POST("", h.CreateRoom)
		rooms.GET("/:id", h.GetRoom)
		rooms.GET("/:id/qr", h.QRCode)
		rooms.GET("/:id/signaling", h.GetSignaling)
		rooms.POST("/:id/join", h.JoinRoom)
		rooms.POST("/:id/start", h.StartGame)

		player := rooms.Group("/:id", playerAuth)
		player.POST("/leave", h.LeaveRoom)
		player.POST("/offer", h.HandleOffer)
		player.POST("/answer", h.HandleAnswer)
		player.POST("/ice-candidates", h.HandleICECandidate)
		player.POST("/scores", h.SubmitScore)
	}
}

type roomView struct {
	RoomID      domain.RoomID               `json:"room_id"`
	HostID      domain.PlayerID             `json:"host_id,omitempty"`
	Players     []domain.PlayerID           `json:"players"`
	Status      domain.RoomStatus           `json:"status"`
	GameStarted bool                        `json:"game_started"`
	Scores      map[domain.PlayerID]float64 `json:"scores"`
	WinnerID    domain.PlayerID             `json:"winner_id,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	StartedAt   *time.Time                  `json:"started_at,omitempty"`
	CompletedAt *time.Time                  `json:"completed_at,omitempty"`
	Version     uint64                      `json:"version"`
}

func newRoomView(room *domain.Room) roomView {
	v := roomView{
		RoomID:      room.ID,
		HostID:      room.HostID,
		Players:     room.Players,
		Status:      room.Status,
		GameStarted: room.GameStarted,
		Scores:      room.Scores,
		WinnerID:    room.WinnerID,
		CreatedAt:   room.CreatedAt,
		Version:     room.Version,
	}
	if !room.StartedAt.IsZero() {
		v.StartedAt = &room.StartedAt
	}
	if !room.CompletedAt.IsZero() {
		v.CompletedAt = &room.CompletedAt
	}
	return v
}

type playerRequest struct {
	PlayerID domain.PlayerID `json:"player_id" binding:"required"`
}

type sessionRequest struct {
	PlayerID domain.PlayerID `json:"player_id" binding:"required"`
	SDP      string          `json:"sdp" binding:"required"`
}

type iceCandidateRequest struct {
	PlayerID  domain.PlayerID          `json:"player_id" binding:"required"`
	Candidate *webrtc.ICECandidateInit `json:"candidate" binding:"required"`
}

type scoreRequest struct {
	PlayerID domain.PlayerID `json:"player_id" binding:"required"`
	Score    *float64        `json:"score" binding:"required"`
}

func roomIDParam(c *gin.Context) (domain.RoomID, error) {
	code := validation.NormalizeRoomCode(c.Param("id"))
	if err := validation.ValidateRoomCode(code); err != nil {
		return "", errors.NewInvalidInputError(err.Error())
	}
	return domain.RoomID(code), nil
}

func validatePlayer(playerID domain.PlayerID) error {
	if err := validation.ValidatePlayerID(string(playerID)); err != nil {
		return errors.NewInvalidInputError(err.Error())
	}
	return nil
}

// bindPlayerRequest parses the body, validates the room and player and checks the
// caller's token against them.
func bindPlayerRequest(c *gin.Context, req interface{}, playerOf func() domain.PlayerID) (domain.RoomID, bool) {
	roomID, err := roomIDParam(c)
	if err != nil {
		c.Error(err)
		return "", false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return "", false
	}
	playerID := playerOf()
	if err := validatePlayer(playerID); err != nil {
		c.Error(err)
		return "", false
	}
	if err := middleware.AuthorizePlayer(c, roomID, playerID); err != nil {
		c.Error(err)
		return "", false
	}
	return roomID, true
}

func (h *RoomHandler) joinURL(roomID domain.RoomID) string {
	return fmt.Sprintf("%s/?room=%s", h.publicURL, roomID)
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	room, err := h.rooms.CreateRoom(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"room_id":  room.ID,
		"join_url": h.joinURL(room.ID),
	})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, newRoomView(room))
}

// JoinRoom admits a player. A missing player_id is replaced by a fresh UUID.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req struct {
		PlayerID domain.PlayerID `json:"player_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if req.PlayerID == "" {
		req.PlayerID = domain.PlayerID(uuid.NewString())
	}
	if err := validatePlayer(req.PlayerID); err != nil {
		c.Error(err)
		return
	}

	if err := h.rooms.JoinRoom(c.Request.Context(), roomID, req.PlayerID); err != nil {
		c.Error(err)
		return
	}

	token, err := h.tokens.IssuePlayerToken(roomID, req.PlayerID)
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to issue player token", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"player_id": req.PlayerID,
		"token":     token,
	})
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	var req playerRequest
	roomID, ok := bindPlayerRequest(c, &req, func() domain.PlayerID { return req.PlayerID })
	if !ok {
		return
	}

	if err := h.rooms.LeaveRoom(c.Request.Context(), roomID, req.PlayerID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RoomHandler) HandleOffer(c *gin.Context) {
	var req sessionRequest
	roomID, ok := bindPlayerRequest(c, &req, func() domain.PlayerID { return req.PlayerID })
	if !ok {
		return
	}

	if err := h.signaling.PostOffer(c.Request.Context(), roomID, req.PlayerID, req.SDP); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RoomHandler) HandleAnswer(c *gin.Context) {
	var req sessionRequest
	roomID, ok := bindPlayerRequest(c, &req, func() domain.PlayerID { return req.PlayerID })
	if !ok {
		return
	}

	if err := h.signaling.PostAnswer(c.Request.Context(), roomID, req.PlayerID, req.SDP); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RoomHandler) HandleICECandidate(c *gin.Context) {
	var req iceCandidateRequest
	roomID, ok := bindPlayerRequest(c, &req, func() domain.PlayerID { return req.PlayerID })
	if !ok {
		return
	}

	seq, err := h.signaling.PostICECandidate(c.Request.Context(), roomID, req.PlayerID, *req.Candidate)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "seq": seq})
}

// GetSignaling returns the negotiation state. since_<player_id>=n limits that player's
// candidates to those with a higher sequence number.
func (h *RoomHandler) GetSignaling(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	since := make(map[domain.PlayerID]uint64)
	for key, values := range c.Request.URL.Query() {
		if !strings.HasPrefix(key, sinceParamPrefix) || len(values) == 0 {
			continue
		}
		n, err := strconv.ParseUint(values[0], 10, 64)
		if err != nil {
			c.Error(errors.NewInvalidInputError(fmt.Sprintf("invalid %s: must be a non-negative integer", key)))
			return
		}
		since[domain.PlayerID(strings.TrimPrefix(key, sinceParamPrefix))] = n
	}

	snap, err := h.signaling.Snapshot(c.Request.Context(), roomID, since)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *RoomHandler) StartGame(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.rooms.StartGame(c.Request.Context(), roomID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RoomHandler) SubmitScore(c *gin.Context) {
	var req scoreRequest
	roomID, ok := bindPlayerRequest(c, &req, func() domain.PlayerID { return req.PlayerID })
	if !ok {
		return
	}
	if err := validation.ValidateScore(*req.Score); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	result, err := h.rooms.SubmitScore(c.Request.Context(), roomID, req.PlayerID, *req.Score)
	if err != nil {
		c.Error(err)
		return
	}

	resp := gin.H{
		"success":   true,
		"completed": result.Completed,
	}
	if result.Completed {
		resp["winner_id"] = result.WinnerID
		resp["scores"] = result.Scores
	}
	c.JSON(http.StatusOK, resp)
}

// QRCode renders the room's join URL as a PNG.
func (h *RoomHandler) QRCode(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}
	if _, err := h.rooms.GetRoom(c.Request.Context(), roomID); err != nil {
		c.Error(err)
		return
	}

	png, err := h.qrCodes.GetOrLoad(roomID, func() ([]byte, error) {
		return qrcode.Encode(h.joinURL(roomID), qrcode.Medium, qrCodeSize)
	})
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to render QR code", http.StatusInternalServerError))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *RoomHandler) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ice_servers": h.iceServers})
}
