package ports

import (
	"github.com/gin-gonic/gin"
)

type RoomHTTPHandler interface {
	CreateRoom(c *gin.Context)
	GetRoom(c *gin.Context)
	JoinRoom(c *gin.Context)
	LeaveRoom(c *gin.Context)
	HandleOffer(c *gin.Context)
	HandleAnswer(c *gin.Context)
	HandleICECandidate(c *gin.Context)
	GetSignaling(c *gin.Context)
	StartGame(c *gin.Context)
	SubmitScore(c *gin.Context)
}

type WebSocketHandler interface {
	HandleWebSocket(c *gin.Context)
}
