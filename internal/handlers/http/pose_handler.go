package http

import (
	"net/http"

	"dancebattle/pkg/errors"
	"dancebattle/pkg/similarity"
	"dancebattle/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PoseHandler accepts standalone pose uploads from capture clients that are not in a room.
type PoseHandler struct {
	logger *zap.SugaredLogger
}

func NewPoseHandler(logger *zap.SugaredLogger) *PoseHandler {
	return &PoseHandler{logger: logger}
}

func (h *PoseHandler) SetupRoutes(router *gin.Engine, api *gin.RouterGroup) {
	router.GET("/", h.Root)
	api.POST("/pose", h.ReceivePose)
}

func (h *PoseHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "dancebattle pose server is running"})
}

func (h *PoseHandler) ReceivePose(c *gin.Context) {
	var req struct {
		UserID    string                 `json:"user_id" binding:"required,max=64"`
		Landmarks []*similarity.Landmark `json:"landmarks" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("user_id and landmarks are required"))
		return
	}
	if err := validation.ValidateNonEmptyString(req.UserID, "user_id"); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	detected := 0
	for _, l := range req.Landmarks {
		if l != nil {
			detected++
		}
	}
	h.logger.Debugw("pose received", "user_id", req.UserID, "landmarks", len(req.Landmarks), "detected", detected)

	c.JSON(http.StatusOK, gin.H{
		"status":    "received",
		"user_id":   req.UserID,
		"landmarks": len(req.Landmarks),
	})
}
