package http

import (
	"net/http"

	"dancebattle/pkg/errors"
	"dancebattle/pkg/similarity"

	"github.com/gin-gonic/gin"
)

// SimilarityHandler exposes the scoring functions for offline comparisons.
type SimilarityHandler struct{}

func NewSimilarityHandler() *SimilarityHandler {
	return &SimilarityHandler{}
}

func (h *SimilarityHandler) SetupRoutes(api *gin.RouterGroup) {
	group := api.Group("/similarity")
	group.POST("/frame", h.ScoreFrame)
	group.POST("/sequence", h.ScoreSequence)
}

type frameRequest struct {
	Landmarks          []*similarity.Landmark `json:"landmarks" binding:"required,min=1"`
	ReferenceLandmarks []*similarity.Landmark `json:"reference_landmarks" binding:"required,min=1"`
}

type sequenceRequest struct {
	Frames          [][]*similarity.Landmark `json:"frames" binding:"required"`
	ReferenceFrames [][]*similarity.Landmark `json:"reference_frames" binding:"required"`
}

func (h *SimilarityHandler) ScoreFrame(c *gin.Context) {
	var req frameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("landmarks and reference_landmarks are required"))
		return
	}

	user := similarity.FromNullable(req.Landmarks)
	reference := similarity.FromNullable(req.ReferenceLandmarks)
	cos := similarity.CosineSimilarity(user, reference)

	c.JSON(http.StatusOK, gin.H{
		"score":    similarity.DisplayScore(cos),
		"cosine":   cos,
		"distance": similarity.DistanceSimilarity(user, reference),
	})
}

func (h *SimilarityHandler) ScoreSequence(c *gin.Context) {
	var req sequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("frames and reference_frames are required"))
		return
	}

	user := similarity.SequenceFromNullable(req.Frames)
	reference := similarity.SequenceFromNullable(req.ReferenceFrames)

	c.JSON(http.StatusOK, gin.H{
		"similarity": similarity.SequenceSimilarity(reference, user),
		"score":      similarity.SequenceScore(reference, user),
	})
}
