package api

import (
	"github.com/gin-gonic/gin"
	"gitlab.com/yelinaung/cashflow-ledger/internal/api/middleware"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler, jwtSecret []byte) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery())

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	{
		v1.POST("/records", h.CreateRecord)
		v1.POST("/records/transcript", h.CreateFromTranscript)
		v1.POST("/records/audio", h.CreateFromAudio)
		v1.PUT("/records/:id", h.ReplaceRecord)
		v1.DELETE("/records/:id", h.DeleteRecord)
		v1.GET("/records", h.ListRecords)

		v1.GET("/stats", h.Stats)
		v1.GET("/stats/chart", h.StatsChart)

		v1.GET("/permissions", h.Permissions)
		v1.GET("/companies", h.Companies)
	}

	return r
}
