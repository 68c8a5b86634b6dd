package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"deriv-core/pkg/config"
)

type statusResponse struct {
	Mode string `json:"mode"`
	SystemMeta
	Runtime any `json:"runtime"`
}

func (s *Server) getStatus(c *gin.Context) {
	mode := "LIVE"
	if s.Meta.DryRun {
		mode = "DRY_RUN"
	}
	c.JSON(http.StatusOK, statusResponse{
		Mode:       mode,
		SystemMeta: s.Meta,
		Runtime:    s.Service.Status(c.Request.Context()),
	})
}

func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, s.Service.Positions())
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.Service.Settings())
}

// patchSettings merges a partial settings document into the live settings.
// Fields absent from the body are left untouched.
func (s *Server) patchSettings(c *gin.Context) {
	var p config.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if p.Empty() {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "no settings in patch")
		return
	}
	next, err := s.Service.ApplySettings(c.Request.Context(), p)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, "INVALID_SETTINGS", err.Error())
		return
	}
	c.JSON(http.StatusOK, next)
}
