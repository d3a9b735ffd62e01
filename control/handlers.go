package control

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/xpdflow/component"
	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/observability"
	"github.com/kbukum/xpdflow/pdf"
	"github.com/kbukum/xpdflow/settings"
)

const healthPath = "/healthz"

// SettingsView is the body of every settings response.
type SettingsView struct {
	settings.Snapshot
	// Resolved holds the PDF configuration of every kind with the
	// overrides applied.
	Resolved map[pdf.Kind]pdf.Config `json:"resolved_pdf"`
}

// HealthView is the body of GET /healthz.
type HealthView struct {
	*observability.ServiceHealth
	Timestamp string `json:"timestamp"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type calibrationRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) routes() {
	s.engine.GET(healthPath, s.health)

	g := s.engine.Group("/settings")
	g.GET("", s.getSettings)
	g.PUT("/mask/mode", s.setMaskMode)
	g.PATCH("/mask", s.patchMask)
	g.POST("/mask/reset", s.resetMask)
	g.PUT("/calibration", s.setCalibration)
	g.PATCH("/pdf", s.patchPDF)
}

func (s *Server) view() (SettingsView, error) {
	v := SettingsView{Snapshot: s.rt.Snapshot(), Resolved: make(map[pdf.Kind]pdf.Config, len(pdf.Kinds))}
	for _, kind := range pdf.Kinds {
		cfg, err := s.rt.PDFConfig(kind)
		if err != nil {
			return SettingsView{}, err
		}
		v.Resolved[kind] = cfg
	}
	return v, nil
}

func (s *Server) respondSettings(c *gin.Context) {
	v, err := s.view()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, v)
}

func (s *Server) getSettings(c *gin.Context) {
	s.respondSettings(c)
}

func (s *Server) setMaskMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidInput("mode", err.Error()))
		return
	}
	mode, err := settings.ParseMaskMode(req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.rt.SetMaskMode(mode); err != nil {
		respondError(c, err)
		return
	}
	s.respondSettings(c)
}

func (s *Server) patchMask(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	if err := s.rt.UpdateMaskOptions(patch); err != nil {
		respondError(c, err)
		return
	}
	s.respondSettings(c)
}

func (s *Server) resetMask(c *gin.Context) {
	s.rt.ResetMask()
	s.respondSettings(c)
}

func (s *Server) setCalibration(c *gin.Context) {
	var req calibrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidInput("enabled", err.Error()))
		return
	}
	s.rt.SetCalibration(*req.Enabled)
	s.respondSettings(c)
}

func (s *Server) patchPDF(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	if err := s.rt.UpdatePDF(patch); err != nil {
		respondError(c, err)
		return
	}
	s.respondSettings(c)
}

// bindPatch decodes a JSON object body. A null value removes the key.
func bindPatch(c *gin.Context) (map[string]any, bool) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, errors.InvalidInput("body", err.Error()))
		return nil, false
	}
	if len(patch) == 0 {
		respondError(c, errors.InvalidInput("body", "empty patch"))
		return nil, false
	}
	return patch, true
}

func (s *Server) health(c *gin.Context) {
	sh := observability.NewServiceHealth(s.service, s.version)
	if s.checker != nil {
		for _, h := range s.checker(c.Request.Context()) {
			sh.AddComponent(observability.Health{Name: h.Name, Status: healthStatus(h.Status), Message: h.Message})
		}
	}
	status := http.StatusOK
	if sh.Status == observability.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, HealthView{ServiceHealth: sh, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

func healthStatus(s component.HealthStatus) observability.HealthStatus {
	switch s {
	case component.StatusHealthy:
		return observability.HealthStatusUp
	case component.StatusDegraded:
		return observability.HealthStatusDegraded
	}
	return observability.HealthStatusDown
}
