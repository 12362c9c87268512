package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/example/age-gate/internal/assurance"
	"github.com/example/age-gate/internal/auth"
	"github.com/example/age-gate/internal/capture"
	"github.com/example/age-gate/internal/render"
	"github.com/example/age-gate/internal/repository"
	"github.com/example/age-gate/internal/session"
	"github.com/example/age-gate/internal/usecase"
)

// MaxUploadSize bounds the size of a capture request body.
const MaxUploadSize = 10 << 20

// ResultService serves recorded age checks.
type ResultService interface {
	GetResult(ctx context.Context, owner, checkID string) (*repository.AgeCheckLog, error)
	GetDuplicateReport(ctx context.Context, owner, checkID string) (*usecase.DuplicateReport, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

type secureRequest struct {
	Secure *bool `json:"secure" binding:"required"`
}

type levelRequest struct {
	Level string `json:"level"`
}

type captureErrorRequest struct {
	Error interface{} `json:"error"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, sessions *session.Registry, results ResultService, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authorized := router.Group("/")
	authorized.Use(authMiddleware)

	authorized.POST("/sessions", func(c *gin.Context) {
		owner, ok := requireOwner(c)
		if !ok {
			return
		}
		ctrl := sessions.Create(owner)
		c.JSON(http.StatusCreated, render.Render(ctrl.Snapshot()))
	})

	authorized.GET("/sessions/:id", withSession(sessions, func(c *gin.Context, ctrl *session.Controller) {
		c.JSON(http.StatusOK, render.Render(ctrl.Snapshot()))
	}))

	authorized.DELETE("/sessions/:id", func(c *gin.Context) {
		owner, ok := requireOwner(c)
		if !ok {
			return
		}
		if err := sessions.Delete(c.Param("id"), owner); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	authorized.PUT("/sessions/:id/secure", withSession(sessions, func(c *gin.Context, ctrl *session.Controller) {
		var req secureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "secure is required"})
			return
		}
		if err := ctrl.SetSecure(*req.Secure); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, render.Render(ctrl.Snapshot()))
	}))

	authorized.POST("/sessions/:id/level", withSession(sessions, func(c *gin.Context, ctrl *session.Controller) {
		var req levelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid level request"})
			return
		}
		if _, err := ctrl.SelectLevel(assurance.Level(req.Level)); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, render.Render(ctrl.Snapshot()))
	}))

	authorized.POST("/sessions/:id/capture", withSession(sessions, func(c *gin.Context, ctrl *session.Controller) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

		var req capture.Result
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "capture exceeds upload limit"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capture payload"})
			return
		}
		if _, err := ctrl.Capture(c.Request.Context(), req); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, render.Render(ctrl.Snapshot()))
	}))

	authorized.POST("/sessions/:id/capture-error", withSession(sessions, func(c *gin.Context, ctrl *session.Controller) {
		var req captureErrorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid capture error payload"})
			return
		}
		ctrl.ReportCaptureError(req.Error)
		c.Status(http.StatusNoContent)
	}))

	authorized.POST("/sessions/:id/reset", withSession(sessions, func(c *gin.Context, ctrl *session.Controller) {
		ctrl.Reset()
		c.JSON(http.StatusOK, render.Render(ctrl.Snapshot()))
	}))

	authorized.GET("/results/:id", func(c *gin.Context) {
		owner, ok := requireOwner(c)
		if !ok {
			return
		}
		log, err := results.GetResult(c.Request.Context(), owner, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, checkJSON(log))
	})

	authorized.GET("/results/:id/duplicates", func(c *gin.Context) {
		owner, ok := requireOwner(c)
		if !ok {
			return
		}
		report, err := results.GetDuplicateReport(c.Request.Context(), owner, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		duplicates := make([]gin.H, 0, len(report.Duplicates))
		for _, dup := range report.Duplicates {
			duplicates = append(duplicates, checkJSON(dup))
		}
		c.JSON(http.StatusOK, gin.H{
			"check":      checkJSON(report.Check),
			"duplicates": duplicates,
		})
	})

	authorized.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := results.GetMetricsSummary(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func withSession(sessions *session.Registry, fn func(c *gin.Context, ctrl *session.Controller)) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := requireOwner(c)
		if !ok {
			return
		}
		ctrl, err := sessions.Get(c.Param("id"), owner)
		if err != nil {
			writeError(c, err)
			return
		}
		fn(c, ctrl)
	}
}

func requireOwner(c *gin.Context) (string, bool) {
	owner, ok := auth.GetOwner(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", false
	}
	return owner, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNotCapturing):
		status = http.StatusConflict
	case errors.Is(err, capture.ErrUnsupportedImage):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, capture.ErrInvalidImage), errors.Is(err, assurance.ErrUnknownLevel):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func checkJSON(log *repository.AgeCheckLog) gin.H {
	return gin.H{
		"check_id":           log.CheckID,
		"session_id":         log.SessionID,
		"secure":             log.Secure,
		"level_of_assurance": log.LevelOfAssurance,
		"age":                log.Age,
		"granted":            log.Granted,
		"failed":             log.Failed,
		"details":            log.Details,
		"latency_ms":         log.LatencyMs,
		"created_at":         log.CreatedAt,
	}
}
