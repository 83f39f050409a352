package httpapi

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/FanyNavas/Sentara.Api/internal/apperr"
	"github.com/FanyNavas/Sentara.Api/internal/attendance"
	"github.com/FanyNavas/Sentara.Api/internal/requestid"
	"github.com/FanyNavas/Sentara.Api/internal/snapshot"
)

const (
	msgInvalidPayload = "Invalid payload."
	msgEmailFailed    = "Email send failed. Check SMTP settings."
)

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type submitRequest struct {
	Teacher         string `json:"teacher"`
	Student         string `json:"student"`
	ClassName       string `json:"className"`
	Status          string `json:"status"`
	SnapshotDataURL string `json:"snapshotDataUrl"`
}

type manualReviewRequest struct {
	Teacher      string `json:"teacher"`
	ClaimedName  string `json:"claimedName"`
	ClassName    string `json:"className"`
	Reason       string `json:"reason"`
	PhotoDataURL string `json:"photoDataUrl"`
	LiveDataURL  string `json:"liveDataUrl"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, apiResponse{OK: true})
}

func (s *Server) ready(c *gin.Context) {
	body := gin.H{}
	ok := true
	for name, p := range s.opts.Checks {
		healthy := p.Healthy(c.Request.Context())
		body[name] = healthy
		ok = ok && healthy
	}
	body["ok"] = ok
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, body)
}

func (s *Server) submitAttendance(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Error: msgInvalidPayload})
		return
	}

	_, err := s.svc.SubmitAttendance(c.Request.Context(), attendance.AttendanceSubmission{
		Teacher:         req.Teacher,
		Student:         req.Student,
		ClassName:       req.ClassName,
		Status:          req.Status,
		SnapshotDataURL: req.SnapshotDataURL,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{OK: true})
}

func (s *Server) submitManualReview(c *gin.Context) {
	var req manualReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Error: msgInvalidPayload})
		return
	}

	_, err := s.svc.SubmitManualReview(c.Request.Context(), attendance.ManualReviewSubmission{
		Teacher:      req.Teacher,
		ClaimedName:  req.ClaimedName,
		ClassName:    req.ClassName,
		Reason:       req.Reason,
		PhotoDataURL: req.PhotoDataURL,
		LiveDataURL:  req.LiveDataURL,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{OK: true})
}

func (s *Server) serveSnapshot(c *gin.Context) {
	p, err := s.codec.Open(c.Param("name"))
	if err != nil {
		if !errors.Is(err, snapshot.ErrInvalidName) && !os.IsNotExist(err) {
			s.logger.Printf("[%s] ERROR: open snapshot: %v", requestid.From(c.Request.Context()), err)
		}
		c.JSON(http.StatusNotFound, apiResponse{Error: "Not found."})
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.File(p)
}

// writeError maps pipeline errors onto the response contract. Notification
// errors never echo their cause since it may carry relay details.
func (s *Server) writeError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, apiResponse{Error: err.Error()})
	case apperr.KindNotification:
		c.JSON(http.StatusInternalServerError, apiResponse{Error: msgEmailFailed})
	default:
		s.logger.Printf("[%s] ERROR: %v", requestid.From(c.Request.Context()), err)
		c.JSON(apperr.HTTPStatus(err), apiResponse{Error: "Server error: " + err.Error()})
	}
}
