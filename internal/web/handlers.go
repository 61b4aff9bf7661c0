package web

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pro-headshot-ai/internal/headshot"
	"pro-headshot-ai/internal/session"
)

type stateResponse struct {
	SessionID string                   `json:"session_id"`
	Step      headshot.Step            `json:"step"`
	Photos    [headshot.SlotCount]bool `json:"photos"`
	Ready     bool                     `json:"ready"`
}

type generateResponse struct {
	Image        string `json:"image,omitempty"`
	Refused      bool   `json:"refused,omitempty"`
	Message      string `json:"message,omitempty"`
	FaceDesc     string `json:"face_desc,omitempty"`
	WardrobeDesc string `json:"wardrobe_desc,omitempty"`
}

func stateOf(sess session.Session) stateResponse {
	return stateResponse{
		SessionID: sess.ID,
		Step:      sess.Capture.Step(),
		Photos:    sess.Capture.Filled(),
		Ready:     sess.Capture.Ready(),
	}
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusCreated, stateOf(sess))
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, stateOf(sess))
}

func (s *Server) handleUploadPhoto(c *gin.Context) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo slot"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing photo"})
		return
	}
	defer file.Close()

	imgBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
		return
	}
	if len(imgBytes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo is empty"})
		return
	}

	mimeType := sniffMimeType(header.Header.Get("Content-Type"), imgBytes)
	if !strings.HasPrefix(mimeType, "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only image uploads are accepted"})
		return
	}

	photo := headshot.Photo{
		DataBase64: base64.StdEncoding.EncodeToString(imgBytes),
		MimeType:   mimeType,
	}

	sess, err := s.sessions.Update(c.Param("id"), func(capture *headshot.CaptureState) error {
		return capture.SetPhoto(slot, photo)
	})
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	case errors.Is(err, headshot.ErrSlotLocked):
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("capture photo %d first", slot-1)})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("photo captured", "session", sess.ID, "slot", slot, "mime", mimeType, "bytes", len(imgBytes))
	c.JSON(http.StatusOK, stateOf(sess))
}

// handleGenerate runs one generation attempt. It only ever fires on an
// explicit request; filling the third slot does not trigger it.
func (s *Server) handleGenerate(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	photos, err := sess.Capture.Photos()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	if err := s.sem.Acquire(c.Request.Context(), 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is busy"})
		return
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.requestTimeout)
	defer cancel()

	outcome, err := s.workflow.Run(ctx, photos)
	if err != nil {
		s.logger.Error("generation attempt failed", "session", sess.ID, "err", err)
		msg := "Generation failed. Please try again."
		if errors.Is(err, headshot.ErrAnalysisFailed) {
			msg = "Photo analysis failed. Please try again."
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": msg})
		return
	}

	resp := generateResponse{
		FaceDesc:     outcome.FaceDesc,
		WardrobeDesc: outcome.WardrobeDesc,
	}
	if outcome.Refused {
		s.logger.Warn("generation refused", "session", sess.ID)
		resp.Refused = true
		resp.Message = "The model returned no image. It may have refused the request."
		c.JSON(http.StatusOK, resp)
		return
	}

	s.logger.Info("headshot generated", "session", sess.ID, "mime", outcome.Image.MimeType)
	resp.Image = fmt.Sprintf("data:%s;base64,%s", outcome.Image.MimeType, outcome.Image.DataBase64)
	c.JSON(http.StatusOK, resp)
}

func sniffMimeType(headerValue string, data []byte) string {
	mimeType := strings.TrimSpace(headerValue)
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	return mimeType
}
