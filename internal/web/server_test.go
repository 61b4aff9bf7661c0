package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pro-headshot-ai/internal/config"
	"pro-headshot-ai/internal/headshot"
	"pro-headshot-ai/internal/session"
)

// --- Stub capabilities ---

type stubAnalyzer struct {
	err   error
	calls int
}

func (s *stubAnalyzer) AnalyzeImage(ctx context.Context, photo headshot.Photo, instruction string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if instruction == headshot.FaceAnalysisInstruction {
		return "A light-skinned, 30s, woman with short brown hair.", nil
	}
	return "The person is wearing a navy blazer.", nil
}

type stubSynthesizer struct {
	result headshot.GenerationResult
	err    error
	calls  int
}

func (s *stubSynthesizer) GenerateImage(ctx context.Context, req headshot.GenerationRequest) (headshot.GenerationResult, error) {
	s.calls++
	if s.err != nil {
		return headshot.GenerationResult{}, s.err
	}
	return s.result, nil
}

type testEnv struct {
	server   *Server
	analyzer *stubAnalyzer
	synth    *stubSynthesizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	analyzer := &stubAnalyzer{}
	synth := &stubSynthesizer{
		result: headshot.GenerationResult{
			Image: headshot.Photo{DataBase64: "aGVhZHNob3Q=", MimeType: "image/png"},
		},
	}

	workflow, err := headshot.New(headshot.Options{
		Analyzer:          analyzer,
		Synthesizer:       synth,
		OnAnalysisFailure: config.FailureAbort,
	})
	require.NoError(t, err)

	server := New(Options{
		Sessions: session.NewStore(session.Options{}),
		Workflow: workflow,
	})

	return &testEnv{server: server, analyzer: analyzer, synth: synth}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	var body map[string]any
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w, body := e.do(t, httptest.NewRequest(http.MethodPost, "/api/session", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

// jpegBytes carries a real JPEG magic number so content sniffing sees an image.
var jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 64)...)

func photoRequest(t *testing.T, sessionID string, slot int, data []byte, contentType string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="photo"; filename="selfie.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/session/"+sessionID+"/photo/"+strconv.Itoa(slot), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (e *testEnv) fillAllSlots(t *testing.T, sessionID string) {
	t.Helper()
	for slot := 1; slot <= headshot.SlotCount; slot++ {
		w, _ := e.do(t, photoRequest(t, sessionID, slot, jpegBytes, "image/jpeg"))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("create returns the initial step", func(t *testing.T) {
		w, body := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session", nil))
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, string(headshot.StepAwaitingPhoto1), body["step"])
		assert.Equal(t, false, body["ready"])
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		w, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/session/unknown", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/unknown/generate", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPhotoUpload(t *testing.T) {
	env := newTestEnv(t)

	t.Run("slot 2 is rejected while slot 1 is empty", func(t *testing.T) {
		id := env.createSession(t)
		w, body := env.do(t, photoRequest(t, id, 2, jpegBytes, "image/jpeg"))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, body["error"], "capture photo 1 first")
	})

	t.Run("steps advance one slot at a time", func(t *testing.T) {
		id := env.createSession(t)

		w, body := env.do(t, photoRequest(t, id, 1, jpegBytes, "image/jpeg"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(headshot.StepAwaitingPhoto2), body["step"])

		w, body = env.do(t, photoRequest(t, id, 2, jpegBytes, "image/jpeg"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(headshot.StepAwaitingPhoto3), body["step"])

		w, body = env.do(t, photoRequest(t, id, 3, jpegBytes, "image/jpeg"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(headshot.StepReady), body["step"])
		assert.Equal(t, true, body["ready"])
	})

	t.Run("retaking a filled slot stays ready", func(t *testing.T) {
		id := env.createSession(t)
		env.fillAllSlots(t, id)

		w, body := env.do(t, photoRequest(t, id, 1, jpegBytes, "image/jpeg"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["ready"])
	})

	t.Run("non-image uploads are rejected", func(t *testing.T) {
		id := env.createSession(t)
		w, _ := env.do(t, photoRequest(t, id, 1, []byte("just some text"), "application/octet-stream"))
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("invalid slot numbers are rejected", func(t *testing.T) {
		id := env.createSession(t)
		w, _ := env.do(t, photoRequest(t, id, 7, jpegBytes, "image/jpeg"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGenerate(t *testing.T) {
	t.Run("blocked until all three photos exist", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.createSession(t)

		w, _ := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/"+id+"/generate", nil))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Zero(t, env.synth.calls, "generation must never auto-fire")
	})

	t.Run("uploading the third photo does not trigger generation", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.createSession(t)
		env.fillAllSlots(t, id)
		assert.Zero(t, env.analyzer.calls)
		assert.Zero(t, env.synth.calls)
	})

	t.Run("success returns a data URL image", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.createSession(t)
		env.fillAllSlots(t, id)

		w, body := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/"+id+"/generate", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "data:image/png;base64,aGVhZHNob3Q=", body["image"])
		assert.Equal(t, "A light-skinned, 30s, woman with short brown hair.", body["face_desc"])
		assert.Nil(t, body["refused"])
	})

	t.Run("refusal is reported distinctly from a failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.synth.result = headshot.GenerationResult{Text: "no can do"}
		id := env.createSession(t)
		env.fillAllSlots(t, id)

		w, body := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/"+id+"/generate", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["refused"])
		assert.Contains(t, body["message"], "returned no image")
		assert.Nil(t, body["image"])
		assert.Nil(t, body["error"])
	})

	t.Run("analysis failure aborts with a distinct message", func(t *testing.T) {
		env := newTestEnv(t)
		env.analyzer.err = errors.New("vision model down")
		id := env.createSession(t)
		env.fillAllSlots(t, id)

		w, body := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/"+id+"/generate", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, body["error"], "analysis failed")
		assert.Zero(t, env.synth.calls)
	})

	t.Run("generation failure is surfaced without retry", func(t *testing.T) {
		env := newTestEnv(t)
		env.synth.err = errors.New("connection reset")
		id := env.createSession(t)
		env.fillAllSlots(t, id)

		w, body := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/"+id+"/generate", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, body["error"], "Generation failed")
		assert.Equal(t, 1, env.synth.calls)
	})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}
