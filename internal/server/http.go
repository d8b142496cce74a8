package server

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mindgate/internal/core"
	"mindgate/internal/core/bridge"
	"mindgate/internal/core/orchestrator"
)

const maxBodyBytes = 1 << 20

// newGatewayContext binds a request id and a request-scoped logger
func (s *Server) newGatewayContext(w http.ResponseWriter, r *http.Request) *core.GatewayContext {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	reqLogger := s.log.With(
		zap.String("request_id", requestID),
		zap.String("path", r.URL.Path),
	)
	ctx := core.NewGatewayContext(r.Context(), reqLogger.Zap())
	ctx.RequestID = requestID
	return ctx
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to read request body", err)
	}
	return body, nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "MindGate is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelItem struct {
	ID       string        `json:"id"`
	Object   string        `json:"object"`
	Name     string        `json:"name"`
	Category core.Category `json:"category"`
	OwnedBy  string        `json:"owned_by"`
}

// handleModels handles GET /v1/models
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	entries := s.opts.Registry.List()
	data := make([]modelItem, 0, len(entries))
	for _, e := range entries {
		data = append(data, modelItem{
			ID:       e.Key,
			Object:   "model",
			Name:     e.Descriptor.DisplayName,
			Category: e.Descriptor.Category,
			OwnedBy:  "mindvideo",
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": data})
}

// handleChatCompletions handles POST /v1/chat/completions
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	gctx := s.newGatewayContext(w, r)

	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := parseChatRequest(body, s.opts.Registry.DefaultKey())
	if err != nil {
		writeError(w, err)
		return
	}

	switch {
	case req.ClientPoll:
		handle, err := s.opts.Bridge.Submit(gctx, req.Generation)
		if err != nil {
			writeError(w, err)
			return
		}
		content := fmt.Sprintf("[TASK_ID:%s]", handle.TaskID)
		writeJSON(w, http.StatusOK, bridge.NewChatCompletion(bridge.CompletionID(handle.TaskID), req.Model, time.Now().Unix(), content))

	case req.Stream:
		stream, err := s.opts.Bridge.Stream(gctx, req.Generation)
		if err != nil {
			writeError(w, err)
			return
		}
		s.writeStream(gctx, w, r, stream)

	default:
		handle, snap, err := s.opts.Bridge.Generate(gctx, req.Generation)
		if err != nil {
			writeError(w, err)
			return
		}
		content := strings.TrimSpace(orchestrator.CompletedText(snap.ResultURL))
		writeJSON(w, http.StatusOK, bridge.NewChatCompletion(bridge.CompletionID(handle.TaskID), req.Model, time.Now().Unix(), content))
	}
}

// writeStream relays chunks as SSE until the producer closes the stream or
// the client goes away
func (s *Server) writeStream(gctx *core.GatewayContext, w http.ResponseWriter, r *http.Request, stream *bridge.Stream) {
	// 客户端断开后后台任务继续跑，丢弃剩余 chunk
	defer stream.Detach()

	flusher, _ := w.(http.Flusher)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				_, _ = io.WriteString(w, bridge.DoneLine)
				if flusher != nil {
					flusher.Flush()
				}
				return
			}
			line, err := bridge.EncodeChunk(stream, chunk)
			if err != nil {
				gctx.Log.Error("failed to encode chunk", zap.Error(err))
				continue
			}
			if _, err := w.Write(line); err != nil {
				gctx.Log.Info("client disconnected", zap.String("task_id", stream.Handle.TaskID), zap.Error(err))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			gctx.Log.Info("client disconnected", zap.String("task_id", stream.Handle.TaskID))
			return
		}
	}
}

type imageData struct {
	URL string `json:"url"`
}

type imageResponse struct {
	Created int64       `json:"created"`
	Data    []imageData `json:"data"`
}

// handleImageGenerations handles POST /v1/images/generations in blocking mode
func (s *Server) handleImageGenerations(w http.ResponseWriter, r *http.Request) {
	gctx := s.newGatewayContext(w, r)
	gctx.SetMetadata(core.MetaMode, core.ModeImage)

	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := parseImageRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}
	if desc, ok := s.opts.Registry.Lookup(req.ModelKey); !ok || desc.Category != core.CategoryImage {
		req.ModelKey = s.opts.ImageModel
	}

	_, snap, err := s.opts.Bridge.Generate(gctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{
		Created: time.Now().Unix(),
		Data:    []imageData{{URL: snap.ResultURL}},
	})
}

type taskStatusResponse struct {
	Status   core.TaskStatus `json:"status"`
	Progress int             `json:"progress"`
	URL      *string         `json:"url"`
	Error    *string         `json:"error"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// handleTaskQuery handles GET /v1/tasks/query?taskId=
func (s *Server) handleTaskQuery(w http.ResponseWriter, r *http.Request) {
	gctx := s.newGatewayContext(w, r)

	snap, err := s.opts.Bridge.Query(gctx, strings.TrimSpace(r.URL.Query().Get("taskId")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskStatusResponse{
		Status:   snap.Status,
		Progress: snap.Progress,
		URL:      optional(snap.ResultURL),
		Error:    optional(snap.ErrorMessage),
	})
}

// handleUploadSign handles GET|POST /proxy/upload/sign?filename=
func (s *Server) handleUploadSign(w http.ResponseWriter, r *http.Request) {
	gctx := s.newGatewayContext(w, r)

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		filename = fmt.Sprintf("upload_%d.png", time.Now().UnixMilli())
	}

	raw, err := s.opts.Uploader.SignUpload(gctx, filename)
	if err != nil {
		gctx.Log.Warn("upload sign failed", zap.Error(err))
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// handleUploadFile handles POST /proxy/upload/file by relaying the body to X-Upload-Url
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	gctx := s.newGatewayContext(w, r)

	target := r.Header.Get("X-Upload-Url")
	if target == "" {
		writeError(w, core.NewInvalidRequestError("missing X-Upload-Url", nil))
		return
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, core.NewInvalidRequestError("invalid X-Upload-Url", err))
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}

	req, err := http.NewRequestWithContext(gctx, http.MethodPut, u.String(), r.Body)
	if err != nil {
		writeError(w, core.NewInvalidRequestError("failed to build upload request", err))
		return
	}
	req.ContentLength = r.ContentLength
	req.Header.Set("Content-Type", contentType)

	resp, err := s.opts.RelayClient.Do(req)
	if err != nil {
		writeError(w, core.NewTransportError("upload", err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		gctx.Log.Warn("upload relay rejected", zap.Int("status", resp.StatusCode))
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}
