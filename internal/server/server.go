// Package server exposes decoded instance masks over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/valyala/fasthttp"

	"github.com/model-collapse/maskcoco/internal/dataset"
	"github.com/model-collapse/maskcoco/internal/logging"
)

// Server answers image, instance and mask queries for one dataset.
type Server struct {
	ds     *dataset.Dataset
	logger *slog.Logger
}

// New creates a Server over ds.
func New(ds *dataset.Dataset, logger *slog.Logger) *Server {
	return &Server{ds: ds, logger: logging.NewComponentLogger(logger, "server")}
}

type instancesResponse struct {
	ImageID  int64   `json:"image_id"`
	Height   int     `json:"height"`
	Width    int     `json:"width"`
	ClassIDs []int32 `json:"class_ids"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{
		Handler: s.Handle,
		Name:    "maskcoco",
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = srv.Shutdown()
		case <-done:
		}
	}()

	s.logger.Info("serving", "addr", addr, "images", len(s.ds.Images()))
	return srv.ListenAndServe(addr)
}

// Handle routes one request.
func (s *Server) Handle(c *fasthttp.RequestCtx) {
	if !c.IsGet() && !c.IsHead() {
		c.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	s.logger.Debug("request", "path", string(c.Path()), "query", string(c.URI().QueryString()))

	switch string(c.Path()) {
	case "/healthz":
		c.SetContentType("text/plain; charset=utf-8")
		c.WriteString("ok")
	case "/images":
		s.writeJSON(c, fasthttp.StatusOK, s.ds.Images())
	case "/instances":
		s.handleInstances(c)
	case "/mask":
		s.handleMask(c)
	default:
		s.writeJSON(c, fasthttp.StatusNotFound, errorResponse{Error: "not found"})
	}
}

func (s *Server) handleInstances(c *fasthttp.RequestCtx) {
	id, ok := s.imageID(c)
	if !ok {
		return
	}
	inst, ok := s.instances(c, id)
	if !ok {
		return
	}
	img, _ := s.ds.Image(id)
	classIDs := inst.ClassIDs
	if classIDs == nil {
		classIDs = []int32{}
	}
	s.writeJSON(c, fasthttp.StatusOK, instancesResponse{
		ImageID:  id,
		Height:   img.Height,
		Width:    img.Width,
		ClassIDs: classIDs,
	})
}

func (s *Server) handleMask(c *fasthttp.RequestCtx) {
	id, ok := s.imageID(c)
	if !ok {
		return
	}
	index, err := c.URI().QueryArgs().GetUint("index")
	if err != nil {
		s.writeJSON(c, fasthttp.StatusBadRequest, errorResponse{Error: "index must be a non-negative integer"})
		return
	}
	inst, ok := s.instances(c, id)
	if !ok {
		return
	}
	if index >= inst.Len() {
		s.writeJSON(c, fasthttp.StatusNotFound, errorResponse{Error: "no such instance"})
		return
	}

	var buf bytes.Buffer
	if err := inst.Masks[index].WritePNG(&buf); err != nil {
		s.logger.Error("encode mask png", "image_id", id, "index", index, "error", err)
		s.writeJSON(c, fasthttp.StatusInternalServerError, errorResponse{Error: "encode failed"})
		return
	}
	c.SetContentType("image/png")
	c.SetBody(buf.Bytes())
}

func (s *Server) imageID(c *fasthttp.RequestCtx) (int64, bool) {
	id, err := c.URI().QueryArgs().GetUint("image_id")
	if err != nil || id == 0 {
		s.writeJSON(c, fasthttp.StatusBadRequest, errorResponse{Error: "image_id must be a positive integer"})
		return 0, false
	}
	return int64(id), true
}

func (s *Server) instances(c *fasthttp.RequestCtx, id int64) (dataset.Instances, bool) {
	inst, err := s.ds.InstanceMasks(id)
	switch {
	case errors.Is(err, dataset.ErrUnknownImage):
		s.writeJSON(c, fasthttp.StatusNotFound, errorResponse{Error: err.Error()})
		return dataset.Instances{}, false
	case err != nil:
		s.logger.Error("decode instances", "image_id", id, "error", err)
		s.writeJSON(c, fasthttp.StatusInternalServerError, errorResponse{Error: "decode failed"})
		return dataset.Instances{}, false
	}
	return inst, true
}

func (s *Server) writeJSON(c *fasthttp.RequestCtx, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		c.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	c.SetStatusCode(status)
	c.SetContentType("application/json")
	c.SetBody(data)
}
