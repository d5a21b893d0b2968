// Package web is the thin HTTP surface over the storage volume and the
// thumbnail scheduler. The heavy lifting happens in the pipeline packages;
// handlers here only stream bytes and poke the queue.
package web

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/printbed/vitrine/server/core"
	"github.com/printbed/vitrine/server/jobs"
	"github.com/printbed/vitrine/server/mesh"
	"github.com/printbed/vitrine/server/storage"
)

// Largest accepted upload, matching what the pipeline can reasonably chew
// through on one queue slot.
const maxUploadBytes = 64 << 20

type Server struct {
	volume    *storage.DiskVolume
	scheduler *jobs.Scheduler
	mux       *http.ServeMux
}

func NewServer(volume *storage.DiskVolume, scheduler *jobs.Scheduler) *Server {
	s := &Server{
		volume:    volume,
		scheduler: scheduler,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/meshes", s.handleListMeshes)
	s.mux.HandleFunc("GET /api/progress", s.handleProgress)
	s.mux.HandleFunc("GET /api/thumbnail", s.handleThumbnailLookup)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("GET /meshes/{name}", s.handleMesh)
	s.mux.HandleFunc("GET /thumbs/{name}", s.handleThumb)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type meshEntry struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Thumbnail string `json:"thumbnail"`
}

func (s *Server) listMeshes() ([]meshEntry, error) {
	names, err := s.volume.List(mesh.MeshDir)
	if err != nil {
		return nil, err
	}
	entries := make([]meshEntry, 0, len(names))
	for _, name := range names {
		if !strings.EqualFold(path.Ext(name), mesh.Extension) {
			continue
		}
		logical := path.Join(mesh.MeshDir, name)
		size, err := s.volume.Stat(logical)
		if err != nil {
			continue
		}
		entries = append(entries, meshEntry{
			Name:      name,
			Size:      size,
			Thumbnail: mesh.ThumbnailPath(logical),
		})
	}
	return entries, nil
}

func (s *Server) handleListMeshes(w http.ResponseWriter, r *http.Request) {
	entries, err := s.listMeshes()
	if err != nil {
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.scheduler.Snapshot())
}

// handleThumbnailLookup resolves a mesh path to its cached preview. A miss
// queues the job and answers 202; no error detail leaks through this path.
func (s *Server) handleThumbnailLookup(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	thumb := mesh.ThumbnailPath(p)
	if !s.volume.Exists(thumb) {
		s.scheduler.Enqueue(p)
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, map[string]string{"thumbnail": thumb})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Query().Get("name"))
	if name == "" || name == "." || !strings.EqualFold(path.Ext(name), mesh.Extension) {
		http.Error(w, "name must be a .stl file", http.StatusBadRequest)
		return
	}
	logical := path.Join(mesh.MeshDir, name)

	f, err := s.volume.Create(logical)
	if err != nil {
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}
	_, copyErr := io.Copy(f, http.MaxBytesReader(w, r.Body, maxUploadBytes))
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		s.volume.Remove(logical)
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	s.scheduler.Enqueue(logical)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"path": mesh.CanonicalPath(logical)})
}

func (s *Server) handleMesh(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, path.Join(mesh.MeshDir, path.Base(r.PathValue("name"))), "application/octet-stream")
}

// handleThumb serves a cached preview. An optional ?w= query rescales the
// image for listing pages; the cached file itself is never rewritten.
func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	logical := path.Join(mesh.ThumbDir, path.Base(r.PathValue("name")))

	widthArg := r.URL.Query().Get("w")
	if widthArg == "" {
		s.serveFile(w, r, logical, "image/png")
		return
	}
	width, err := strconv.Atoi(widthArg)
	if err != nil || width < 8 || width > 1024 {
		http.Error(w, "bad width", http.StatusBadRequest)
		return
	}

	f, err := s.volume.Open(logical)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	src, err := png.Decode(f)
	if err != nil {
		http.Error(w, "bad image", http.StatusInternalServerError)
		return
	}

	sb := src.Bounds()
	height := width * sb.Dy() / sb.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, dst); err != nil {
		core.LogDebug("rescale response: %s", err.Error())
	}
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, logical, contentType string) {
	f, err := s.volume.Open(logical)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, f); err != nil {
		core.LogDebug("serve %s: %s", logical, err.Error())
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := s.listMeshes()
	if err != nil {
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<!doctype html><title>vitrine</title><h1>Meshes</h1><ul>")
	for _, e := range entries {
		fmt.Fprintf(w, `<li><a href="/meshes/%s">%s</a> (%d bytes) <img src="%s?w=80" alt=""></li>`,
			e.Name, e.Name, e.Size, e.Thumbnail)
	}
	fmt.Fprint(w, "</ul>")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		core.LogDebug("encode response: %s", err.Error())
	}
}
