package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"
)

// cities is the fixed selection offered by the upload surface; a
// custom city entered by the caller always wins over it.
var cities = []string{
	"Zagreb", "Split", "Dubrovnik", "Zadar",
	"Rijeka", "Varaždin", "Opatija", "Pula", "Poreč",
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type filePayload struct {
	File   string `json:"file"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type rowPayload struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	File string  `json:"file"`
}

type processPayload struct {
	Status     string                     `json:"status"`
	Message    string                     `json:"message"`
	Files      []filePayload              `json:"files"`
	SQL        string                     `json:"sql"`
	Rows       []rowPayload               `json:"rows"`
	Map        *geojson.FeatureCollection `json:"map"`
	FirstID    int                        `json:"first_id"`
	LastID     int                        `json:"last_id"`
	Statements int                        `json:"statements"`
	BundleName string                     `json:"bundle_name"`
	Bundle     string                     `json:"bundle"` // base64 zip
}

type server struct {
	proc processor
	log  *slog.Logger
}

func newServer(proc processor, log *slog.Logger) http.Handler {
	s := &server{proc: proc, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/process", s.handleProcess)
	mux.HandleFunc("/api/cities", s.handleCities)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})

	return accessLog(log, mux)
}

func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiResponse{Error: "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "invalid multipart form"})
		return
	}

	city := r.FormValue("custom_city")
	if city == "" {
		city = r.FormValue("city")
	}

	var uploads []upload
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Error: "unreadable upload: " + fh.Filename})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Error: "unreadable upload: " + fh.Filename})
			return
		}
		uploads = append(uploads, upload{name: fh.Filename, data: data})
	}

	res, err := s.proc.run(uploads, city)
	switch {
	case errors.Is(err, errEmptyUpload):
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "please upload at least one KMZ or KML file"})
		return
	case errors.Is(err, errNoCity):
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "please select or enter a city name"})
		return
	case err != nil:
		s.log.Error("processing run failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Error: "processing failed"})
		return
	}

	payload := processPayload{
		Status:     res.status,
		Message:    res.message,
		SQL:        res.sql,
		Map:        mapPayload(res.geometries),
		FirstID:    res.firstID,
		LastID:     res.nextID - 1,
		Statements: res.statements(),
		BundleName: res.bundleName,
		Bundle:     base64.StdEncoding.EncodeToString(res.bundle),
	}
	for _, o := range res.outcomes {
		payload.Files = append(payload.Files, filePayload{File: o.file, OK: o.ok, Reason: o.reason})
	}
	for _, row := range res.rows {
		payload.Rows = append(payload.Rows, rowPayload{Lat: row.lat, Lon: row.lon, File: row.file})
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: payload})
}

// mapPayload turns the per-file geometry into GeoJSON for the map
// view, one feature per line string, coloured per source file.
func mapPayload(geoms []fileGeometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	colors, err := fileColors(len(geoms))
	if err != nil {
		return fc
	}

	for i, g := range geoms {
		for _, ls := range g.lines {
			feat := geojson.NewFeature(ls)
			feat.Properties["file"] = g.file
			feat.Properties["color"] = hexColor(colors[i])
			fc.Append(feat)
		}
	}
	return fc
}

func (s *server) handleCities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: cities})
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func accessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Debug("http access",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
