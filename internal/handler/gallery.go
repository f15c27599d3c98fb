package handler

import (
	"math"
	"net/http"
	"strconv"

	"visionqa/internal/dto"
	"visionqa/internal/logger"
	"visionqa/internal/service/storage"
)

// ListImagesHandler returns the most recent images, optionally filtered by
// tag and minimum confidence.
func ListImagesHandler(engine ImageQuerier, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit, err := atoiDefault(q.Get("limit"), dto.DefaultListLimit)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "limit must be an integer", logger)
			return
		}
		minConf, err := parseConfidence(q.Get("min_conf"), 0)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "min_conf must be a number", logger)
			return
		}

		filter := dto.ImageFilters{
			Tag:           q.Get("tag"),
			MinConfidence: minConf,
			Limit:         limit,
		}

		items, err := engine.List(r.Context(), filter)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dto.ImagesData{Items: items}, logger)
	}
}

// GetImageHandler returns one image with its tags and detections.
func GetImageHandler(engine ImageQuerier, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "image id must be an integer", logger)
			return
		}

		detail, err := engine.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, detail, logger)
	}
}

// TagsHandler lists every label recorded so far.
func TagsHandler(engine ImageQuerier, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := engine.Tags(r.Context())
		if err != nil {
			writeError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dto.TagsData{Tags: tags}, logger)
	}
}

// StatsHandler returns totals over the whole store.
func StatsHandler(engine ImageQuerier, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := engine.Stats(r.Context())
		if err != nil {
			writeError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats, logger)
	}
}

// ViewPictureHandler serves a stored image by its reference.
func ViewPictureHandler(files *storage.FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := files.Path(r.PathValue("ref"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		http.ServeFile(w, r, path)
	}
}

// atoiDefault parses s, falling back to def when s is empty.
func atoiDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// parseConfidence parses a confidence value, falling back to def when s is empty.
func parseConfidence(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
