package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"visionqa/internal/config"
	"visionqa/internal/dto"
	"visionqa/internal/logger"
)

// UploadImageHandler accepts a multipart upload in field "file", runs
// detection with the optional ?conf= threshold and answers 201 with the
// recorded image.
func UploadImageHandler(uploader Uploader, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threshold, err := parseConfidence(r.URL.Query().Get("conf"), cfg.DefaultConfidence)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "conf must be a number", logger)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeDetail(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit), logger)
				return
			}
			writeDetail(w, http.StatusBadRequest, "multipart field \"file\" is required", logger)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			logger.Error("Error reading upload %q: %v", header.Filename, err)
			writeDetail(w, http.StatusBadRequest, "could not read uploaded file", logger)
			return
		}

		detail, err := uploader.Upload(r.Context(), dto.UploadRequest{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
			Threshold:   threshold,
		})
		if err != nil {
			writeError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, detail, logger)
	}
}
