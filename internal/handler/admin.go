package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/photostudio-system/internal/middleware"
	"github.com/mmeshcher/photostudio-system/internal/model"
	"github.com/mmeshcher/photostudio-system/internal/repository"
	"github.com/mmeshcher/photostudio-system/internal/service"
)

// AdminOrders возвращает список всех заявок.
func (h *Handler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListAllOrders(r.Context())
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newSubmissionListResponse(subs)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// AdminArchive возвращает список доставленных заявок.
func (h *Handler) AdminArchive(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListArchive(r.Context())
	if err != nil {
		h.logger.Error("list archive error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newSubmissionListResponse(subs)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// AdminReviewPhotos возвращает заявки, ожидающие проверки.
func (h *Handler) AdminReviewPhotos(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListReviewQueue(r.Context())
	if err != nil {
		h.logger.Error("list review queue error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newSubmissionListResponse(subs)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// AdminStats возвращает сводные счётчики по пользователям и заявкам.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("get stats error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type updateStatusRequest struct {
	ID        int64  `json:"id"`
	NewStatus string `json:"newStatus"`
}

// UpdateStatus перезаписывает статус заявки.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.ID <= 0 {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}

	if err := h.service.SetStatus(r.Context(), req.ID, req.NewStatus); err != nil {
		switch {
		case errors.Is(err, model.ErrUnknownStatus):
			http.Error(w, "unknown status", http.StatusBadRequest)
		case errors.Is(err, repository.ErrSubmissionNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("update status error", zap.Error(err), zap.Int64("id", req.ID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// MarkReviewed отмечает заявку как просмотренную.
func (h *Handler) MarkReviewed(w http.ResponseWriter, r *http.Request) {
	id, err := submissionIDFromQuery(r)
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}

	if err := h.service.MarkReviewed(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("mark reviewed error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) readProcessedForm(w http.ResponseWriter, r *http.Request) (int64, []byte, string, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, nil, "", false
	}

	id, err := submissionIDFromQuery(r)
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return 0, nil, "", false
	}

	f, _, err := r.FormFile("processedFile")
	if err != nil {
		http.Error(w, "processed file is required", http.StatusBadRequest)
		return 0, nil, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, nil, "", false
	}

	staff, _ := middleware.GetUserEmailFromContext(r.Context())
	return id, data, staff, true
}

// UploadProcessedPhoto сохраняет результат обработки без отправки пользователю.
func (h *Handler) UploadProcessedPhoto(w http.ResponseWriter, r *http.Request) {
	id, data, staff, ok := h.readProcessedForm(w, r)
	if !ok {
		return
	}

	if err := h.service.AttachProcessedOutput(r.Context(), id, data, staff); err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyFile):
			http.Error(w, "processed file is required", http.StatusBadRequest)
		case errors.Is(err, repository.ErrSubmissionNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("upload processed photo error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// UploadAndSendProcessedPhoto сохраняет результат обработки, отправляет его
// пользователю по почте и отмечает заявку доставленной.
func (h *Handler) UploadAndSendProcessedPhoto(w http.ResponseWriter, r *http.Request) {
	id, data, staff, ok := h.readProcessedForm(w, r)
	if !ok {
		return
	}

	if err := h.service.DeliverToUser(r.Context(), id, data, staff); err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyFile):
			http.Error(w, "processed file is required", http.StatusBadRequest)
		case errors.Is(err, repository.ErrSubmissionNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrDeliveryFailed):
			h.logger.Error("deliver photo error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, "failed to send email", http.StatusBadGateway)
		default:
			h.logger.Error("deliver photo error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writePhoto(w http.ResponseWriter, r *http.Request, processed, download bool) {
	id, err := submissionIDFromQuery(r)
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}

	sub, err := h.service.GetSubmission(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get submission error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	data := sub.ImageData
	name := sub.FileName
	if processed {
		data = sub.ProcessedImage
		name = "processed_" + sub.FileName
	}
	if len(data) == 0 {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if download {
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	if _, err := w.Write(data); err != nil {
		h.logger.Error("write photo error", zap.Error(err), zap.Int64("id", id))
	}
}

// ViewPhoto отдаёт исходную фотографию заявки.
func (h *Handler) ViewPhoto(w http.ResponseWriter, r *http.Request) {
	h.writePhoto(w, r, false, false)
}

// DownloadPhoto отдаёт исходную фотографию заявки как вложение.
func (h *Handler) DownloadPhoto(w http.ResponseWriter, r *http.Request) {
	h.writePhoto(w, r, false, true)
}

// ViewProcessedPhoto отдаёт обработанную фотографию заявки.
func (h *Handler) ViewProcessedPhoto(w http.ResponseWriter, r *http.Request) {
	h.writePhoto(w, r, true, false)
}

// DownloadProcessedPhoto отдаёт обработанную фотографию заявки как вложение.
func (h *Handler) DownloadProcessedPhoto(w http.ResponseWriter, r *http.Request) {
	h.writePhoto(w, r, true, true)
}
