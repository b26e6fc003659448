package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/pdflow/internal/repo"
	"github.com/shaiso/pdflow/internal/scheduler"
)

// ErrorCode — машиночитаемый код ошибки в теле ответа.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotConfigured ErrorCode = "NOT_CONFIGURED"
)

// ErrorResponse — тело ответа с ошибкой: {"error": {"code", "message"}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — код и текст ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — тело ответа с одним объектом.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — тело ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON пишет v с кодом status. Ошибку кодирования уже не передать
// клиенту: заголовок отправлен.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Success отвечает 200 с объектом.
func Success(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, DataResponse{Data: v})
}

// List отвечает 200 со списком и общим числом элементов.
func List(w http.ResponseWriter, items any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: items, Total: total})
}

// Error отвечает ошибкой с кодом status.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// NotConfigured отвечает 503 для отключённой части API
// (нет manifest, нет базы).
func NotConfigured(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, message)
}

// InternalError отвечает 500. Подробности остаются в логе, клиенту
// уходит общий текст.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("request failed", "error", err)
	}
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleRepoError отвечает на err и возвращает true, если err != nil.
// notFoundMsg заменяет текст для repo.ErrNotFound, если задан.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repo.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = err.Error()
		}
		NotFound(w, notFoundMsg)
	case errors.Is(err, errUnknownSchedule), errors.Is(err, scheduler.ErrScheduleNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, errNoManifest):
		NotConfigured(w, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}
