package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/secureform/internal/metrics"
	"github.com/hitoshi/secureform/internal/middleware"
	"github.com/hitoshi/secureform/internal/model"
)

// DefaultMaxBodyBytes はリクエストボディの既定の上限（64KiB）。
const DefaultMaxBodyBytes int64 = 64 << 10

const msgSubmitted = "Form submitted successfully"

// SubmissionServiceInterface は送信ハンドラーが必要とするサービスインターフェース。
type SubmissionServiceInterface interface {
	// Submit は生のフィールドをサニタイズ・検証して保存する。
	Submit(ctx context.Context, raw map[string]any, client model.ClientInfo) (*model.FormSubmission, error)
	// List は保存済みの送信を新しい順に返す。
	List(ctx context.Context) ([]*model.FormSubmission, error)
	// Get は指定IDの送信を返す。
	Get(ctx context.Context, id int64) (*model.FormSubmission, error)
}

// SubmissionHandler はフォーム送信のHTTPハンドラー。
type SubmissionHandler struct {
	service      SubmissionServiceInterface
	metrics      metrics.MetricsCollector
	maxBodyBytes int64
}

// NewSubmissionHandler はSubmissionHandlerを生成する。
// collectorがnilの場合はメトリクスを記録しない。maxBodyBytesが0以下の場合は既定値を使う。
func NewSubmissionHandler(service SubmissionServiceInterface, collector metrics.MetricsCollector, maxBodyBytes int64) *SubmissionHandler {
	if collector == nil {
		collector = metrics.Noop{}
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &SubmissionHandler{
		service:      service,
		metrics:      collector,
		maxBodyBytes: maxBodyBytes,
	}
}

// sanitizedData は保存された値をそのまま返す送信結果。
type sanitizedData struct {
	FullName            string                     `json:"fullName"`
	Email               string                     `json:"email"`
	Phone               *string                    `json:"phone"`
	Message             string                     `json:"message"`
	SecurityPreferences []model.SecurityPreference `json:"securityPreferences"`
}

// submitResponse は送信成功時のAPIレスポンス。
type submitResponse struct {
	Message       string        `json:"message"`
	SubmissionID  int64         `json:"submissionId"`
	SanitizedData sanitizedData `json:"sanitizedData"`
}

// SubmitForm はフォーム送信を受け付ける。
// POST /api/form-submission
func (h *SubmissionHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	raw, err := h.decodeBody(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		middleware.WriteInvalidBody(w)
		return
	}

	client := model.ClientInfo{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}

	sub, err := h.service.Submit(r.Context(), raw, client)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			h.metrics.RecordValidationFailure(len(verr.Fields))
			slog.Info("form submission rejected",
				slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
				slog.Int("field_errors", len(verr.Fields)),
			)
			middleware.WriteValidationError(w, verr)
			return
		}
		handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordSubmissionAccepted()
	slog.Info("form submission accepted",
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.Int64("submission_id", sub.ID),
	)

	middleware.WriteJSON(w, http.StatusOK, submitResponse{
		Message:      msgSubmitted,
		SubmissionID: sub.ID,
		SanitizedData: sanitizedData{
			FullName:            sub.FullName,
			Email:               sub.Email,
			Phone:               sub.Phone,
			Message:             sub.Message,
			SecurityPreferences: sub.SecurityPreferences,
		},
	})
}

// ListSubmissions は保存済みの送信一覧を新しい順に返す。
// GET /api/form-submissions
func (h *SubmissionHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if subs == nil {
		subs = []*model.FormSubmission{}
	}
	middleware.WriteJSON(w, http.StatusOK, subs)
}

// GetSubmission は指定IDの送信を返す。
// GET /api/form-submissions/{id}
func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id < 1 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(rawID))
		return
	}

	sub, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sub)
}

// decodeBody はサイズ制限付きでJSONオブジェクトを読み取る。
// nullのボディは空のオブジェクトとして扱う。オブジェクトの後に続くデータは不正とする。
func (h *SubmissionHandler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, errors.New("unexpected data after JSON object")
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeSubmissionNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidID, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
