package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BaSui01/askall/api"
	"github.com/BaSui01/askall/types"
	"go.uber.org/zap"
)

// Querier 向全部平台提问
type Querier interface {
	QueryAll(ctx context.Context, question string) ([]types.PlatformResult, error)
}

// QueryHandler 提问处理器
type QueryHandler struct {
	querier Querier
	logger  *zap.Logger
}

// NewQueryHandler 创建提问处理器
func NewQueryHandler(querier Querier, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{querier: querier, logger: logger.With(zap.String("handler", "query"))}
}

// HandleQuery 处理 POST /api/v1/query
// @Summary 向全部平台提问
// @Tags 查询
// @Accept json
// @Produce json
// @Param request body api.QueryRequest true "问题"
// @Success 200 {object} Response "各平台结果"
// @Failure 400 {object} Response "请求无效"
// @Router /api/v1/query [post]
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteErrorMessage(w, r, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "question is required"), h.logger)
		return
	}

	results, err := h.querier.QueryAll(r.Context(), req.Question)
	if err != nil {
		WriteError(w, r, toAPIError(err), h.logger)
		return
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	h.logger.Info("query answered",
		zap.String("request_id", requestID(r)),
		zap.Int("platforms", len(results)),
		zap.Int("failed", failed),
	)

	WriteSuccess(w, r, api.QueryResponse{Results: results})
}
