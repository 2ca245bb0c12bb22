package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Checker は依存コンポーネントの疎通確認を行う関数
type Checker func(ctx context.Context) error

// HealthHandler はヘルスチェックハンドラー
// データベースとRedisの疎通状態をコンポーネント別に返す
type HealthHandler struct {
	checkers map[string]Checker
}

// NewHealthHandler はHealthHandlerを作成する
// checkers が空の場合はプロセスの生存のみを報告する
func NewHealthHandler(checkers map[string]Checker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// Check はヘルスチェックを行う
// @Summary ヘルスチェック
// @Description アプリケーションと依存コンポーネントの健全性を確認する
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	code := http.StatusOK
	if len(h.checkers) > 0 {
		resp.Components = make(map[string]string, len(h.checkers))
		for name, check := range h.checkers {
			if err := check(ctx); err != nil {
				resp.Components[name] = "down"
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			} else {
				resp.Components[name] = "up"
			}
		}
	}

	return c.JSON(code, resp)
}
