package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"partygame/internal/service"
)

// SessionHandler 處理場次相關的 HTTP 請求
type SessionHandler struct {
	registry *service.Registry
}

func NewSessionHandler(registry *service.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// CreateSession 建立新場次並回傳代碼
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var input struct {
		Host string `json:"host"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "malformed_payload"})
			return
		}
	}

	code, err := h.registry.CreateSession(c.Request.Context(), input.Host)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"code": code})
}

// GetSession 回傳記憶體中場次的即時狀態
func (h *SessionHandler) GetSession(c *gin.Context) {
	snap, err := h.registry.Snapshot(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// StartQuestion 與 host:start-question 事件相同
func (h *SessionHandler) StartQuestion(c *gin.Context) {
	var input service.QuestionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "malformed_payload"})
		return
	}

	q, err := h.registry.StartQuestion(c.Request.Context(), c.Param("code"), &input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "question": q})
}

func (h *SessionHandler) Leaderboard(c *gin.Context) {
	board, err := h.registry.Leaderboard(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": board})
}

// ExportResults 以 CSV 匯出所有參加過的玩家成績
func (h *SessionHandler) ExportResults(c *gin.Context) {
	code := c.Param("code")
	participants, err := h.registry.Results(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-results.csv"`, code))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"name", "score"})
	for _, p := range participants {
		w.Write([]string{p.Name, strconv.Itoa(p.Score)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		c.Error(err)
	}
}
