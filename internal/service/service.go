package service

import (
	"context"
	"log/slog"

	"partygame/internal/repository"
	"partygame/pkg/config"
)

type Services struct {
	Registry *Registry
	Hub      *Hub
	Mirror   *Mirror
	Store    repository.Store
}

// NewServices board 可以為 nil，此時排行榜只從記憶體與資料庫讀取
func NewServices(cfg *config.Config, store repository.Store, board LeaderboardMirror, logger *slog.Logger) *Services {
	hub := NewHub(cfg.WebSocket, logger)
	mirror := NewMirror(cfg.Persistence, logger)
	registry := NewRegistry(store, mirror, hub, board, OptionsFromConfig(cfg), logger)

	return &Services{
		Registry: registry,
		Hub:      hub,
		Mirror:   mirror,
		Store:    store,
	}
}

// Close 依序關閉連線、回合計時器與背景寫入，ctx 限制等待寫入的時間
func (s *Services) Close(ctx context.Context) error {
	s.Hub.Shutdown()
	s.Registry.Shutdown()

	err := s.Mirror.Flush(ctx)
	s.Mirror.Close()
	return err
}
