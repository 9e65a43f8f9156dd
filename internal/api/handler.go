package api

import (
	"log/slog"

	"github.com/shaiso/Chronos/internal/clock"
	"github.com/shaiso/Chronos/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store  repo.Store
	clock  clock.Clock
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store  repo.Store
	Clock  clock.Clock
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		store:  cfg.Store,
		clock:  c,
		logger: logger,
	}
}
