package handlers

import (
	"database/sql"

	"bloommarket/internal/config"
	"bloommarket/internal/media"
	"bloommarket/internal/orders"
	"bloommarket/internal/subs"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	DB     *sql.DB
	Cfg    *config.Config
	Media  *media.Store
	Subs   *subs.Manager
	Orders *orders.Engine
}

// New wires the handler set over the shared pool.
func New(db *sql.DB, cfg *config.Config, store *media.Store, engine *orders.Engine) *Handlers {
	return &Handlers{
		DB:     db,
		Cfg:    cfg,
		Media:  store,
		Subs:   subs.New(db),
		Orders: engine,
	}
}
