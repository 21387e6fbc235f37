package handler

import (
	"context"

	"docintel-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// SettingsStore reads and writes the global extraction switches.
type SettingsStore interface {
	LoadSettings(ctx context.Context, defaults types.ExtractionSettings) (types.ExtractionSettings, error)
	SaveSettings(ctx context.Context, settings types.ExtractionSettings) error
}

// SettingsHandler serves GET and PUT /settings.
type SettingsHandler struct {
	store    SettingsStore
	defaults types.ExtractionSettings
}

func NewSettingsHandler(store SettingsStore, defaults types.ExtractionSettings) *SettingsHandler {
	return &SettingsHandler{store: store, defaults: defaults}
}

// Get returns the current settings, or the defaults when the store fails.
func (h *SettingsHandler) Get(ctx context.Context, c *app.RequestContext) {
	s, err := h.store.LoadSettings(ctx, h.defaults)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, s)
}

// Update replaces every switch with the values in the JSON body. Missing
// fields keep their current value.
func (h *SettingsHandler) Update(ctx context.Context, c *app.RequestContext) {
	current, err := h.store.LoadSettings(ctx, h.defaults)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := c.BindJSON(&current); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if err := h.store.SaveSettings(ctx, current); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, current)
}
