package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/settings"
)

// GetSettings returns the device settings.
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.Settings.Get())
}

// PutSettings applies an admin's edits.
func (h *Handler) PutSettings(c *gin.Context) {
	actor, ok := h.requireAdmin(c)
	if !ok {
		return
	}
	var patch settings.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c)
		return
	}
	st, err := h.Settings.Save(actor, patch)
	if err != nil {
		settingsError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type catalog struct {
	ElecTypes  []string `json:"elecTypes"`
	WaterTypes []string `json:"waterTypes"`
}

func catalogOf(st model.Settings) catalog {
	return catalog{ElecTypes: st.ElecTypes, WaterTypes: st.WaterTypes}
}

// GetCatalog returns the meter type catalogs.
func (h *Handler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, catalogOf(h.Settings.Get()))
}

type catalogEntryRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddCatalogEntry adds a meter type to the catalog named by :kind.
func (h *Handler) AddCatalogEntry(c *gin.Context) {
	actor, ok := h.requireAdmin(c)
	if !ok {
		return
	}
	var req catalogEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	var (
		st  model.Settings
		err error
	)
	switch c.Param("kind") {
	case "elec":
		st, err = h.Settings.AddElecType(actor, req.Name)
	case "water":
		st, err = h.Settings.AddWaterType(actor, req.Name)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown catalog"})
		return
	}
	if err != nil {
		settingsError(c, err)
		return
	}
	c.JSON(http.StatusCreated, catalogOf(st))
}

// RemoveCatalogEntry removes the entry at :index from the catalog named by :kind.
func (h *Handler) RemoveCatalogEntry(c *gin.Context) {
	actor, ok := h.requireAdmin(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}

	var st model.Settings
	switch c.Param("kind") {
	case "elec":
		st, err = h.Settings.RemoveElecType(actor, index)
	case "water":
		st, err = h.Settings.RemoveWaterType(actor, index)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown catalog"})
		return
	}
	if err != nil {
		settingsError(c, err)
		return
	}
	c.JSON(http.StatusOK, catalogOf(st))
}

func settingsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, settings.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": settings.MsgAdminOnly})
	case errors.Is(err, settings.ErrNoSuchEntry):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, settings.ErrEmptyEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
