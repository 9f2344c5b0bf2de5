package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/common/middleware"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/mapper"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
)

// Reader is the read side of the giveaway engine.
type Reader interface {
	Get(ctx context.Context, id int64) (*models.Giveaway, error)
	GetArchived(ctx context.Context, id int64) (*models.Giveaway, error)
	ListActive(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error)
	ListArchived(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error)
}

type GiveawayHandler struct {
	reader Reader
	logger zerolog.Logger
	now    func() time.Time
}

func NewGiveawayHandler(reader Reader, logger zerolog.Logger) *GiveawayHandler {
	return &GiveawayHandler{reader: reader, logger: logger, now: time.Now}
}

func (h *GiveawayHandler) RegisterRoutes(router *gin.RouterGroup) {
	giveaways := router.Group("/giveaways")
	{
		giveaways.GET("", h.listActive)
		giveaways.GET("/archive", h.listArchived)
		giveaways.GET("/:id", h.getByID)
		giveaways.GET("/:id/archive", h.getArchived)
	}
}

// @Summary List active giveaways
// @Description Active giveaways, optionally limited to one guild
// @Tags giveaways
// @Produce json
// @Param guild_id query string false "Guild ID"
// @Success 200 {object} dto.GiveawayListResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid guild id"
// @Router /giveaways [get]
func (h *GiveawayHandler) listActive(c *gin.Context) {
	guildID, ok := h.guildFilter(c)
	if !ok {
		return
	}
	list, err := h.reader.ListActive(c.Request.Context(), guildID)
	if err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, mapper.ToGiveawayList(list, h.now()))
}

// @Summary List resolved giveaways
// @Description Archived giveaways, newest first, optionally limited to one guild
// @Tags giveaways
// @Produce json
// @Param guild_id query string false "Guild ID"
// @Success 200 {object} dto.GiveawayListResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid guild id"
// @Router /giveaways/archive [get]
func (h *GiveawayHandler) listArchived(c *gin.Context) {
	guildID, ok := h.guildFilter(c)
	if !ok {
		return
	}
	list, err := h.reader.ListArchived(c.Request.Context(), guildID)
	if err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, mapper.ToGiveawayList(list, h.now()))
}

// @Summary Get active giveaway by ID
// @Tags giveaways
// @Produce json
// @Param id path int true "Giveaway ID"
// @Success 200 {object} dto.GiveawayResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid id"
// @Failure 404 {object} middleware.ErrorResponse "Giveaway not found"
// @Router /giveaways/{id} [get]
func (h *GiveawayHandler) getByID(c *gin.Context) {
	id, ok := h.giveawayID(c)
	if !ok {
		return
	}
	g, err := h.reader.Get(c.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, mapper.ToGiveawayResponse(g, h.now()))
}

// @Summary Get resolved giveaway by ID
// @Tags giveaways
// @Produce json
// @Param id path int true "Giveaway ID"
// @Success 200 {object} dto.GiveawayResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid id"
// @Failure 404 {object} middleware.ErrorResponse "Giveaway not found"
// @Router /giveaways/{id}/archive [get]
func (h *GiveawayHandler) getArchived(c *gin.Context) {
	id, ok := h.giveawayID(c)
	if !ok {
		return
	}
	g, err := h.reader.GetArchived(c.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, mapper.ToGiveawayResponse(g, h.now()))
}

func (h *GiveawayHandler) giveawayID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.AbortWithError(c, apperrors.NewValidationError("id", "must be a positive integer"), h.logger)
		return 0, false
	}
	return id, true
}

func (h *GiveawayHandler) guildFilter(c *gin.Context) (snowflake.ID, bool) {
	raw := c.Query("guild_id")
	if raw == "" {
		return 0, true
	}
	id, err := snowflake.Parse(raw)
	if err != nil {
		middleware.AbortWithError(c, apperrors.NewValidationError("guild_id", "must be a snowflake"), h.logger)
		return 0, false
	}
	return id, true
}
