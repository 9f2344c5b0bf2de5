package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models/dto"
)

type fakeReader struct {
	active   []*models.Giveaway
	archived []*models.Giveaway
	err      error
}

func find(list []*models.Giveaway, id int64) (*models.Giveaway, error) {
	for _, g := range list {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, apperrors.NewGiveawayNotFoundError(id)
}

func filter(list []*models.Giveaway, guildID snowflake.ID) []*models.Giveaway {
	out := []*models.Giveaway{}
	for _, g := range list {
		if guildID == 0 || g.GuildID == guildID {
			out = append(out, g)
		}
	}
	return out
}

func (f *fakeReader) Get(_ context.Context, id int64) (*models.Giveaway, error) {
	return find(f.active, id)
}

func (f *fakeReader) GetArchived(_ context.Context, id int64) (*models.Giveaway, error) {
	return find(f.archived, id)
}

func (f *fakeReader) ListActive(_ context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	if f.err != nil {
		return nil, f.err
	}
	return filter(f.active, guildID), nil
}

func (f *fakeReader) ListArchived(_ context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	return filter(f.archived, guildID), nil
}

func newTestRouter(reader Reader, ready func(context.Context) error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewGiveawayHandler(reader, zerolog.New(io.Discard))
	h.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	h.RegisterRoutes(r.Group("/api/v1"))
	RegisterProbes(r, "giveaway-bot", ready)
	return r
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func sample() *fakeReader {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeReader{
		active: []*models.Giveaway{
			{ID: 1, GuildID: 10, Prize: "A", StartedAt: start, EndsAt: start.Add(time.Hour), Status: models.StatusCounting},
			{ID: 2, GuildID: 20, Prize: "B", StartedAt: start, EndsAt: start.Add(2 * time.Hour), Status: models.StatusCounting},
		},
		archived: []*models.Giveaway{
			{ID: 3, GuildID: 10, Prize: "C", Status: models.StatusCompleted, Winners: []snowflake.ID{42}},
		},
	}
}

func TestListActive(t *testing.T) {
	r := newTestRouter(sample(), func(context.Context) error { return nil })

	rec := get(t, r, "/api/v1/giveaways")
	require.Equal(t, http.StatusOK, rec.Code)
	var all dto.GiveawayListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, 2, all.Total)

	rec = get(t, r, "/api/v1/giveaways?guild_id=20")
	require.Equal(t, http.StatusOK, rec.Code)
	var scoped dto.GiveawayListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scoped))
	require.Equal(t, 1, scoped.Total)
	assert.Equal(t, "B", scoped.Giveaways[0].Prize)
	assert.Equal(t, "2h", scoped.Giveaways[0].TimeLeft)
}

func TestListActiveBadGuild(t *testing.T) {
	r := newTestRouter(sample(), func(context.Context) error { return nil })
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/v1/giveaways?guild_id=abc").Code)
}

func TestListActiveStoreError(t *testing.T) {
	reader := sample()
	reader.err = apperrors.NewStoreError("list giveaways", errors.New("down"))
	r := newTestRouter(reader, func(context.Context) error { return nil })
	assert.Equal(t, http.StatusServiceUnavailable, get(t, r, "/api/v1/giveaways").Code)
}

func TestGetByID(t *testing.T) {
	r := newTestRouter(sample(), func(context.Context) error { return nil })

	rec := get(t, r, "/api/v1/giveaways/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var g dto.GiveawayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Equal(t, "A", g.Prize)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/v1/giveaways/3").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/v1/giveaways/x").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/v1/giveaways/0").Code)
}

func TestGetArchivedAndList(t *testing.T) {
	r := newTestRouter(sample(), func(context.Context) error { return nil })

	rec := get(t, r, "/api/v1/giveaways/3/archive")
	require.Equal(t, http.StatusOK, rec.Code)
	var g dto.GiveawayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Equal(t, []string{"42"}, g.Winners)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/v1/giveaways/1/archive").Code)

	rec = get(t, r, "/api/v1/giveaways/archive?guild_id=20")
	require.Equal(t, http.StatusOK, rec.Code)
	var list dto.GiveawayListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Zero(t, list.Total)
}

func TestProbes(t *testing.T) {
	r := newTestRouter(sample(), func(context.Context) error { return nil })

	rec := get(t, r, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, KeepAliveText, rec.Body.String())
	assert.Equal(t, http.StatusOK, get(t, r, "/health").Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/live").Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/ready").Code)

	down := newTestRouter(sample(), func(context.Context) error { return errors.New("no store") })
	assert.Equal(t, http.StatusServiceUnavailable, get(t, down, "/ready").Code)
}
