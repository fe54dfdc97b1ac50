package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"growtive/pkg/types"
)

type normalizer interface {
	Normalize()
}

// bindRequest decodes the body into req, normalizes it and validates it.
func bindRequest(ctx echo.Context, req normalizer) error {
	if err := ctx.Bind(req); err != nil {
		return err
	}
	req.Normalize()
	return ctx.Validate(req)
}

func pathID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

type accountAPI struct {
	accounts AccountService
}

func registerAccountAPI(g *echo.Group, authed echo.MiddlewareFunc, accounts AccountService) {
	h := &accountAPI{accounts: accounts}

	g.POST("/auth/register", h.register)
	g.POST("/auth/login", h.login)

	g.GET("/me", h.me, authed)
	g.PUT("/me", h.updateMe, authed)
	g.GET("/me/transactions", h.transactions, authed)
	g.GET("/leaderboard", h.leaderboard, authed)
	g.GET("/plans", h.plans, authed)
	g.POST("/plans/:code/upgrade", h.upgrade, authed)
}

func (h *accountAPI) register(ctx echo.Context) error {
	var req types.RegisterRequest
	if err := bindRequest(ctx, &req); err != nil {
		return err
	}
	user, err := h.accounts.Register(ctx.Request().Context(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, user)
}

func (h *accountAPI) login(ctx echo.Context) error {
	var req types.LoginRequest
	if err := bindRequest(ctx, &req); err != nil {
		return err
	}
	res, err := h.accounts.Login(ctx.Request().Context(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (h *accountAPI) me(ctx echo.Context) error {
	user, err := h.accounts.Profile(ctx.Request().Context(), contextUserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, user)
}

func (h *accountAPI) updateMe(ctx echo.Context) error {
	var req types.UpdateProfileRequest
	if err := bindRequest(ctx, &req); err != nil {
		return err
	}
	user, err := h.accounts.UpdateProfile(ctx.Request().Context(), contextUserID(ctx), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, user)
}

func (h *accountAPI) transactions(ctx echo.Context) error {
	txns, err := h.accounts.Transactions(ctx.Request().Context(), contextUserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, txns)
}

func (h *accountAPI) leaderboard(ctx echo.Context) error {
	limit := 0
	if raw := ctx.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	users, err := h.accounts.Leaderboard(ctx.Request().Context(), limit)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, users)
}

func (h *accountAPI) plans(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, h.accounts.Plans())
}

func (h *accountAPI) upgrade(ctx echo.Context) error {
	tx, err := h.accounts.Upgrade(ctx.Request().Context(), contextUserID(ctx), ctx.Param("code"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tx)
}

type libraryAPI struct {
	library LibraryService
}

func registerLibraryAPI(g *echo.Group, authed echo.MiddlewareFunc, library LibraryService) {
	h := &libraryAPI{library: library}

	m := g.Group("/materials", authed)
	m.GET("", h.list)
	m.GET("/:id", h.detail)
	m.POST("/:id/complete", h.complete)
	m.POST("/:id/bookmark", h.bookmark)
	m.POST("/:id/notes", h.addNote)
}

func (h *libraryAPI) list(ctx echo.Context) error {
	filter := types.MaterialFilter{
		LevelTag: ctx.QueryParam("level_tag"),
		Grade:    ctx.QueryParam("grade"),
		Subject:  ctx.QueryParam("subject"),
	}
	materials, err := h.library.List(ctx.Request().Context(), contextUserID(ctx), filter)
	if err != nil {
		return err
	}
	if materials == nil {
		materials = []*types.Material{}
	}
	return ctx.JSON(http.StatusOK, materials)
}

func (h *libraryAPI) detail(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	detail, err := h.library.Get(ctx.Request().Context(), contextUserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (h *libraryAPI) complete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	user, err := h.library.Complete(ctx.Request().Context(), contextUserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, user)
}

func (h *libraryAPI) bookmark(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	b, err := h.library.Bookmark(ctx.Request().Context(), contextUserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, b)
}

func (h *libraryAPI) addNote(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var req types.NoteRequest
	if err := bindRequest(ctx, &req); err != nil {
		return err
	}
	note, err := h.library.AddNote(ctx.Request().Context(), contextUserID(ctx), id, req.Content)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, note)
}

type roomAPI struct {
	rooms    RoomService
	accounts AccountService
}

func registerRoomAPI(g *echo.Group, authed echo.MiddlewareFunc, rooms RoomService, accounts AccountService) {
	h := &roomAPI{rooms: rooms, accounts: accounts}

	r := g.Group("/rooms", authed)
	r.POST("/match", h.match)
	r.GET("/:id", h.get)
	r.POST("/:id/end", h.end)
}

func (h *roomAPI) match(ctx echo.Context) error {
	var req types.MatchRequest
	if err := bindRequest(ctx, &req); err != nil {
		return err
	}
	room, err := h.rooms.FindOrCreateRoom(ctx.Request().Context(), contextUserID(ctx), req.LevelTag, req.Subject, req.Mode)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, room)
}

func (h *roomAPI) get(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	detail, err := h.rooms.RoomDetail(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, detail)
}

// end closes the caller's study session in the room and pays the reward.
func (h *roomAPI) end(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	user, err := h.accounts.CompleteStudySession(ctx.Request().Context(), contextUserID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, user)
}
