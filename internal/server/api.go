package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/manhwatrack/internal/auth"
	"github.com/desertthunder/manhwatrack/internal/library"
	"github.com/desertthunder/manhwatrack/internal/models"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/session"
	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/tasks"
)

// API serves the account and library JSON endpoints.
type API struct {
	accounts *auth.Service
	store    *repositories.Store
	registry *session.Registry
	catalog  tasks.CatalogSource
	logger   *log.Logger
}

// NewAPI creates the API. catalog may be nil, in which case added titles must carry their own metadata.
func NewAPI(accounts *auth.Service, store *repositories.Store, registry *session.Registry, catalog tasks.CatalogSource, logger *log.Logger) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &API{
		accounts: accounts,
		store:    store,
		registry: registry,
		catalog:  catalog,
		logger:   shared.WithLogger(logger, "component", "api"),
	}
}

// Register adds every API route to r.
func (a *API) Register(r *BasicRouter) {
	protect := RequireAuth(a.accounts.Tokens(), a.registry)
	private := func(fn http.HandlerFunc) http.Handler { return protect(fn) }

	r.HandleFunc(http.MethodPost, "/api/auth/register", a.register)
	r.HandleFunc(http.MethodPost, "/api/auth/login", a.login)
	r.Handle(http.MethodPost, "/api/auth/password", private(a.changePassword))
	r.Handle(http.MethodPost, "/api/auth/logout", private(a.logout))

	r.Handle(http.MethodGet, "/api/library", private(a.listLibrary))
	r.Handle(http.MethodPost, "/api/library", private(a.addToLibrary))
	r.Handle(http.MethodGet, "/api/library/{id}", private(a.getEntry))
	r.Handle(http.MethodPatch, "/api/library/{id}", private(a.updateEntry))
	r.Handle(http.MethodDelete, "/api/library/{id}", private(a.removeEntry))
	r.Handle(http.MethodPut, "/api/library/{id}/progress", private(a.saveProgress))

	r.Handle(http.MethodGet, "/api/goals", private(a.listGoals))
	r.Handle(http.MethodPost, "/api/goals", private(a.createGoal))
	r.Handle(http.MethodDelete, "/api/goals/{id}", private(a.deleteGoal))
	r.Handle(http.MethodGet, "/api/achievements", private(a.listAchievements))
	r.Handle(http.MethodGet, "/api/stats", private(a.stats))
}

// client returns a library client bound to the request's user.
func (a *API) client(r *http.Request) *library.Client {
	return library.NewClient(a.store, library.NewUserSession(UserID(r.Context())), a.logger)
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Current  string `json:"current"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, err)
		return
	}

	sess, err := a.accounts.Register(r.Context(), req.Email, req.Name, req.Password, req.Confirm)
	if err != nil {
		fail(w, err)
		return
	}
	a.startSession(sess)
	writeJSON(w, http.StatusCreated, sess)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, err)
		return
	}

	sess, err := a.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, err)
		return
	}
	a.startSession(sess)
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) startSession(sess *auth.Session) {
	if a.registry == nil || sess.Claims == nil {
		return
	}
	if err := a.registry.Touch(sess.Claims.SessionID()); err != nil {
		a.logger.Warn("failed to start session", "error", err)
	}
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, err)
		return
	}

	if err := a.accounts.ChangePassword(r.Context(), UserID(r.Context()), req.Current, req.Password, req.Confirm); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if a.registry != nil {
		a.registry.Revoke(sessionID(r.Context()))
	}
	w.WriteHeader(http.StatusNoContent)
}

// libraryFilter reads ?status=&q=&sort=&limit=.
func libraryFilter(r *http.Request) (repositories.Filter, error) {
	q := r.URL.Query()
	f := repositories.Filter{
		Query: strings.TrimSpace(q.Get("q")),
		Sort:  repositories.SortKey(q.Get("sort")),
	}

	if s := q.Get("status"); s != "" {
		st, err := models.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, shared.ErrInvalidInput
		}
		f.Limit = n
	}
	return f, nil
}

func (a *API) listLibrary(w http.ResponseWriter, r *http.Request) {
	f, err := libraryFilter(r)
	if err != nil {
		fail(w, err)
		return
	}

	entries, err := a.client(r).Library(r.Context(), f)
	if err != nil {
		fail(w, err)
		return
	}
	if entries == nil {
		entries = []models.EntryWithProgress{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// addToLibrary accepts a catalog title. A body carrying only an id is looked up in the catalog.
func (a *API) addToLibrary(w http.ResponseWriter, r *http.Request) {
	var item models.Manga
	if err := decode(w, r, &item); err != nil {
		fail(w, err)
		return
	}

	if item.Title == "" && item.ID != "" && a.catalog != nil {
		found := a.catalog.Get(r.Context(), item.ID)
		if found == nil {
			fail(w, shared.ErrUpstreamNotFound)
			return
		}
		item = *found
	}

	id, err := a.client(r).AddToLibrary(r.Context(), item)
	if err != nil && id == "" {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := a.client(r).Entry(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type entryPatch struct {
	Title         *string `json:"title"`
	CoverURL      *string `json:"cover_url"`
	Description   *string `json:"description"`
	TotalChapters *int    `json:"total_chapters"`
}

func (a *API) updateEntry(w http.ResponseWriter, r *http.Request) {
	var patch entryPatch
	if err := decode(w, r, &patch); err != nil {
		fail(w, err)
		return
	}

	c := a.client(r)
	current, err := c.Entry(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}

	entry := current.LibraryEntry
	if patch.Title != nil {
		entry.Title = *patch.Title
	}
	if patch.CoverURL != nil {
		entry.CoverURL = *patch.CoverURL
	}
	if patch.Description != nil {
		entry.Description = *patch.Description
	}
	if patch.TotalChapters != nil {
		entry.TotalChapters = patch.TotalChapters
	}

	if err := c.UpdateEntry(r.Context(), &entry); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) removeEntry(w http.ResponseWriter, r *http.Request) {
	if err := a.client(r).RemoveFromLibrary(r.Context(), r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) saveProgress(w http.ResponseWriter, r *http.Request) {
	var upd models.ProgressUpdate
	if err := decode(w, r, &upd); err != nil {
		fail(w, err)
		return
	}

	rec, err := a.client(r).SaveProgress(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := a.client(r).Goals(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if goals == nil {
		goals = []*models.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (a *API) createGoal(w http.ResponseWriter, r *http.Request) {
	var g models.Goal
	if err := decode(w, r, &g); err != nil {
		fail(w, err)
		return
	}

	if err := a.client(r).CreateGoal(r.Context(), &g); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (a *API) deleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := a.client(r).DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type achievementView struct {
	models.AchievementInfo
	UnlockedAt string `json:"unlocked_at,omitempty"`
}

// listAchievements returns the whole catalog with unlock times filled in for earned ones.
func (a *API) listAchievements(w http.ResponseWriter, r *http.Request) {
	unlocked, err := a.client(r).Achievements(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	at := make(map[models.AchievementType]string, len(unlocked))
	for _, u := range unlocked {
		at[u.Type] = u.UnlockedAt.UTC().Format(time.RFC3339)
	}

	views := make([]achievementView, 0, len(models.Achievements))
	for _, info := range models.Achievements {
		views = append(views, achievementView{AchievementInfo: info, UnlockedAt: at[info.Type]})
	}
	writeJSON(w, http.StatusOK, views)
}

// stats syncs goals and achievements with the library and returns the summary.
func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	result, err := tasks.NewLibraryEngine(a.client(r), nil, a.logger).Sync(r.Context(), nil)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
