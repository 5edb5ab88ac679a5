package handler

import (
	"net/http"

	"contest_judge/internal/api/middleware"
	"contest_judge/internal/app/service"
	"contest_judge/internal/common"
	"contest_judge/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ContestHandler struct {
	contestService     *service.ContestService
	leaderboardService *service.LeaderboardService
	submissionService  *service.SubmissionService
	authService        *service.AuthService
}

func NewContestHandler(cs *service.ContestService, ls *service.LeaderboardService, ss *service.SubmissionService, as *service.AuthService) *ContestHandler {
	return &ContestHandler{contestService: cs, leaderboardService: ls, submissionService: ss, authService: as}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{contestID}", h.getContest)
	r.Get("/{contestID}/problems", h.listProblems)
	r.Get("/{contestID}/leaderboard", h.leaderboard)

	r.Group(func(auth chi.Router) {
		auth.Use(middleware.Authenticator)
		auth.Post("/{contestID}/join", h.join)
		auth.Get("/{contestID}/submissions", h.listSubmissions)

		auth.Group(func(admin chi.Router) {
			admin.Use(middleware.AdminOnly)
			admin.Post("/", h.createContest)
			admin.Post("/{contestID}/problems", h.createProblem)
		})
	})
}

func (h *ContestHandler) getContest(w http.ResponseWriter, r *http.Request) {
	contest, err := h.contestService.GetContest(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.contestService.ListProblems(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}

func (h *ContestHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboardService.Leaderboard(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}

func (h *ContestHandler) join(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.GetUsernameFromContext(r.Context())
	joined, err := h.authService.JoinContest(r.Context(), username, chi.URLParam(r, "contestID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	if !joined {
		common.RespondWithMessage(w, http.StatusOK, "User already joined this contest")
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Successfully joined contest")
}

// listSubmissions shows admins every submission and everyone else their own.
func (h *ContestHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.GetUsernameFromContext(r.Context())
	if role, _ := middleware.GetUserRoleFromContext(r.Context()); role == model.RoleAdmin {
		username = r.URL.Query().Get("username")
	}
	subs, err := h.submissionService.ListContestSubmissions(r.Context(), chi.URLParam(r, "contestID"), username)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

func (h *ContestHandler) createContest(w http.ResponseWriter, r *http.Request) {
	var req service.CreateContestRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	contest, err := h.contestService.CreateContest(r.Context(), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, contest)
}

func (h *ContestHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProblemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	problem, err := h.contestService.CreateProblem(r.Context(), chi.URLParam(r, "contestID"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem.View())
}
