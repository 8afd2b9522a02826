package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/notifier"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/repository"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/workflow"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository *repository.Repository
	engine     *workflow.Engine
	board      *notifier.BroadcastBoard
	translator ut.Translator

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, engine *workflow.Engine, board *notifier.BroadcastBoard) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		engine:     engine,
		board:      board,
		translator: trans,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	h.Mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		h.successResponse(w, r, "ok", nil)
	})

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)

		r.Get("/my-info", h.GetMyInfo)
		r.Get("/my-info/assignments", h.GetMyAssignments)

		r.Get("/shifts", h.GetBranchShifts)
		r.Get("/board", h.GetBranchBoard)

		r.Route("/swap-requests", func(r chi.Router) {
			r.Post("/", h.CreateSwapRequest)
			r.Get("/mine", h.GetMySwapRequests)
			r.Get("/responded", h.GetRespondedSwapRequests)
			r.Get("/branch", h.GetBranchSwapRequests)
			r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin})).Get("/pending-approvals", h.GetSwapRequestsPendingApproval)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.swapRequest)
				r.Get("/", h.GetSwapRequest)
				r.Post("/responses", h.RespondSwapRequest)
				r.Post("/responses/{responseID}/select", h.SelectSwapResponse)
				r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin})).Post("/approve", h.ApproveSwapRequest)
				r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin})).Post("/reject", h.RejectSwapRequest)
				r.Post("/cancel", h.CancelSwapRequest)
			})
		})

		r.Route("/coverage-requests", func(r chi.Router) {
			r.Post("/", h.CreateCoverageRequest)
			r.Get("/mine", h.GetMyCoverageRequests)
			r.Get("/responded", h.GetRespondedCoverageRequests)
			r.Get("/branch", h.GetBranchCoverageRequests)
			r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin})).Get("/pending-approvals", h.GetCoverageRequestsPendingApproval)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.coverageRequest)
				r.Get("/", h.GetCoverageRequest)
				r.Post("/responses", h.RespondCoverageRequest)
				r.Post("/accept", h.AcceptCoverageRequest)
				r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin})).Post("/approve", h.ApproveCoverageRequest)
				r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin})).Post("/reject", h.RejectCoverageRequest)
				r.Post("/cancel", h.CancelCoverageRequest)
			})
		})
	})
}
