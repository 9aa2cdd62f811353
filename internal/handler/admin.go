package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/internal/repository"
)

// AdminHandler serves the admin dashboard endpoints.
type AdminHandler struct {
	db       *pgxpool.Pool
	users    *repository.UserRepository
	subs     *repository.SubscriptionRepository
	messages *repository.MessageRepository
	audit    *repository.AuditRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(db *pgxpool.Pool, users *repository.UserRepository, subs *repository.SubscriptionRepository,
	messages *repository.MessageRepository, audit *repository.AuditRepository) *AdminHandler {
	return &AdminHandler{db: db, users: users, subs: subs, messages: messages, audit: audit}
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := h.users.List(r.Context(), repository.UserFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		Error(w, domain.ErrInternal("failed to list users", err))
		return
	}

	responses := make([]*domain.UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, u.ToResponse())
	}

	Success(w, http.StatusOK, map[string]interface{}{
		"users":  responses,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetUser handles GET /api/admin/users/{id}.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrInternal("failed to find user", err))
		return
	}
	if user == nil {
		Error(w, domain.ErrNotFound("user not found"))
		return
	}

	msgCount, tokens, err := h.messages.Stats(r.Context(), user.ID)
	if err != nil {
		Error(w, domain.ErrInternal("failed to load message stats", err))
		return
	}

	Success(w, http.StatusOK, map[string]interface{}{
		"user": user.ToResponse(),
		"chat": map[string]interface{}{
			"messages": msgCount,
			"tokens":   tokens,
		},
	})
}

// BanUser handles POST /api/admin/users/{id}/ban.
func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	userID := chi.URLParam(r, "id")
	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}
	if err := h.users.SetBanned(r.Context(), userID, true, reason); err != nil {
		Error(w, domain.ErrInternal("failed to ban user", err))
		return
	}

	Success(w, http.StatusOK, map[string]string{"message": "user banned"})
}

// UnbanUser handles POST /api/admin/users/{id}/unban.
func (h *AdminHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.SetBanned(r.Context(), chi.URLParam(r, "id"), false, nil); err != nil {
		Error(w, domain.ErrInternal("failed to unban user", err))
		return
	}

	Success(w, http.StatusOK, map[string]string{"message": "user unbanned"})
}

// ListSubscriptions handles GET /api/admin/subscriptions.
func (h *AdminHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	subs, total, err := h.subs.List(r.Context(), q.Get("status"), limit, offset)
	if err != nil {
		Error(w, domain.ErrInternal("failed to list subscriptions", err))
		return
	}

	Success(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

// ListAuditLogs handles GET /api/admin/audit-logs.
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	logs, total, err := h.audit.List(r.Context(), repository.AuditFilter{
		UserID: q.Get("userId"),
		Action: q.Get("action"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		Error(w, domain.ErrInternal("failed to list audit logs", err))
		return
	}

	Success(w, http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Analytics handles GET /api/admin/analytics.
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var totalUsers, trialing, expiredTrial, subscribed, banned int
	var messages, tokens int
	var newToday, activeToday int

	count := func(dest *int, query string) {
		if err := h.db.QueryRow(ctx, query).Scan(dest); err != nil {
			log.Warn().Err(err).Str("query", query).Msg("analytics count failed")
		}
	}

	count(&totalUsers, `SELECT COUNT(*) FROM users`)
	count(&trialing, `SELECT COUNT(*) FROM users WHERE trial_end > NOW() AND (subscription_status IS NULL OR subscription_status <> 'active')`)
	count(&expiredTrial, `SELECT COUNT(*) FROM users WHERE trial_end <= NOW() AND (subscription_status IS NULL OR subscription_status <> 'active')`)
	count(&subscribed, `SELECT COUNT(*) FROM users WHERE subscription_status = 'active'`)
	count(&banned, `SELECT COUNT(*) FROM users WHERE is_banned = TRUE`)
	count(&newToday, `SELECT COUNT(*) FROM users WHERE created_at >= CURRENT_DATE`)
	count(&activeToday, `SELECT COUNT(*) FROM users WHERE last_login_at >= CURRENT_DATE`)
	count(&messages, `SELECT COUNT(*) FROM messages`)
	count(&tokens, `SELECT COALESCE(SUM(tokens), 0) FROM messages`)

	// Monthly recurring revenue from active subscriptions; prices come from
	// the plan catalog, not the database.
	byPlan := map[string]int{}
	rows, err := h.db.Query(ctx, `SELECT plan, COUNT(*) FROM subscriptions WHERE status = 'active' GROUP BY plan`)
	if err != nil {
		log.Warn().Err(err).Msg("analytics revenue query failed")
	} else {
		defer rows.Close()
		for rows.Next() {
			var plan string
			var n int
			if err := rows.Scan(&plan, &n); err == nil {
				byPlan[plan] = n
			}
		}
	}
	revenueCents := 0
	for planID, n := range byPlan {
		if plan, ok := domain.PlanByID(planID); ok {
			revenueCents += n * plan.PriceCents
		}
	}

	Success(w, http.StatusOK, map[string]interface{}{
		"users": map[string]interface{}{
			"total":        totalUsers,
			"trialing":     trialing,
			"expiredTrial": expiredTrial,
			"subscribed":   subscribed,
			"banned":       banned,
			"newToday":     newToday,
			"activeToday":  activeToday,
		},
		"chat": map[string]interface{}{
			"messages": messages,
			"tokens":   tokens,
		},
		"revenue": map[string]interface{}{
			"monthlyCents": revenueCents,
			"byPlan":       byPlan,
		},
	})
}
