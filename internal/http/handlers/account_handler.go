// Account HTTP handlers: beneficiary status and the notification inbox.
//
//   - GET   /beneficiaries/{cpf}
//   - GET   /notifications
//   - GET   /notifications/unread-count
//   - PATCH /notifications/{id}/read
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/telemed-orchestrator/internal/services"
	"github.com/tbourn/telemed-orchestrator/internal/utils"
)

const maxNotificationLimit = 100

// inboxStats is implemented by inboxes that can fingerprint a user's
// notifications for ETag generation.
type inboxStats interface {
	Stats(ctx context.Context, userID string) (count int64, maxUpdatedAt *time.Time, err error)
}

// UnreadCountResponse is the payload of GET /notifications/unread-count.
type UnreadCountResponse struct {
	Unread int64 `json:"unread" example:"3"`
}

// GetBeneficiary godoc
// @ID          getBeneficiary
// @Summary     Beneficiary status by CPF
// @Description Resolves the caller's beneficiary registered for a CPF (punctuation ignored) and whether it has an active plan. Other users' beneficiaries answer 404.
// @Tags        Beneficiaries
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       cpf            path    string  true  "CPF, 11 digits"  example(12345678909)
//
// @Success     200  {object}  services.BeneficiaryStatus
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid CPF"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "No beneficiary"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /beneficiaries/{cpf} [get]
func (h *Handlers) GetBeneficiary(c *gin.Context) {
	if h.benef == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	st, err := h.benef.CheckActive(c.Request.Context(), c.Param("cpf"))
	switch {
	case err != nil:
		failErr(c, err, ErrCodeInternal, "Erro ao buscar beneficiário")
		return
	case st == nil || st.Beneficiary == nil || st.Beneficiary.UserID != uid:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Beneficiário não encontrado")
		return
	}
	ok(c, http.StatusOK, st)
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List my notifications
// @Tags        Notifications
// @Produce     json
//
// @Param       Authorization  header  string  true   "Bearer token"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       limit          query   int     false  "Max items"  minimum(1) maximum(100) default(20)
//
// @Success     200  {array}   domain.SystemNotification
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	if h.inbox == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	limit := utils.QueryLimit(c.Query("limit"), services.DefaultNotificationLimit, maxNotificationLimit)
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if st, ok := h.inbox.(inboxStats); ok {
		if count, maxTS, err := st.Stats(ctx, uid); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"notifications:%s:%d:%d:%d"`, uid, count, ts, limit)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	list, err := h.inbox.List(ctx, uid, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Erro ao buscar notificações")
		return
	}
	ok(c, http.StatusOK, list)
}

// UnreadNotifications godoc
// @ID          unreadNotifications
// @Summary     Count my unread notifications
// @Tags        Notifications
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
//
// @Success     200  {object}  handlers.UnreadCountResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /notifications/unread-count [get]
func (h *Handlers) UnreadNotifications(c *gin.Context) {
	if h.inbox == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	n, err := h.inbox.UnreadCount(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Erro ao buscar notificações")
		return
	}
	ok(c, http.StatusOK, UnreadCountResponse{Unread: n})
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification as read
// @Tags        Notifications
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       id             path    string  true  "Notification ID"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /notifications/{id}/read [patch]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if h.inbox == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	err := h.inbox.MarkRead(c.Request.Context(), uid, c.Param("id"))
	switch {
	case errors.Is(err, services.ErrNotificationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Notificação não encontrada")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Erro ao atualizar notificação")
	default:
		noContent(c)
	}
}
