package integration

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldlink/internal/accounts"
	"fieldlink/internal/appauth"
	"fieldlink/internal/credentials"
	"fieldlink/internal/oauth"
)

// Handlers exposes the facade over HTTP. Keep these thin: parse/validate
// input, call the facade, translate errors. Vendor error bodies never reach
// the response; they are already logged with full detail.

type Handlers struct {
	Facade        *Facade
	WebhookSecret string
}

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

// Connect starts the authorization flow for the caller's tenant.
//
// POST /v1/integrations/:provider/connect
func (h Handlers) Connect(c *gin.Context) {
	tenantID, err := appauth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	userID, _ := appauth.UserID(c.Request.Context())

	url, err := h.Facade.GenerateAuthURL(c.Request.Context(), tenantID, userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not start authorization"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Callback is the public OAuth redirect target. The tenant is identified by
// the signed state, not by a session.
//
// GET /oauth/callback?code=...&state=...
func (h Handlers) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "code and state required"})
		return
	}

	decoded, err := h.Facade.deps.States.Decode(state)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}

	acct, err := h.Facade.CompleteAuthorization(c.Request.Context(), decoded.TenantID, code, state)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": acct.Status})
	case errors.Is(err, oauth.ErrInvalidState):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
	default:
		var exchangeErr *oauth.TokenExchangeError
		if errors.As(err, &exchangeErr) {
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "authorization exchange failed"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authorization failed"})
	}
}

// Status reports the tenant's connection state.
//
// GET /v1/integrations/:provider
func (h Handlers) Status(c *gin.Context) {
	tenantID, err := appauth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	acct, err := h.Facade.Account(c.Request.Context(), tenantID)
	if errors.Is(err, accounts.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"status": "not_connected"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	authenticated, err := h.Facade.IsAuthenticated(c.Request.Context(), tenantID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        acct.Status,
		"authenticated": authenticated,
		"vendor_user":   acct.DisplayName,
		"last_sync_at":  acct.LastSyncAt,
	})
}

// Disconnect severs the tenant's vendor connection.
//
// DELETE /v1/integrations/:provider
func (h Handlers) Disconnect(c *gin.Context) {
	tenantID, err := appauth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	userID, _ := appauth.UserID(c.Request.Context())

	if err := h.Facade.Disconnect(c.Request.Context(), tenantID, userID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "disconnect failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

// Calls lists normalized calls, fetching from the vendor first.
//
// GET /v1/calls
func (h Handlers) Calls(c *gin.Context) {
	tenantID, err := appauth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	records, err := h.Facade.ListCalls(c.Request.Context(), tenantID)
	if err != nil {
		h.writeVendorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": records})
}

// Messages lists normalized messages.
//
// GET /v1/messages
func (h Handlers) Messages(c *gin.Context) {
	tenantID, err := appauth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	records, err := h.Facade.ListMessages(c.Request.Context(), tenantID)
	if err != nil {
		h.writeVendorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": records})
}

type sendMessageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendMessage sends an outbound message through the vendor.
//
// POST /v1/messages/send
func (h Handlers) SendMessage(c *gin.Context) {
	tenantID, err := appauth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.To == "" || req.Body == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to and body required"})
		return
	}

	id, err := h.Facade.SendMessage(c.Request.Context(), tenantID, req.To, req.Body)
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "vendor account not connected"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "send failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// SyncNow triggers a manual sync for the caller's tenant.
//
// POST /v1/sync
func (h Handlers) SyncNow(c *gin.Context) {
	tenantID, err := appauth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	result, err := h.Facade.Sync(c.Request.Context(), tenantID, TriggerManual)
	if err != nil {
		h.writeVendorError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleInboundEvent accepts signed vendor webhooks. The signature is
// verified over the raw body before any parsing happens.
//
// POST /webhooks/vendor/events
func (h Handlers) HandleInboundEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !VerifySignature(h.WebhookSecret, body, c.GetHeader(SignatureHeader)) {
		h.Facade.auditBestEffort(c.Request.Context(), func() error {
			return h.Facade.deps.Audit.LogWebhookRejected(c.Request.Context(), "unknown",
				h.Facade.provider(), c.ClientIP(), "bad signature")
		})
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	result, err := h.Facade.IngestEvent(c.Request.Context(), body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "event rejected"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h Handlers) writeVendorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, oauth.ErrRefreshRejected):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "vendor authorization expired, reconnect required"})
	case errors.Is(err, credentials.ErrNotFound), errors.Is(err, oauth.ErrNoRefreshToken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "vendor account not connected"})
	default:
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "vendor request failed"})
	}
}
