package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	subjectContextKey   = "snippets_subject"
	requestIDContextKey = "snippets_request_id"
	requestIDHeader     = "X-Request-ID"
	accessTokenQuery    = "access_token"

	defaultHeartbeatInterval = 25 * time.Second
	maxImportBytes           = 10 << 20
)

var (
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingPasswordChecker = errors.New("password checker dependency required")
	errMissingLibraryService  = errors.New("library service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

const (
	codeMissingToken    = "auth.missing_token"
	codeInvalidToken    = "auth.invalid_token"
	codeInvalidPassword = "auth.invalid_password"
)

type TokenManager interface {
	IssueToken(subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

type PasswordChecker interface {
	Verify(password string) error
}

// Dependencies wires the HTTP surface. Cache is optional; when nil every read
// goes to the service.
type Dependencies struct {
	TokenManager       TokenManager
	Passwords          PasswordChecker
	Library            *library.Service
	Cache              *library.Cache
	Logger             *zap.Logger
	CORSAllowedOrigins []string
	HeartbeatInterval  time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Passwords == nil {
		return nil, errMissingPasswordChecker
	}
	if deps.Library == nil {
		return nil, errMissingLibraryService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware(deps.CORSAllowedOrigins))

	handler := &httpHandler{
		tokens:    deps.TokenManager,
		passwords: deps.Passwords,
		library:   deps.Library,
		cache:     deps.Cache,
		logger:    logger,
		heartbeat: heartbeat,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/api/login", handler.handleLogin)

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)

	api.GET("/components", handler.handleListComponents)
	api.POST("/components", handler.handleCreateComponent)
	api.GET("/components/:id", handler.handleGetComponent)
	api.PUT("/components/:id", handler.handleUpdateComponent)
	api.DELETE("/components/:id", handler.handleDeleteComponent)
	api.POST("/components/:id/favorite", handler.handleToggleFavorite)
	api.GET("/components/:id/export", handler.handleExportComponent)
	api.GET("/versions", handler.handleListVersions)

	api.GET("/trash", handler.handleListTrash)
	api.DELETE("/trash", handler.handlePurgeTrash)
	api.POST("/trash/:id", handler.handleRestoreComponent)
	api.DELETE("/trash/:id", handler.handlePurgeTrashEntry)

	api.GET("/templates", handler.handleListTemplates)
	api.POST("/templates", handler.handleCreateTemplate)
	api.GET("/templates/:id", handler.handleGetTemplate)
	api.PUT("/templates/:id", handler.handleUpdateTemplate)
	api.DELETE("/templates/:id", handler.handleDeleteTemplate)
	api.GET("/templates/:id/html", handler.handleRenderTemplate)

	api.GET("/folders", handler.handleListFolders)
	api.PUT("/folders", handler.handleReplaceFolders)

	api.GET("/export", handler.handleExport)
	api.POST("/import", handler.handleImport)

	api.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	tokens    TokenManager
	passwords PasswordChecker
	library   *library.Service
	cache     *library.Cache
	logger    *zap.Logger
	heartbeat time.Duration
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

// requestIDMiddleware echoes a caller supplied request id or assigns a new one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

type loginRequestPayload struct {
	Password string `json:"password"`
}

type loginResponsePayload struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	TokenType string `json:"token_type"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponsePayload{
			Error:   library.ErrValidation.Error(),
			Code:    "auth.invalid_request",
			Message: "password is required",
		})
		return
	}

	if err := h.passwords.Verify(request.Password); err != nil {
		h.logger.Warn("login rejected",
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err))
		respondUnauthorized(c, codeInvalidPassword, "invalid password")
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(auth.LibrarySubject)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponsePayload{
			Error:   "internal",
			Code:    "auth.token_issue_failed",
			Message: "internal error",
		})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		Token:     token,
		ExpiresIn: expiresIn,
		TokenType: "Bearer",
	})
}

// authorizeRequest accepts a bearer header. EventSource cannot set headers, so
// the event stream also accepts the token as a query parameter.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, ok := requestToken(c)
	if !ok {
		respondUnauthorized(c, codeMissingToken, errInvalidAuthorization.Error())
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err),
		}
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", fields...)
		} else {
			h.logger.Warn("token validation failed", fields...)
		}
		respondUnauthorized(c, codeInvalidToken, "invalid or expired token")
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}

func requestToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		return token, token != ""
	}
	if header == "" && strings.HasSuffix(c.Request.URL.Path, "/events") {
		token := strings.TrimSpace(c.Query(accessTokenQuery))
		return token, token != ""
	}
	return "", false
}
