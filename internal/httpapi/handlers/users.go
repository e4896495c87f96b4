package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-workflow/internal/auth"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/httpapi/middleware"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"github.com/suPer8Hu/llm-workflow/internal/org"
)

type createUserReq struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) issueToken(c *gin.Context, user *models.User) {
	token, _, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, h.Cfg.AccessTokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	common.OK(c, gin.H{
		"user":       user,
		"token":      token,
		"token_type": "bearer",
	})
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserReq
	if !bindJSON(c, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}
	user, err := h.Orgs.CreateUser(c.Request.Context(), org.NewUser{
		Email:          req.Email,
		Name:           req.Name,
		HashedPassword: hash,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	h.issueToken(c, user)
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.Orgs.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			common.Fail(c, http.StatusUnauthorized, 40104, "invalid email or password")
			return
		}
		failErr(c, err)
		return
	}
	// users from an external provider, or without a password, cannot log in here
	if user.IsExternal() || user.HashedPassword == nil {
		common.Fail(c, http.StatusUnauthorized, 40104, "invalid email or password")
		return
	}
	if err := auth.CheckPassword(*user.HashedPassword, req.Password); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			log.Printf("[Login] check password user_id=%s err=%v", user.ID, err)
		}
		common.Fail(c, http.StatusUnauthorized, 40104, "invalid email or password")
		return
	}
	h.issueToken(c, user)
}

// revokeCaller revokes the token the request was authenticated with. On
// failure the error envelope is already written.
func (h *Handler) revokeCaller(c *gin.Context, op string) bool {
	v, _ := c.Get(middleware.ClaimsKey)
	claims, ok := v.(*auth.Claims)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return false
	}
	if h.Tokens != nil {
		if err := h.Tokens.RevokeToken(c.Request.Context(), claims.ID, claims.Remaining()); err != nil {
			log.Printf("[%s] revoke %s err=%v", op, claims, err)
			common.Fail(c, http.StatusServiceUnavailable, 50301, "token store unavailable")
			return false
		}
	}
	return true
}

func (h *Handler) Logout(c *gin.Context) {
	if !h.revokeCaller(c, "Logout") {
		return
	}
	common.OK(c, gin.H{"revoked": h.Tokens != nil})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	user, err := h.Orgs.GetUser(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, user)
}

type renameReq struct {
	Name string `json:"name"`
}

func (h *Handler) UpdateMe(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	var req renameReq
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.Orgs.RenameUser(c.Request.Context(), uid, req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, user)
}

// DeleteMe removes the caller's account. Teams, prompts and sessions they
// own are kept with the owner cleared. The token is revoked first so a token
// store outage leaves the account in place.
func (h *Handler) DeleteMe(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if !h.revokeCaller(c, "DeleteMe") {
		return
	}
	if err := h.Orgs.DeleteUser(c.Request.Context(), uid); err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": uid, "revoked": h.Tokens != nil})
}
