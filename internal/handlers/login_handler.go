package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, err)
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("username = ?", input.Username).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(c, apperrors.Internal(err, "load user"))
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "unauthenticated"})
		return
	}

	// This compares the input "password" with the "hash" from DB
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "unauthenticated"})
		return
	}

	token, err := h.Tokens.GenerateToken(user.ID, user.Role, user.BranchID)
	if err != nil {
		h.fail(c, apperrors.Internal(err, "sign token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"role":      user.Role,
		"username":  user.Username,
		"branch_id": user.BranchID,
	})
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
	BranchID *uint  `json:"branch_id"`
}

// Register is only routed when ALLOW_REGISTRATION is set.
func (h *Handler) Register(c *gin.Context) {
	var input RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, err)
		return
	}

	if input.Role == "" {
		input.Role = scope.RoleStaff
	}
	if !scope.ValidRole(input.Role) {
		h.fail(c, apperrors.Validation("unknown role %q", input.Role))
		return
	}
	if input.Role == scope.RoleAdmin {
		input.BranchID = nil
	} else if input.BranchID == nil {
		h.fail(c, apperrors.Validation("branch_id is required for role %s", input.Role))
		return
	}

	ctx := c.Request.Context()
	if input.BranchID != nil {
		var branch models.Branch
		if err := h.DB.WithContext(ctx).First(&branch, *input.BranchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				h.fail(c, apperrors.NotFound("branch %d not found", *input.BranchID))
				return
			}
			h.fail(c, apperrors.Internal(err, "load branch"))
			return
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		h.fail(c, apperrors.Internal(err, "hash password"))
		return
	}

	user := models.User{
		Username:     strings.TrimSpace(input.Username),
		PasswordHash: string(hashedPassword),
		Role:         input.Role,
		BranchID:     input.BranchID,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			h.fail(c, apperrors.Conflict("username %s is taken", user.Username))
			return
		}
		h.fail(c, apperrors.Internal(err, "create user"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully!", "id": user.ID})
}
