package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/fitdesk/fitdesk/internal/client/domain"
	organizationdomain "github.com/fitdesk/fitdesk/internal/organization/domain"
	trainerdomain "github.com/fitdesk/fitdesk/internal/trainer/domain"
	"github.com/gin-gonic/gin"
)

type createTrainerRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	UserID string `json:"user_id"`
}

type createClientRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	TrainerID string `json:"trainer_id"`
}

// @Summary      Create Trainer
// @Description  Register a trainer in the organization
// @Tags         trainers
// @Accept       json
// @Produce      json
// @Param        request body createTrainerRequest true "Create Trainer Request"
// @Success      200  {object}  trainerdomain.Trainer
// @Router       /orgs/{org_id}/trainers [post]
func (s *Server) CreateTrainer(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	if !organizationdomain.IsManagerRole(s.actorRole(c)) {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req createTrainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		AbortWithError(c, newValidationError("name", "invalid_name", "name is required"))
		return
	}
	userID, err := parseOptionalSnowflake(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	now := time.Now().UTC()
	trainer := trainerdomain.Trainer{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&trainer).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trainer})
}

// @Summary      List Trainers
// @Description  List trainers in the organization
// @Tags         trainers
// @Accept       json
// @Produce      json
// @Success      200  {object}  []trainerdomain.Trainer
// @Router       /orgs/{org_id}/trainers [get]
func (s *Server) ListTrainers(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	var trainers []trainerdomain.Trainer
	if err := s.db.WithContext(c.Request.Context()).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&trainers).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trainers})
}

// @Summary      Create Client
// @Description  Register a client in the organization
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        request body createClientRequest true "Create Client Request"
// @Success      200  {object}  clientdomain.Client
// @Router       /orgs/{org_id}/clients [post]
func (s *Server) CreateClient(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	if !organizationdomain.IsManagerRole(s.actorRole(c)) {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		AbortWithError(c, newValidationError("name", "invalid_name", "name is required"))
		return
	}
	trainerID, err := parseOptionalSnowflake(req.TrainerID)
	if err != nil {
		AbortWithError(c, newValidationError("trainer_id", "invalid_trainer_id", "invalid trainer id"))
		return
	}

	now := time.Now().UTC()
	client := clientdomain.Client{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		TrainerID: trainerID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&client).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": client})
}

// @Summary      List Clients
// @Description  List clients in the organization
// @Tags         clients
// @Accept       json
// @Produce      json
// @Success      200  {object}  []clientdomain.Client
// @Router       /orgs/{org_id}/clients [get]
func (s *Server) ListClients(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	var clients []clientdomain.Client
	if err := s.db.WithContext(c.Request.Context()).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&clients).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": clients})
}

func parseOptionalSnowflake(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return snowflake.ParseString(raw)
}
