package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	commissiondomain "github.com/fitdesk/fitdesk/internal/commission/domain"
	organizationdomain "github.com/fitdesk/fitdesk/internal/organization/domain"
	"github.com/gin-gonic/gin"
)

// @Summary      Get Commission Configuration
// @Description  Resolve the effective commission tier table for the organization
// @Tags         commission
// @Accept       json
// @Produce      json
// @Success      200  {object}  commissiondomain.EffectiveConfig
// @Router       /orgs/{org_id}/commission/config [get]
func (s *Server) GetCommissionConfig(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	resp, err := s.commissionSvc.GetEffectiveConfig(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Set Commission Configuration
// @Description  Replace the organization's commission method and tier table
// @Tags         commission
// @Accept       json
// @Produce      json
// @Param        request body commissiondomain.SetConfigRequest true "Set Commission Config Request"
// @Success      200  {object}  commissiondomain.EffectiveConfig
// @Router       /orgs/{org_id}/commission/config [put]
func (s *Server) SetCommissionConfig(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	var req commissiondomain.SetConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.commissionSvc.SetConfig(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Resolve Commission Statement
// @Description  Settle a trainer's commission for a period from validated sessions
// @Tags         commission
// @Accept       json
// @Produce      json
// @Param        request body commissiondomain.StatementRequest true "Statement Request"
// @Success      200  {object}  commissiondomain.Statement
// @Router       /orgs/{org_id}/commission/statements [post]
func (s *Server) ResolveCommissionStatement(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	var req commissiondomain.StatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TrainerID = strings.TrimSpace(req.TrainerID)

	// Trainers may only settle their own statement.
	if s.actorRole(c) == organizationdomain.RoleTrainer {
		ownsTrainer, err := s.actorOwnsTrainer(c, orgID, req.TrainerID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !ownsTrainer {
			AbortWithError(c, ErrForbidden)
			return
		}
	}

	resp, err := s.commissionSvc.ResolveStatement(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) actorOwnsTrainer(c *gin.Context, orgID snowflake.ID, trainerID string) (bool, error) {
	userID, ok := s.userIDFromRequest(c)
	if !ok {
		return false, ErrUnauthorized
	}
	var ownerUserID snowflake.ID
	if err := s.db.WithContext(c.Request.Context()).Raw(
		`SELECT user_id FROM trainers WHERE org_id = ? AND id = ?`,
		orgID, strings.TrimSpace(trainerID),
	).Scan(&ownerUserID).Error; err != nil {
		return false, err
	}
	return ownerUserID != 0 && ownerUserID == userID, nil
}

func isCommissionValidationError(err error) bool {
	switch err {
	case commissiondomain.ErrInvalidOrganization,
		commissiondomain.ErrInvalidMethod,
		commissiondomain.ErrInvalidApplication,
		commissiondomain.ErrInvalidTrigger,
		commissiondomain.ErrInvalidTrainer,
		commissiondomain.ErrInvalidPeriod,
		commissiondomain.ErrInvalidSessionValue,
		commissiondomain.ErrNoTiers,
		commissiondomain.ErrTierOrder,
		commissiondomain.ErrTierRate:
		return true
	default:
		return false
	}
}
