package authorization

import (
	"context"
	"strings"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	organizationdomain "github.com/fitdesk/fitdesk/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// actorSystem bypasses enforcement for internal jobs.
const actorSystem = "system"

const casbinModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// rolePolicies maps roles to the object/action grants enforced on every
// request. Membership roles are org-scoped, so the policy table itself
// stays org-free.
var rolePolicies = [][3]string{
	{organizationdomain.RoleOwner, ObjectPackage, ActionPackageCreate},
	{organizationdomain.RoleOwner, ObjectPackage, ActionPackageDeactivate},
	{organizationdomain.RoleOwner, ObjectPayment, ActionPaymentRecord},
	{organizationdomain.RoleOwner, ObjectPayment, ActionPaymentUpdate},
	{organizationdomain.RoleOwner, ObjectPayment, ActionPaymentDelete},
	{organizationdomain.RoleOwner, ObjectSession, ActionSessionLog},
	{organizationdomain.RoleOwner, ObjectSession, ActionSessionCancel},
	{organizationdomain.RoleOwner, ObjectSession, ActionSessionValidate},
	{organizationdomain.RoleOwner, ObjectCommissionConfig, ActionCommissionRead},
	{organizationdomain.RoleOwner, ObjectCommissionConfig, ActionCommissionConfigure},
	{organizationdomain.RoleOwner, ObjectStatement, ActionStatementResolve},

	{organizationdomain.RoleTrainer, ObjectSession, ActionSessionLog},
	{organizationdomain.RoleTrainer, ObjectSession, ActionSessionCancel},
	{organizationdomain.RoleTrainer, ObjectCommissionConfig, ActionCommissionRead},
	{organizationdomain.RoleTrainer, ObjectStatement, ActionStatementResolve},
}

// NewEnforcer builds a casbin enforcer persisted in the casbin_rule table
// and seeds the role grants. Owner grants fan out to the other manager
// roles, which share the same capability set.
func NewEnforcer(db *gorm.DB) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	model, err := casbinmodel.NewModelFromString(casbinModel)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewEnforcer(model, adapter)
	if err != nil {
		return nil, err
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	for _, policy := range rolePolicies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return nil, err
		}
		if policy[0] != organizationdomain.RoleOwner {
			continue
		}
		for _, role := range []string{
			organizationdomain.RoleAdmin,
			organizationdomain.RolePTManager,
			organizationdomain.RoleClubManager,
		} {
			if _, err := enforcer.AddPolicy(role, policy[1], policy[2]); err != nil {
				return nil, err
			}
		}
	}
	return enforcer, nil
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.Enforcer
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.Enforcer
}

func NewService(p ServiceParam) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize resolves the actor's membership role within the organization
// and checks the role's grant for the object/action pair. The system actor
// is always allowed.
func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	if actor == actorSystem {
		return nil
	}
	if strings.TrimSpace(orgID) == "" {
		return ErrInvalidOrganization
	}
	if strings.TrimSpace(object) == "" {
		return ErrInvalidObject
	}
	if strings.TrimSpace(action) == "" {
		return ErrInvalidAction
	}

	userID, ok := strings.CutPrefix(actor, "user:")
	if !ok || strings.TrimSpace(userID) == "" {
		return ErrInvalidActor
	}

	var role string
	err := s.db.WithContext(ctx).Raw(
		`SELECT role FROM organization_members WHERE org_id = ? AND user_id = ?`,
		orgID, strings.TrimSpace(userID),
	).Scan(&role).Error
	if err != nil {
		return err
	}
	if role == "" {
		return ErrForbidden
	}

	allowed, err := s.enforcer.Enforce(role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("actor", actor),
			zap.String("org_id", orgID),
			zap.String("object", object),
			zap.String("action", action),
			zap.String("role", role),
		)
		return ErrForbidden
	}
	return nil
}
