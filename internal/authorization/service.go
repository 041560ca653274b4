// Package authorization enforces role-based access to financial records.
package authorization

import "context"

// Objects and actions guarded by the enforcer. Payment and commission
// mutations are manager-only; trainers may log their own sessions and
// resolve their own statements.
const (
	ObjectPackage          = "package"
	ObjectPayment          = "payment"
	ObjectSession          = "session"
	ObjectCommissionConfig = "commission_config"
	ObjectStatement        = "statement"

	ActionPackageCreate     = "package.create"
	ActionPackageDeactivate = "package.deactivate"

	ActionPaymentRecord = "payment.record"
	ActionPaymentUpdate = "payment.update"
	ActionPaymentDelete = "payment.delete"

	ActionSessionLog      = "session.log"
	ActionSessionCancel   = "session.cancel"
	ActionSessionValidate = "session.validate"

	ActionCommissionRead      = "commission.read"
	ActionCommissionConfigure = "commission.configure"

	ActionStatementResolve = "statement.resolve"
)

type Service interface {
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
}
