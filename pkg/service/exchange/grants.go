package exchange

import (
	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/pkg/service/common"
)

// DeriveGrants maps verified credentials to the capability set they prove.
// It is pure and total: there is no failure path, and a claim that proves
// nothing simply contributes nothing to the output.
//
// Ceilings are copied verbatim from the signed approval authority claim. When
// several such credentials are presented, the grant keeps the largest proven
// ceiling. If the challenge declared an intended action, the result is
// narrowed to that action regardless of how much broader the proven authority
// is.
func DeriveGrants(credentials []credential.Credential, intent common.Action) common.GrantSet {
	grants := make(common.GrantSet)
	for _, cred := range credentials {
		switch claims := cred.Claims.(type) {
		case credential.EmploymentClaims:
			grants[common.ActionView] = common.Grant{Action: common.ActionView}
			grants[common.ActionSubmit] = common.Grant{Action: common.ActionSubmit}
		case credential.ApprovalAuthorityClaims:
			if claims.ApprovalCeiling <= 0 {
				continue
			}
			if existing, ok := grants[common.ActionApprove]; !ok || claims.ApprovalCeiling > existing.Ceiling {
				grants[common.ActionApprove] = common.Grant{
					Action:  common.ActionApprove,
					Ceiling: claims.ApprovalCeiling,
				}
			}
		default:
			// unknown claim kinds verify fine but grant nothing
		}
	}

	if intent == "" {
		return grants
	}
	narrowed := make(common.GrantSet)
	if grant, ok := grants[intent]; ok {
		narrowed[intent] = grant
	}
	return narrowed
}
