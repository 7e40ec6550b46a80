package trust

import (
	"fmt"

	"go.uber.org/zap"

	"govfed/pkg/canonical"
	"govfed/pkg/types"
)

// SignAgreement canonicalizes the agreement with its signature map cleared,
// computes a MAC with the signer's key, and stores it under the signer's
// org id in the agreement's signature map.
func (p *Protocol) SignAgreement(agreement *types.FederationAgreement, signer *types.OrganizationIdentity) error {
	signature, err := canonical.Sign(signer.SigningKey, signableAgreement(agreement))
	if err != nil {
		return fmt.Errorf("failed to sign agreement %s: %w", agreement.AgreementID, err)
	}

	if agreement.Signatures == nil {
		agreement.Signatures = make(map[string]string)
	}
	agreement.Signatures[signer.OrgID] = signature

	p.logger.Info("Agreement signed",
		zap.String("agreement_id", agreement.AgreementID),
		zap.String("signer_org_id", signer.OrgID))

	return nil
}

// VerifyAgreementSignature recomputes the canonical MAC with the claimed
// signer's key and compares it against the stored signature. A valid
// signature from a remote organization completes the handshake for that
// relationship.
func (p *Protocol) VerifyAgreementSignature(agreement *types.FederationAgreement, signer *types.OrganizationIdentity) (bool, error) {
	signature, ok := agreement.Signatures[signer.OrgID]
	if !ok {
		return false, fmt.Errorf("agreement %s carries no signature from %s", agreement.AgreementID, signer.OrgID)
	}

	valid, err := canonical.Verify(signer.SigningKey, signableAgreement(agreement), signature)
	if err != nil {
		return false, fmt.Errorf("failed to verify agreement %s signature: %w", agreement.AgreementID, err)
	}
	if !valid {
		p.mu.Lock()
		p.resetLocked(signer.OrgID)
		p.mu.Unlock()
		return false, nil
	}

	if signer.OrgID != p.local.OrgID {
		p.mu.Lock()
		p.states[signer.OrgID] = StateAgreementSigned
		p.mu.Unlock()
		signer.TrustLevel = types.TrustFull
	}

	return true, nil
}

// signableAgreement returns a copy of the agreement with the signature map
// cleared, the exact record both signer and verifier canonicalize.
func signableAgreement(agreement *types.FederationAgreement) *types.FederationAgreement {
	clone := agreement.Clone()
	clone.Signatures = map[string]string{}
	return clone
}
