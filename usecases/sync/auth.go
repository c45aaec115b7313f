package sync

import (
	"context"
	"log"

	"gitpulse/core"
	"gitpulse/models"
)

// resolveCredential walks the ordered credential fallback chain for one
// repository: installation token first, OAuth credential second.
//
// The fallback fires ONLY on InstallationDeactivated. A merely expired
// installation token is refreshed inside GetAccessToken and must never cause
// a silent switch to OAuth; any other error propagates unchanged.
func (u *SyncUseCase) resolveCredential(
	ctx context.Context,
	repo *models.TrackedRepository,
) (*models.ResolvedCredential, error) {
	if repo.InstallationID != nil {
		token, err := u.installationsService.GetAccessToken(ctx, *repo.InstallationID)
		if err == nil {
			return &models.ResolvedCredential{
				Token:  token,
				Source: models.CredentialSourceInstallation,
			}, nil
		}
		if !core.IsInstallationDeactivated(err) {
			return nil, err
		}
		log.Printf("⚠️ Installation auth unavailable for %s, trying oauth fallback: %v", repo.FullName, err)
	}

	if repo.OAuthCredentialID != nil {
		maybeCred, err := u.credentialsService.GetOAuthCredentialByID(ctx, *repo.OAuthCredentialID)
		if err != nil {
			return nil, err
		}
		if maybeCred.IsPresent() {
			credential := maybeCred.MustGet()
			if !credential.IsRevoked {
				return &models.ResolvedCredential{
					Token:  credential.AccessToken,
					Source: models.CredentialSourceOAuth,
				}, nil
			}
			log.Printf("⚠️ OAuth credential %s for %s is revoked", credential.ID, repo.FullName)
		}
	}

	return nil, &core.NoUsableCredentialError{RepoFullName: repo.FullName}
}
