package crypto

import (
	"fmt"

	"github.com/persistorai/tenantseal/internal/config"
)

// NewProvider returns the key provider selected by cfg.EncryptionProvider.
func NewProvider(cfg *config.Config) (KeyProvider, error) {
	switch cfg.EncryptionProvider {
	case config.ProviderEnv:
		return NewKeyRingFromConfig(cfg), nil
	case config.ProviderVault:
		return NewVaultProvider(cfg.VaultAddr, cfg.VaultToken, cfg.VaultKeyPath, cfg.ActiveKeyVersion), nil
	default:
		return nil, fmt.Errorf("crypto: unknown encryption provider %q", cfg.EncryptionProvider)
	}
}
