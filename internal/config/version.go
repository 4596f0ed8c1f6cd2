package config

// Version is the tenantseal binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/tenantseal/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
