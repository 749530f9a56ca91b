package policy

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
)

func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		if normalize(allowed) == normPath {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command blocked by --enable-commands policy")
}

// ProviderAllowed reports whether provider passes the --enable-providers
// allowlist. An empty allowlist allows everything.
func ProviderAllowed(allowlist []string, provider string) bool {
	if len(allowlist) == 0 {
		return true
	}
	p := normalize(provider)
	for _, allowed := range allowlist {
		if normalize(allowed) == p {
			return true
		}
	}
	return false
}

func CheckProviderAllowed(allowlist []string, provider string) error {
	if ProviderAllowed(allowlist, provider) {
		return nil
	}
	return clierr.New(clierr.CodeBlocked, fmt.Sprintf("provider %s blocked by --enable-providers policy", provider))
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
