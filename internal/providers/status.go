package providers

import (
	"strings"

	"github.com/ggonzalez94/swap-router/internal/model"
)

// StatusTable maps a venue's exact status vocabulary. Unmapped values are PENDING.
type StatusTable map[string]model.SwapStatus

func (t StatusTable) Map(raw string) model.SwapStatus {
	if s, ok := t[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return model.SwapStatusPending
}
