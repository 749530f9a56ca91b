package providers

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	clierr "github.com/ggonzalez94/swap-router/internal/errors"
	"github.com/ggonzalez94/swap-router/internal/httpx"
	"github.com/ggonzalez94/swap-router/internal/model"
)

// MessageExtractor pulls the venue's human readable message out of an error body.
type MessageExtractor func(body []byte) string

// ClassifyUpstream rewrites an httpx failure into a provider error carrying
// the venue's message and the matching error kind. Errors without a response
// body keep their code and are tagged UNKNOWN.
func ClassifyUpstream(provider model.ProviderID, err error, phrases []string, extract MessageExtractor) error {
	if err == nil {
		return nil
	}
	cliErr, ok := clierr.As(err)
	if !ok {
		return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("%s request failed", provider), err).WithKind(clierr.KindUnknown)
	}
	msg := ""
	if _, body, has := httpx.ResponseBody(err); has && extract != nil {
		msg = strings.TrimSpace(extract(body))
	}
	if msg == "" {
		return cliErr.WithKind(clierr.KindOf(cliErr))
	}
	return &clierr.Error{
		Code:    cliErr.Code,
		Kind:    clierr.ClassifyMessage(msg, phrases),
		Message: fmt.Sprintf("%s: %s", provider, msg),
		Cause:   cliErr,
	}
}

// VenueError builds a provider error from a message returned inside a 2xx body.
func VenueError(provider model.ProviderID, msg string, phrases []string) error {
	return &clierr.Error{
		Code:    clierr.CodeProvider,
		Kind:    clierr.ClassifyMessage(msg, phrases),
		Message: fmt.Sprintf("%s: %s", provider, msg),
	}
}

// NewRouteID returns prefix followed by 12 random hex characters.
func NewRouteID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
