package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	app_errors "openchat/assistant/internal/errors"
)

func TestKind(t *testing.T) {
	cases := map[string]error{
		"":              nil,
		"configuration": fmt.Errorf("%w: no current account", app_errors.ErrConfiguration),
		"transport":     fmt.Errorf("%w: connection reset", app_errors.ErrTransport),
		"persistence":   fmt.Errorf("%w: disk full", app_errors.ErrPersistence),
		"validation":    app_errors.ErrValidation,
		"not_found":     app_errors.ErrNotFound,
		"conflict":      app_errors.ErrConflict,
		"permission":    app_errors.ErrPermission,
		"busy":          app_errors.ErrBusy,
		"internal":      errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, app_errors.Kind(err), "kind of %v", err)
	}
}
