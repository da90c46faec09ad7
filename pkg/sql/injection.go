package sql

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/apperrors"
)

// InjectionError reports a parameter value that tripped libinjection's SQLi
// heuristics. The fingerprint identifies the matched attack pattern.
type InjectionError struct {
	Param       string
	Fingerprint string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("parameter %q contains a suspected SQL injection pattern", e.Param)
}

func (e *InjectionError) Unwrap() error { return apperrors.ErrValidation }

// ScreenParameterValues runs libinjection's SQLi heuristics over each
// user-supplied parameter value before the values are bound into a
// statement. Keys are parameter names, used only for error reporting.
func ScreenParameterValues(values map[string]string) error {
	for name, value := range values {
		if value == "" {
			continue
		}
		if isInjection, fingerprint := libinjection.IsSQLi(value); isInjection {
			return &InjectionError{Param: name, Fingerprint: fingerprint}
		}
	}
	return nil
}
