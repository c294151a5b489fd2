package validators

import (
	"net/http"
	"strings"

	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
)

func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	switch strings.ToLower(raw) {
	case "":
		return defaultVal, nil
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be boolean").WithDetails(map[string]any{"field": key})
}
