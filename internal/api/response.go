package api

import (
	"errors"
	"net/http"

	"comanda/internal/faults"

	"github.com/gin-gonic/gin"
)

// writeError translates a service error into the wire contract:
// business-rule violations are 400 with a machine-readable code,
// unknown resources are 404, anything else is a 500.
func writeError(c *gin.Context, err error) {
	code := faults.CodeOf(err)

	status := http.StatusBadRequest
	switch code {
	case faults.CodeNotFound:
		status = http.StatusNotFound
	case faults.CodeInternal:
		status = http.StatusInternalServerError
	}

	body := gin.H{"code": code, "error": err.Error()}

	var insufficient *faults.InsufficientStockError
	if errors.As(err, &insufficient) {
		body["item"] = insufficient.Item
		body["deficiencies"] = insufficient.Deficiencies
	}
	var transition *faults.IllegalTransitionError
	if errors.As(err, &transition) {
		body["from"] = transition.From
		body["attempted"] = transition.Attempted
	}

	c.JSON(status, body)
}

// withWarning attaches a best-effort sync warning to an otherwise
// successful payload.
func withWarning(payload gin.H, warning string) gin.H {
	if warning != "" {
		payload["warning"] = warning
	}
	return payload
}
