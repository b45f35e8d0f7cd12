package httpx

import (
	"errors"
	"net/http"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var (
		ve  *shared.ValidationError
		ise *shared.InsufficientStockError
		ioe *shared.InvalidOperationError
		re  *shared.ReferentialError
	)
	switch {
	case errors.As(err, &ve):
		Problem(w, http.StatusBadRequest, "Validation Failed", ve.Error())
	case errors.As(err, &ise):
		Problem(w, http.StatusConflict, "Insufficient Stock", ise.Error())
	case errors.As(err, &ioe):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Operation", ioe.Error())
	case errors.As(err, &re):
		Problem(w, http.StatusBadRequest, "Unknown Reference", re.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Already Processed", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrStorage):
		Problem(w, http.StatusInternalServerError, "Storage Failure", shared.UserSafeMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
