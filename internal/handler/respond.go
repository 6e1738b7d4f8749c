package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/meja-pos/api/internal/orderflow"
	"github.com/meja-pos/api/internal/service"
	"github.com/sirupsen/logrus"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// It writes the 400 response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonPath(fe.Namespace())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be > %s", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s needs at least %s entries", field, fe.Param()))
		case "numeric":
			msgs = append(msgs, field+" must be a decimal number")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// jsonPath drops the root struct name from a validator namespace.
func jsonPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// writeServiceError maps service errors onto HTTP statuses. Anything
// unrecognised is logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, action string, err error) {
	switch {
	case errors.Is(err, service.ErrMissingLocation),
		errors.Is(err, service.ErrInvalidOrderType),
		errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrTableRequired),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrNoTable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInsufficientPayment):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrTableMapNotFound),
		errors.Is(err, service.ErrTableNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrItemNotVisible):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrOrderLocked),
		errors.Is(err, service.ErrItemAlreadyFinished),
		errors.Is(err, service.ErrTableOccupied),
		errors.Is(err, service.ErrConcurrentUpdate),
		errors.Is(err, orderflow.ErrTableLinkedElsewhere):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).WithField("action", action).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
