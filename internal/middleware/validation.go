package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// ValidationMiddleware provides request validation using struct tags
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
	maxBodySize  int64
}

// NewValidationMiddleware creates a new validation middleware
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New()

	v.RegisterValidation("period_days", isAllowedPeriod)
	v.RegisterValidation("isodate", isISODate)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  1 << 20,
	}
}

// ValidateRequest rejects oversized or malformed JSON bodies
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > m.maxBodySize {
			m.errorHandler.HandleError(w, r, apperrors.ErrPayloadTooLarge(r.ContentLength, m.maxBodySize))
			return
		}

		if r.Body != nil && r.ContentLength != 0 {
			body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodySize))
			if err != nil {
				m.logger.ErrorContext(r.Context(), "failed to read request body",
					slog.String("error", err.Error()))
				m.errorHandler.HandleError(w, r, apperrors.InvalidRequestWithError(err))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))

			if len(body) > 0 && !json.Valid(body) {
				m.errorHandler.HandleError(w, r, apperrors.ErrInvalidJSON())
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// DecodeAndValidate decodes the JSON body of r into dst and validates it.
// An empty body leaves dst at its zero value before validation.
func (m *ValidationMiddleware) DecodeAndValidate(r *http.Request, dst interface{}) error {
	if r.Body != nil {
		if err := render.DecodeJSON(r.Body, dst); err != nil && !errors.Is(err, io.EOF) {
			return apperrors.InvalidRequestWithError(err)
		}
	}
	return m.ValidateStruct(dst)
}

// ValidateStruct validates a struct and returns validation errors
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return apperrors.InvalidRequestWithError(err)
	}

	validationErrors := make([]apperrors.ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apperrors.NewValidationErrors(validationErrors)
}

// ContentTypeValidator ensures requests have proper content type
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			render.Status(r, http.StatusUnsupportedMediaType)
			render.JSON(w, r, apperrors.ErrUnsupportedMediaType(contentType, contentTypes))
		})
	}
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "period_days":
		return fmt.Sprintf("%s must be one of %v", field, config.AllowedPeriodDays)
	case "isodate":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func isAllowedPeriod(fl validator.FieldLevel) bool {
	return config.IsAllowedPeriod(int(fl.Field().Int()))
}

func isISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(shipment.DayLayout, fl.Field().String())
	return err == nil
}

// QueryParamValidator validates query parameters. Each method writes the
// error response itself and reports false when the handler must stop.
type QueryParamValidator struct {
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateInt validates an integer query parameter
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max int, defaultValue int) (int, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param)))
		return 0, false
	}

	if intValue < min || intValue > max {
		v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}

	return intValue, true
}

// ValidateEnum validates an enum query parameter
func (v *QueryParamValidator) ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	for _, a := range allowed {
		if value == a {
			return value, true
		}
	}

	v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}

// ValidatePeriod validates an evaluation window against the allowed set
func (v *QueryParamValidator) ValidatePeriod(w http.ResponseWriter, r *http.Request, param string, defaultValue int) (int, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	days, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || !config.IsAllowedPeriod(days) {
		v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s must be one of %v", param, config.AllowedPeriodDays)))
		return 0, false
	}
	return days, true
}

// ValidateDate validates a required YYYY-MM-DD query parameter
func (v *QueryParamValidator) ValidateDate(w http.ResponseWriter, r *http.Request, param string) (time.Time, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s is required", param)))
		return time.Time{}, false
	}

	date, err := time.Parse(shipment.DayLayout, value)
	if err != nil {
		v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", param)))
		return time.Time{}, false
	}
	return date, true
}

// ValidateRequired returns a required non-empty string parameter
func (v *QueryParamValidator) ValidateRequired(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s is required", param)))
		return "", false
	}
	return value, true
}

// ValidateBool validates a boolean query parameter
func (v *QueryParamValidator) ValidateBool(w http.ResponseWriter, r *http.Request, param string, defaultValue bool) (bool, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s must be true or false", param)))
		return false, false
	}
	return b, true
}

// List returns a multi-valued parameter. Values may repeat the parameter or
// be comma separated; blanks and duplicates are dropped, order is kept.
func List(r *http.Request, param string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range r.URL.Query()[param] {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
