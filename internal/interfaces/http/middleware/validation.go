package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/interfaces/http/dto"
)

// SetupValidator configures gin's validator: field names in errors follow
// the json (or form) tag, and the ledger enums get their own tags.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	if err := v.RegisterValidation("cadence", validateCadence); err != nil {
		return err
	}
	return v.RegisterValidation("payment_method", validatePaymentMethod)
}

func validateCadence(fl validator.FieldLevel) bool {
	_, err := ledger.ParseCadence(fl.Field().String())
	return err == nil
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	_, err := ledger.ParsePaymentMethod(fl.Field().String())
	return err == nil
}

// ValidationDetails converts binding errors into response details. Errors
// that are not field validation failures (malformed JSON) yield one entry
// without a field.
func ValidationDetails(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dto.ValidationDetail{{Message: "Malformed request body"}}
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return details
}

// HandleValidationError writes a 400 validation envelope for err
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		GetRequestID(c),
		ValidationDetails(err),
	))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "cadence":
		return "Must be monthly or annually"
	case "payment_method":
		return "Must be one of: bank cash card crypto"
	default:
		return "Invalid value"
	}
}
