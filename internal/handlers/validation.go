package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ReportTypes reports which report types the service can write
type ReportTypes interface {
	HasReportType(t string) bool
}

// newValidator registers the report_type rule against the catalog
func newValidator(reports ReportTypes) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("report_type", func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(string)
		return ok && reports.HasReportType(val)
	})
	return v
}

// validationDetails flattens validator errors into "field: rule" lines
func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			details = append(details, fmt.Sprintf("%s: is required", field))
		case "report_type":
			details = append(details, fmt.Sprintf("%s: unknown report type %q", field, fe.Value()))
		case "base64":
			details = append(details, fmt.Sprintf("%s: must be base64 encoded", field))
		case "max":
			details = append(details, fmt.Sprintf("%s: must be at most %s characters", field, fe.Param()))
		default:
			details = append(details, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return details
}
