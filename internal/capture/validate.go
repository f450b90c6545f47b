package capture

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"meter-capture-agent/internal/model"
)

// requiredFields lists the form fields a record cannot be submitted without.
// The field tag is the form field id; label is what the actor sees.
type requiredFields struct {
	Stand        string `field:"stand" label:"Stand Nr" validate:"required"`
	Area         string `field:"area" label:"Area" validate:"required"`
	Street       string `field:"street" label:"Street Address" validate:"required"`
	Minisub      string `field:"minisub" label:"Minisub / Bulk" validate:"required"`
	SupplyCable  string `field:"supplyCable" label:"Supply Cable" validate:"required"`
	BreakerState string `field:"breakerState" label:"Breaker State" validate:"required"`
}

// ValidationError reports the required fields that were left blank.
type ValidationError struct {
	// Fields holds the form field ids, in form order.
	Fields []string
	// Labels holds the matching human-readable names.
	Labels []string
}

func (e *ValidationError) Error() string {
	return "Please fill all required fields: " + strings.Join(e.Labels, ", ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field") + "|" + f.Tag.Get("label")
	})
	return v
}

// checkRequired validates an already-trimmed form.
func checkRequired(f model.Form) error {
	err := validate.Struct(requiredFields{
		Stand:        f.Stand,
		Area:         f.Area,
		Street:       f.Street,
		Minisub:      f.Minisub,
		SupplyCable:  f.SupplyCable,
		BreakerState: f.BreakerState,
	})
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range errs {
		id, label, _ := strings.Cut(fe.Field(), "|")
		out.Fields = append(out.Fields, id)
		out.Labels = append(out.Labels, label)
	}
	return out
}
