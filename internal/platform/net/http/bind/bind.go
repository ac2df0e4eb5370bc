// Package bind decodes and validates JSON request bodies
package bind

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	perr "tubesense/internal/platform/errors"
	"tubesense/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ValidatorSvc holds a singleton validator and translator
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc

	regionRe = regexp.MustCompile(`^[A-Z]{2}$`)
)

// Get returns the validator singleton with english messages, json field names and the
// project tags "region" (two-letter uppercase code) and "day" (YYYY-MM-DD)
func Get() *ValidatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		trans, _ := ut.New(enLoc, enLoc).GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterValidation("region", func(fl validator.FieldLevel) bool {
			return regionRe.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("day", func(fl validator.FieldLevel) bool {
			_, err := time.Parse("2006-01-02", fl.Field().String())
			return err == nil
		})
		translate(v, trans, "region", "{0} must be a two-letter uppercase region code")
		translate(v, trans, "day", "{0} must be a YYYY-MM-DD date")
		translate(v, trans, "max", "{0} must be at most {1}")

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

func translate(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// MaxBytes caps request bodies
const MaxBytes = 1 << 20

// ParseJSON decodes a single JSON object into T, rejects unknown fields and
// trailing data, and validates the result
func ParseJSON[T any](r *http.Request) (T, error) {
	var zero T
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBytes))
	dec.DisallowUnknownFields()

	var dst T
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, perr.JSONErrf("empty body")
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := Validate(dst); err != nil {
		return zero, err
	}
	return dst, nil
}

// Validate runs struct validation and maps the first failure to a validation error
func Validate(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		logger.Get().Error().Err(inv).Msg("validator internal error")
		return perr.JSONErrf("validation error")
	}
	field, msg := ValidationFieldAndMessage(err)
	return perr.WithField(perr.Newf(perr.ErrorCodeValidation, "%s", msg), field)
}

// ValidationFieldAndMessage returns the first field and translated message
func ValidationFieldAndMessage(err error) (field, message string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field(), verrs[0].Translate(Get().Translator)
	}
	if err == nil {
		return "", ""
	}
	return "", err.Error()
}
