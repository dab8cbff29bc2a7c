package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/middleware"
)

const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates its shape. Domain rules
// such as amount bounds stay with the services.
func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Wrap(apperrors.ErrInvalidRequest, "request body is empty")
		}
		return apperrors.Wrap(apperrors.ErrInvalidRequest, "malformed JSON: %v", err)
	}

	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.Wrap(apperrors.ErrInvalidRequest, "field %s failed on %s", fe.Field(), describeTag(fe))
		}
		return apperrors.Wrap(apperrors.ErrInvalidRequest, "%v", err)
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidRequest, "query parameter %s must be a non-negative integer", name)
	}
	return v, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInvalidRequest, "query parameter %s must be a boolean", name)
	}
	return v, nil
}

func userID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
