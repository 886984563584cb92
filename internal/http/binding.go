package http

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
)

// flexString accepts a JSON string, number, boolean or null. Falsy values
// (null, false, 0, "") decode to the empty string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = ""
	case string:
		*f = flexString(t)
	case bool:
		if t {
			*f = "true"
		} else {
			*f = ""
		}
	case float64:
		if t == 0 {
			*f = ""
		} else {
			*f = flexString(strconv.FormatFloat(t, 'f', -1, 64))
		}
	default:
		return errors.New("expected a string, number or boolean")
	}
	return nil
}

func (f flexString) String() string { return string(f) }

// decodeBody decodes a JSON object body. A malformed body, a null, or a
// value that is not an object is a 400 "Invalid JSON body" regardless of
// Content-Type.
func decodeBody[T any](c echo.Context) (*T, error) {
	var dst *T
	if err := c.Echo().JSONSerializer.Deserialize(c, &dst); err != nil || dst == nil {
		return nil, v1.Validation(v1.ErrInvalidJSON.Error())
	}
	return dst, nil
}
