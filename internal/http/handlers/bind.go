package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/alohomora/internal/platform/apierr"
)

const maxBodyBytes = 1 << 20

// bindJSON decodes the request body into dst, rejecting unknown fields, and
// runs the struct's binding tags.
func bindJSON(c *gin.Context, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		return apierr.InvalidInput("unreadable request body")
	}
	if len(raw) > maxBodyBytes {
		return apierr.InvalidInput("request body too large")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return apierr.InvalidInput("request body must be a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierr.InvalidInput("invalid JSON body: %s", strings.TrimPrefix(err.Error(), "json: "))
	}
	if dec.More() {
		return apierr.InvalidInput("invalid JSON body: trailing data")
	}
	if binding.Validator == nil {
		return nil
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return apierr.InvalidInput("%s", describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return jsonFieldName(fe) + " is required"
		}
		return jsonFieldName(fe) + " is invalid"
	}
	return err.Error()
}

// jsonFieldName maps a Go field name back to its wire name for messages.
func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && (name[i-1] < 'A' || name[i-1] > 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
