// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// RequestValidationError collects every failed rule of one struct.
type RequestValidationError struct {
	errors []FieldError
}

// Errors returns the individual failures.
func (ve *RequestValidationError) Errors() []FieldError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.errors))
	for i, e := range ve.errors {
		messages[i] = e.Message
	}
	return strings.Join(messages, "; ")
}

// MetricLabel implements metrics.ErrorType.
func (ve *RequestValidationError) MetricLabel() string {
	return "validation"
}

// ToAPIError converts the failures to the API error shape.
func (ve *RequestValidationError) ToAPIError() *models.APIError {
	switch len(ve.errors) {
	case 0:
		return &models.APIError{Code: "VALIDATION_ERROR", Message: "Validation failed"}
	case 1:
		e := ve.errors[0]
		return &models.APIError{
			Code:    "VALIDATION_ERROR",
			Message: e.Message,
			Details: map[string]any{"field": e.Field, "tag": e.Tag},
		}
	}

	fields := make([]map[string]any, len(ve.errors))
	for i, e := range ve.errors {
		fields[i] = map[string]any{"field": e.Field, "tag": e.Tag, "message": e.Message}
	}
	return &models.APIError{
		Code:    "VALIDATION_ERROR",
		Message: ve.Error(),
		Details: map[string]any{"fields": fields},
	}
}

// GetValidator returns the shared validator.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		mustRegister("dashtable", func(fl validator.FieldLevel) bool {
			return slices.Contains(models.DashboardTables, fl.Field().String())
		})
		mustRegister("isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(time.DateOnly, fl.Field().String())
			return err == nil
		})
		mustRegister("scopekind", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "project", "client", "creator":
				return true
			}
			return false
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// jsonFieldName reports fields by their json name.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}

// ValidateStruct validates s. It returns nil on success.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{errors: []FieldError{{
			Field:   "unknown",
			Tag:     "unknown",
			Message: err.Error(),
		}}}
	}

	out := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: translate(fe.Field(), fe),
		}
	}
	return &RequestValidationError{errors: out}
}

// Var validates a single value against tag, naming it field in messages.
func Var(field string, value any, tag string) *RequestValidationError {
	err := GetValidator().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &RequestValidationError{errors: []FieldError{{Field: field, Tag: "unknown", Message: err.Error()}}}
	}
	fe := fieldErrs[0]
	return &RequestValidationError{errors: []FieldError{{
		Field:   field,
		Tag:     fe.Tag(),
		Param:   fe.Param(),
		Value:   fe.Value(),
		Message: translate(field, fe),
	}}}
}

var messages = map[string]string{
	"required":  "%s is required",
	"email":     "%s must be a valid email address",
	"url":       "%s must be a valid URL",
	"uuid":      "%s must be a valid UUID",
	"dashtable": "%s must be a dashboard table",
	"isodate":   "%s must be a date in YYYY-MM-DD format",
	"scopekind": "%s must be one of: project, client, creator",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translate(field string, fe validator.FieldError) string {
	tag, param := fe.Tag(), fe.Param()
	if tmpl, ok := messages[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messagesWithParam[tag]; ok {
		return fmt.Sprintf(tmpl, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
