package handlers

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/arnavshah/workforce-api/pkg/models"
)

var (
	clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the isodate (YYYY-MM-DD) and clock (HH:MM) tags
// to gin's binding validator. Safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if registerErr = v.RegisterValidation("isodate", isoDate); registerErr != nil {
			return
		}
		registerErr = v.RegisterValidation("clock", clock)
	})
	return registerErr
}

func isoDate(fl validator.FieldLevel) bool {
	_, err := models.ParseDate(fl.Field().String())
	return err == nil
}

func clock(fl validator.FieldLevel) bool {
	return clockPattern.MatchString(fl.Field().String())
}
