package controllers

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	registerOnce   sync.Once
)

// registerValidators adds the storefront's custom binding tags to gin's
// validator. Safe to call more than once.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("pincode", validPincode)
	})
}

// validPincode accepts Indian six-digit postal codes.
func validPincode(fl validator.FieldLevel) bool {
	return pincodePattern.MatchString(fl.Field().String())
}
