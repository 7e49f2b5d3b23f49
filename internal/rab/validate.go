package rab

import (
	"log"
	"slices"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the rab_item_type tag to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			log.Printf("[WARN] rab: gin validator is not go-playground/validator, custom tags disabled")
			return
		}
		if err := v.RegisterValidation("rab_item_type", func(fl validator.FieldLevel) bool {
			return slices.Contains(itemTypes, fl.Field().String())
		}); err != nil {
			log.Printf("[ERROR] rab: register rab_item_type: %v", err)
		}
	})
}
