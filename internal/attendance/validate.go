package attendance

import (
	"log"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the attendance tags (hhmm, leave_type) to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			log.Printf("[WARN] attendance: gin validator is not go-playground/validator, custom tags disabled")
			return
		}
		if err := v.RegisterValidation("hhmm", validateHHMM); err != nil {
			log.Printf("[ERROR] attendance: register hhmm: %v", err)
		}
		if err := v.RegisterValidation("leave_type", validateLeaveType); err != nil {
			log.Printf("[ERROR] attendance: register leave_type: %v", err)
		}
	})
}

func validateHHMM(fl validator.FieldLevel) bool {
	_, err := time.Parse("15:04", fl.Field().String())
	return err == nil
}

func validateLeaveType(fl validator.FieldLevel) bool {
	return slices.Contains(leaveTypes, fl.Field().String())
}

// parseHHMM returns minutes since midnight.
func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
