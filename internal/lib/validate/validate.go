package validate

import (
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	instance *validator.Validate
	once     sync.Once
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		_ = instance.RegisterValidation("regexp", isRegexp)
		_ = instance.RegisterValidation("tgtoken", isTelegramToken)
	})
	return instance
}

func Struct(s interface{}) error {
	return get().Struct(s)
}

func isRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

// isTelegramToken accepts the <id>:<hash> shape issued by BotFather.
func isTelegramToken(fl validator.FieldLevel) bool {
	id, hash, ok := strings.Cut(fl.Field().String(), ":")
	return ok && id != "" && hash != ""
}
