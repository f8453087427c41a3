package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Providers lists the supported LLM providers in display order.
var Providers = []string{ProviderOpenAI, ProviderOllama}

// Settings parameterizes every request. It is replaced as a whole value on
// every change. An empty Model selects the provider's default model.
type Settings struct {
	Provider     string  `json:"provider" koanf:"provider" validate:"required,oneof=openai ollama"`
	Model        string  `json:"model" koanf:"model"`
	Temperature  float64 `json:"temperature" koanf:"temperature" validate:"gte=0,lte=1"`
	TopK         int     `json:"top_k" koanf:"top_k" validate:"min=1,max=15"`
	ChunkSize    int     `json:"chunk_size" koanf:"chunk_size" validate:"gt=0"`
	ChunkOverlap int     `json:"chunk_overlap" koanf:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

func DefaultSettings() Settings {
	return Settings{
		Provider:     ProviderOpenAI,
		Model:        "",
		Temperature:  0.3,
		TopK:         5,
		ChunkSize:    500,
		ChunkOverlap: 50,
	}
}

// WithProvider returns a copy switched to provider with the model reset to the
// provider default, since model ids are not portable across providers.
func (s Settings) WithProvider(provider string) Settings {
	s.Provider = provider
	s.Model = ""
	return s
}

var settingsValidator = newSettingsValidator()

func newSettingsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the value against the ranges the backend accepts.
func (s Settings) Validate() error {
	err := settingsValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "ltfield":
		return fe.Field() + " must be smaller than chunk_size"
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
