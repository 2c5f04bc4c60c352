package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	// ComponentName is the domain this component binds on the server; all
	// room addresses live under it.
	ComponentName     string        `env:"COMPONENT_NAME,required=true" validate:"required,fqdn"`
	SharedSecret      string        `env:"SHARED_SECRET,required=true" validate:"required,min=8"`
	ServerHost        string        `env:"SERVER_HOST,required=true" validate:"required"`
	ServerPort        int           `env:"SERVER_PORT,required=true" validate:"gte=1,lte=65535"`
	ReconnectInterval time.Duration `env:"RECONNECT_INTERVAL,required=true" validate:"gt=0"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
	// DebugPort enables the occupancy inspector when set.
	DebugPort int `env:"DEBUG_PORT" validate:"gte=0,lte=65535"`
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}
