package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Mubson1/Deploy-Lottery/internal/units"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for malformed values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if _, ok := c.Networks[strings.ToLower(c.DefaultNetwork)]; !ok {
		return fmt.Errorf("%w: default_network %q has no profile", ErrInvalidConfig, c.DefaultNetwork)
	}

	for _, amount := range []struct{ key, value string }{
		{"lottery.entrance_buffer", c.Lottery.EntranceBuffer},
		{"lottery.fund_amount", c.Lottery.FundAmount},
	} {
		if _, err := units.ParseValue(amount.value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, amount.key, err)
		}
	}
	for name, n := range c.Networks {
		if n.Fee == "" {
			continue
		}
		if _, err := n.FeeWei(); err != nil {
			return fmt.Errorf("%w: networks.%s.%v", ErrInvalidConfig, name, err)
		}
	}

	return nil
}
