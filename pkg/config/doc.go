// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
//
//   - the default .env file in the working directory is read once if present;
//   - environment variables are parsed into structs using env tags;
//   - each config type is parsed once and cached for the process lifetime;
//   - structs implementing Validator are validated before they are cached.
//
// # Usage
//
//	type PricesConfig struct {
//		Starter string `env:"STRIPE_PRICE_ID_STARTER,required"`
//		Creator string `env:"STRIPE_PRICE_ID_CREATOR,required"`
//	}
//
//	func (c PricesConfig) Validate() error {
//		if c.Starter == c.Creator {
//			return errors.New("duplicate price id")
//		}
//		return nil
//	}
//
//	var prices PricesConfig
//	config.MustLoad(&prices)
//
// # Errors
//
//   - ErrParsingConfig: env vars could not be parsed (missing required value, bad format).
//   - ErrInvalidConfig: the struct's Validate method returned an error.
//   - ErrLoadingEnvFile: LoadEnv could not read a requested file.
//   - ErrNilPointer: nil pointer passed to Load.
//
// Tests that change the environment between loads should call Reset.
package config
