// Package config handles loading and validating venuecore configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional dotenv file into the environment
//   - Reading the SUPABASE_* variables a Supabase edge runtime exposes
//   - Overriding with VENUECORE_* environment variables
//   - Validation of required fields per store driver
//
// Security Considerations:
//   - Keys (anon, service role, JWT secret) belong in the environment, not YAML
//   - The service role key bypasses row level security; it is only handed to
//     the POS client factory and the object storage client
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Store.Driver)
package config
