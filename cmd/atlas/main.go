// Atlas is a multi-tenant eligibility rule engine built around composable
// atoms: small, versioned rules that can depend on and compose other rules.
//
// Usage:
//
//	# Start the runtime with a configuration file
//	atlas run --config /path/to/config.yaml
//
//	# Validate atom definitions
//	atlas validate --atoms atoms/
//
//	# Execute an atom against an input
//	atlas exec PREMIUM_CUSTOMER --atoms atoms/ --input '{"age": 25}'
//
//	# Run an atom's embedded test cases
//	atlas test --atoms atoms/ PREMIUM_CUSTOMER
//
//	# Show version information
//	atlas version
package main

func main() {
	Execute()
}
