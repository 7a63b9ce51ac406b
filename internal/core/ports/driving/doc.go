// Package driving defines the interfaces external actors use to drive
// the core (the "primary" ports in hexagonal architecture). The CLI
// and the watch loop depend on these, never on service structs.
package driving
