// Package component defines the lifecycle contract shared by the long-lived
// parts of xpdflow (the assembled reduction pipeline, the control server)
// and a registry that starts them in order and stops them in reverse.
package component
