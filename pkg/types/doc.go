// Package types defines the domain entities, operation results, sentinel
// errors, and configuration for the shipfloor fulfillment core.
package types
