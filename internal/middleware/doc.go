// Package middleware provides HTTP middleware for the thumbnail server.
//
// It includes:
//   - Access logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
package middleware
