// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key validation protecting the run endpoints.
//   - rayid: a unique Request ID (RayID) for every incoming request, injected into
//     the context and response headers for tracing.
package middleware
