// Package http contains the chi HTTP handlers for the analysis API.
//
// Handlers depend on the service layer through small interfaces so tests can
// substitute fakes, decode request bodies with chi/render, validate them with
// the shared validation middleware, and report failures through the RFC 7807
// error handler.
package http
