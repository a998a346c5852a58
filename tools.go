//go:build tools

// Package tools documents the generators used by this module.
//
// The mocks in pkg/session/mocks are generated by mockery v3 from
// .mockery.yaml; run mockery from the module root. mockery is installed as
// a binary, so nothing is imported here.
package tools
