// Package main provides the entry point for the PageGuard API server.
//
// PageGuard is the backend for a browser security extension. It analyzes
// page signals with an LLM backend, checks email addresses against breach
// databases, and keeps per-client daily quotas on both.
//
// Usage:
//
//	pageguard serve
//	pageguard serve -c pageguard.yaml
//
// See --help for all available options.
package main

func main() {
	Execute()
}
