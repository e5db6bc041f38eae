// Package e2e holds the UI tests. They drive a real browser against the
// configured base URL and only build with the e2e tag:
//
//	TEST_ENV=local go test -tags e2e ./e2e/...
package e2e
