package logging_test

import (
	"testing"

	"tripcore/testutil"
)

func TestLoggingImportBoundaries(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"pkg/logging must not import tripcore/internal packages")
}
