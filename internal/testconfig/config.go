package testconfig

import (
	"os"
	"testing"
)

var (
	PARALLELIZE_SAME_PKG_TESTS = os.Getenv("BRJ_PARALLEL_TESTS") != ""
)

func AllowParallelization(t *testing.T) {
	if PARALLELIZE_SAME_PKG_TESTS {
		t.Parallel()
	}
}
