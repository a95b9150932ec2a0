package commands

import (
	"fmt"
	"maps"
	"slices"

	canaryHTTP "github.com/allisson/trustcore/internal/canary/http"
	canaryUseCase "github.com/allisson/trustcore/internal/canary/usecase"
)

// plantHoneypots inserts the canaries behind the configured honeypot routes the
// same way the server does, so hashes match those of a running instance.
func plantHoneypots(registry canaryUseCase.Registry, honeypots map[string]string) error {
	for _, route := range slices.Sorted(maps.Keys(honeypots)) {
		if _, err := registry.InsertCanary(canaryHTTP.FunctionPath(route), honeypots[route]); err != nil {
			return fmt.Errorf("failed to plant canary for %s: %w", route, err)
		}
	}
	return nil
}

// RunExportCanaryManifest writes the manifest of the canaries behind the configured
// honeypot routes. Function paths are left out of the manifest.
func RunExportCanaryManifest(registry canaryUseCase.Registry, honeypots map[string]string, rw IOTuple) error {
	if err := plantHoneypots(registry, honeypots); err != nil {
		return err
	}
	return registry.ExportManifest(rw.Writer)
}

// RunVerifyCanaryHash checks that expected is the stable hash of canaryID under the
// configured salt.
func RunVerifyCanaryHash(
	registry canaryUseCase.Registry,
	honeypots map[string]string,
	rw IOTuple,
	canaryID, expected string,
) error {
	if err := plantHoneypots(registry, honeypots); err != nil {
		return err
	}
	if _, err := registry.Get(canaryID); err != nil {
		return err
	}
	if !registry.VerifyCanaryHash(canaryID, expected) {
		_, _ = fmt.Fprintf(rw.Writer, "Canary %s: hash mismatch\n", canaryID)
		return fmt.Errorf("canary hash mismatch for %s", canaryID)
	}
	_, _ = fmt.Fprintf(rw.Writer, "Canary %s: hash verified\n", canaryID)
	return nil
}
