package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNamespaceName(t *testing.T) {
	valid := []string{"app", "app.core", "my-app.utils_v2", "test$module", "app123.module_test"}
	for _, name := range valid {
		assert.NoError(t, ValidateNamespaceName(name), name)
	}

	invalid := []string{"", "app/core", "app~test", "app@domain", ".app", "app.", "app..core", "app core", "app!test", "app\ncore", "app(x)", "app\"x"}
	for _, name := range invalid {
		err := ValidateNamespaceName(name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestValidateDefinitionName(t *testing.T) {
	valid := []string{"add", "add-numbers", "test_fn", "main!", "valid?", "*global*", "config:dev", "fn#123", "test%", "&rest", "+version+"}
	for _, name := range valid {
		assert.NoError(t, ValidateDefinitionName(name), name)
	}

	invalid := []string{"", "add/sub", "test~fn", "user@domain", "test fn", "app.core", "test$var", "fn()", "test[0]", "tab\there", "quote'd"}
	for _, name := range invalid {
		err := ValidateDefinitionName(name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "StaleMatch", Kind(Wrap(ErrStaleMatch, "at %v", []int{1})))
	assert.Equal(t, "OutOfBounds", Kind(fmt.Errorf("editing app.main/f: %w", Wrap(ErrOutOfBounds, "index 4"))))
	assert.Equal(t, "IndexIntegrityViolation", Kind(ErrIndexIntegrity))
	assert.Equal(t, "Internal", Kind(errors.New("boom")))
}

func TestPatchMetrics(t *testing.T) {
	var pm PatchMetrics
	start := time.Now()

	pm.RecordPatch(start, true, 2, 5, 1)
	pm.RecordPatch(start, false, 9, 9, 9)

	metrics := pm.GetMetrics()
	assert.Equal(t, int64(2), metrics["total_operations"])
	assert.Equal(t, int64(1), metrics["successful_ops"])
	assert.Equal(t, int64(1), metrics["failed_ops"])
	assert.Equal(t, int64(2), metrics["namespaces_touched"])
	assert.Equal(t, int64(5), metrics["defs_invalidated"])
	assert.Equal(t, int64(1), metrics["libs_exempted"])
}
