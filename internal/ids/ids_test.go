package ids

import (
	"errors"
	"testing"

	apperrors "github.com/alexjbarnes/todoist-mcp/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"01J0M8KPV7Z2F4S9DX3T8HCN8F", Canonical, false},
		{"6Jf8VQXxpwv56VQ7", 0, true},
		{"2995104339", Legacy, false},
		{"0", Legacy, false},
		{"", 0, true},
		{"abc-123", 0, true},
		{"01j0m8kpv7z2f4s9dx3t8hcn8f", 0, true},
		{"01J0M8KPV7Z2F4S9DX3T8HCN8", 0, true},   // 25 chars
		{"01J0M8KPV7Z2F4S9DX3T8HCN8FF", 0, true}, // 27 chars
		{"01J0M8KPV7Z2F4S9DX3T8HCN8I", 0, true},  // I is excluded
		{"01J0M8KPV7Z2F4S9DX3T8HCN8L", 0, true},  // L is excluded
		{"01J0M8KPV7Z2F4S9DX3T8HCN8O", 0, true},  // O is excluded
		{"01J0M8KPV7Z2F4S9DX3T8HCN8U", 0, true},  // U is excluded
		{" 2995104339", 0, true},
		{"-12", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Classify(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrInvalidIdentifier))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicatesAreExclusive(t *testing.T) {
	for _, s := range []string{"01J0M8KPV7Z2F4S9DX3T8HCN8F", "2995104339"} {
		assert.NotEqual(t, IsCanonical(s), IsLegacy(s), s)
	}

	// 26 digits is a valid canonical string and also a decimal number.
	// Canonical wins because it is checked first.
	digits := "12345678901234567890123456"
	kind, err := Classify(digits)
	require.NoError(t, err)
	assert.Equal(t, Canonical, kind)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("task_id", "2995104339"))

	err := Validate("task_id", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingField))
	assert.Contains(t, err.Error(), "task_id")

	err = Validate("project_id", "abc-123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidIdentifier))
	assert.Contains(t, err.Error(), "project_id")
}

func TestValidateOptional(t *testing.T) {
	assert.NoError(t, ValidateOptional("parent_id", nil))

	bad := "nope"
	assert.Error(t, ValidateOptional("parent_id", &bad))
}

func TestFilterLegacy(t *testing.T) {
	in := []string{"1", "01J0M8KPV7Z2F4S9DX3T8HCN8F", "2", "1", "bad"}
	assert.Equal(t, []string{"1", "2"}, FilterLegacy(in))
	assert.Empty(t, FilterLegacy(nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "canonical", Canonical.String())
	assert.Equal(t, "legacy", Legacy.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
