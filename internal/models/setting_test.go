package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(n int) *int           { return &n }
func strPtr(s string) *string     { return &s }

func TestValidationRules_Validate(t *testing.T) {
	t.Run("nil rules accept anything", func(t *testing.T) {
		var rules *ValidationRules
		result := rules.Validate("whatever")
		assert.True(t, result.Valid)
	})

	t.Run("required rejects empty", func(t *testing.T) {
		rules := &ValidationRules{Required: true}
		result := rules.Validate("")
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "this field is required")
	})

	t.Run("empty value skips the remaining rules", func(t *testing.T) {
		rules := &ValidationRules{Min: floatPtr(1), Email: true}
		result := rules.Validate("")
		assert.True(t, result.Valid)
	})

	t.Run("every violated rule is reported", func(t *testing.T) {
		rules := &ValidationRules{
			Min:       floatPtr(10),
			MinLength: intPtr(5),
		}
		result := rules.Validate("3")
		assert.False(t, result.Valid)
		assert.Len(t, result.Errors, 2, "min and minLength both fail for '3'")
	})

	t.Run("numeric bounds", func(t *testing.T) {
		rules := &ValidationRules{Min: floatPtr(1), Max: floatPtr(20)}

		assert.True(t, rules.Validate("5").Valid)
		assert.False(t, rules.Validate("0").Valid)
		assert.False(t, rules.Validate("21").Valid)
		assert.False(t, rules.Validate("abc").Valid, "non-numeric input fails numeric bounds")
	})

	t.Run("enum", func(t *testing.T) {
		rules := &ValidationRules{Enum: []string{"true", "false"}}

		assert.True(t, rules.Validate("true").Valid)
		result := rules.Validate("banana")
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "value must be one of: true, false")
	})

	t.Run("email", func(t *testing.T) {
		rules := &ValidationRules{Email: true}

		assert.True(t, rules.Validate("support@example.com").Valid)
		assert.False(t, rules.Validate("not-an-email").Valid)
	})

	t.Run("pattern", func(t *testing.T) {
		rules := &ValidationRules{Pattern: `^[A-Z]\d{3}$`}

		assert.True(t, rules.Validate("E001").Valid)
		assert.False(t, rules.Validate("001E").Valid)
	})
}

func TestSystemSetting_EffectiveValue(t *testing.T) {
	setting := &SystemSetting{DefaultValue: "5"}
	assert.Equal(t, "5", setting.EffectiveValue(), "nil value falls back to default")

	setting.Value = strPtr("")
	assert.Equal(t, "5", setting.EffectiveValue(), "empty value falls back to default")

	setting.Value = strPtr("7")
	assert.Equal(t, "7", setting.EffectiveValue())
}

func TestParseSettingValue(t *testing.T) {
	t.Run("plain string stays raw", func(t *testing.T) {
		v := ParseSettingValue("hello world")
		assert.Equal(t, "hello world", v.Raw)
		assert.Nil(t, v.Parsed)
	})

	t.Run("JSON is parsed", func(t *testing.T) {
		v := ParseSettingValue(`{"theme":"midnight"}`)
		require.NotNil(t, v.Parsed)
		parsed, ok := v.Parsed.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "midnight", parsed["theme"])
	})

	t.Run("quoted string is parsed to the inner string", func(t *testing.T) {
		v := ParseSettingValue(`"midnight"`)
		assert.Equal(t, "midnight", v.Parsed)
	})
}

func TestSettingValue_MarshalJSON(t *testing.T) {
	t.Run("parsed form wins", func(t *testing.T) {
		out, err := json.Marshal(ParseSettingValue(`{"a":1}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(out))
	})

	t.Run("raw string falls back to a JSON string", func(t *testing.T) {
		out, err := json.Marshal(ParseSettingValue("plain"))
		require.NoError(t, err)
		assert.Equal(t, `"plain"`, string(out))
	})
}

func TestValidationRules_Scan(t *testing.T) {
	var rules ValidationRules
	require.NoError(t, rules.Scan([]byte(`{"required":true,"min":1,"max":20}`)))
	assert.True(t, rules.Required)
	require.NotNil(t, rules.Min)
	assert.Equal(t, 1.0, *rules.Min)

	var fromString ValidationRules
	require.NoError(t, fromString.Scan(`{"enum":["true","false"]}`))
	assert.Equal(t, []string{"true", "false"}, fromString.Enum)

	var fromNil ValidationRules
	require.NoError(t, fromNil.Scan(nil))
}
