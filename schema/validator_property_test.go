package schema

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// 对任意缺失的必填字段, 错误路径必须精确定位到该字段.
func TestProperty_MissingRequiredFieldIsLocated(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := NewValidator()
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{3,10}`), 1, 5, rapid.ID[string]).Draw(rt, "names")
		s := NewObjectSchema()
		for _, n := range names {
			s.AddRequiredProperty(n, NewStringSchema())
		}

		missing := rapid.SampledFrom(names).Draw(rt, "missing")
		input := make(map[string]any, len(names))
		for _, n := range names {
			if n != missing {
				input[n] = "value"
			}
		}

		err := v.ValidateValue(input, s)
		var ve *ValidationErrors
		require.True(rt, errors.As(err, &ve))
		require.Len(rt, ve.Errors, 1)
		assert.Equal(rt, missing, ve.Errors[0].Path)
	})
}

// 数组中第 i 个元素越界时, 路径形如 items[i].score.
func TestProperty_ArrayViolationIndex(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := NewValidator()
		s := NewObjectSchema().AddRequiredProperty("items", NewArraySchema(
			NewObjectSchema().AddRequiredProperty("score", NewNumberSchema().WithRange(0, 100)),
		))

		n := rapid.IntRange(1, 20).Draw(rt, "n")
		bad := rapid.IntRange(0, n-1).Draw(rt, "bad")
		items := make([]any, n)
		for i := range items {
			score := rapid.Float64Range(0, 100).Draw(rt, fmt.Sprintf("score%d", i))
			if i == bad {
				score = 100 + rapid.Float64Range(0.001, 1000).Draw(rt, "excess")
			}
			items[i] = map[string]any{"score": score}
		}

		err := v.ValidateValue(map[string]any{"items": items}, s)
		var ve *ValidationErrors
		require.True(rt, errors.As(err, &ve))
		require.Len(rt, ve.Errors, 1)
		assert.Equal(rt, fmt.Sprintf("items[%d].score", bad), ve.Errors[0].Path)
		assert.Equal(rt, "maximum", ve.Errors[0].Constraint)
	})
}

// 校验从不 panic: 任意 JSON 文本只可能得到 nil 或 *ValidationErrors.
func TestProperty_ValidateNeverPanics(t *testing.T) {
	v := NewValidator()
	s := backlinkOutputSchema()
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.OneOf(
			rapid.StringMatching(`\{"domainAuthority":[0-9]{1,3}(,"backlinks":\[\])?\}`),
			rapid.String(),
		).Draw(rt, "data")

		err := v.Validate([]byte(data), s)
		if err == nil {
			return
		}
		var ve *ValidationErrors
		assert.True(rt, errors.As(err, &ve), "unexpected error type %T", err)
	})
}

// 成功校验不修改候选值.
func TestProperty_ValidateDoesNotMutate(t *testing.T) {
	v := NewValidator()
	s := NewObjectSchema().AddRequiredProperty("topic", NewStringSchema().WithMinLength(3))
	rapid.Check(t, func(rt *rapid.T) {
		topic := rapid.StringMatching(`[a-z ]{3,40}`).Draw(rt, "topic")
		input := map[string]any{"topic": topic}
		require.NoError(rt, v.ValidateValue(input, s))
		assert.Equal(rt, map[string]any{"topic": topic}, input)
		assert.False(rt, strings.Contains(fmt.Sprint(input), "<nil>"))
	})
}
