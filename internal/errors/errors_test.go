package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Defaults(t *testing.T) {
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
	assert.False(t, ee.GetTimestamp().IsZero())
}

func TestBuilder_Fluent(t *testing.T) {
	ClearErrorHooks()

	ee := Newf("threshold %.2f out of range", 1.5).
		Component("conf").
		Category(CategoryConfiguration).
		Priority(PriorityHigh).
		Context("field", "ocr.basethreshold").
		Timing("load", 1500*time.Millisecond).
		Build()

	assert.Equal(t, "threshold 1.50 out of range", ee.GetMessage())
	assert.Equal(t, "conf", ee.GetComponent())
	assert.Equal(t, "configuration", ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())

	ctx := ee.GetContext()
	assert.Equal(t, "ocr.basethreshold", ctx["field"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])

	ctx["field"] = "mutated"
	assert.Equal(t, "ocr.basethreshold", ee.GetContext()["field"], "context is returned as a copy")
}

func TestBuilder_InvalidPriorityFallsBack(t *testing.T) {
	ClearErrorHooks()

	ee := newStdBuilder("x").Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)

	ee = newStdBuilder("x").Priority("").Build()
	assert.Empty(t, ee.Priority)
}

func newStdBuilder(msg string) *ErrorBuilder {
	return New(NewStd(msg))
}

func TestIsAndAs(t *testing.T) {
	ClearErrorHooks()

	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("wrapped: %w", sentinel)).Category(CategorySensor).Build()

	assert.True(t, Is(ee, sentinel))
	assert.True(t, Is(ee, &EnhancedError{Category: CategorySensor}))
	assert.False(t, Is(ee, &EnhancedError{Category: CategoryFusion}))

	outer := fmt.Errorf("outer: %w", ee)
	assert.True(t, IsCategory(outer, CategorySensor))
	assert.False(t, IsCategory(outer, CategoryNotFound))
	assert.False(t, IsNotFound(outer))

	var target *EnhancedError
	require.True(t, As(outer, &target))
	assert.Equal(t, CategorySensor, target.Category)
}

func TestValidationError(t *testing.T) {
	ClearErrorHooks()

	err := ValidationError("serial must be at least 6 characters")
	assert.True(t, IsCategory(err, CategoryValidation))
	assert.Equal(t, "serial must be at least 6 characters", err.Error())
}

func TestErrorHooks(t *testing.T) {
	t.Cleanup(ClearErrorHooks)
	ClearErrorHooks()

	var seen []ErrorCategory
	AddErrorHook(func(ee *EnhancedError) {
		seen = append(seen, ee.Category)
	})
	AddErrorHook(nil)

	ee := newStdBuilder("publish failed").Category(CategoryMQTTPublish).Build()
	assert.True(t, ee.IsReported())
	assert.Equal(t, []ErrorCategory{CategoryMQTTPublish}, seen)

	ClearErrorHooks()
	_ = newStdBuilder("ignored").Build()
	assert.Len(t, seen, 1)
}

func TestJoin(t *testing.T) {
	a, b := NewStd("a"), NewStd("b")
	joined := Join(a, b)
	assert.True(t, Is(joined, a))
	assert.True(t, Is(joined, b))
	assert.Nil(t, Join())
}
