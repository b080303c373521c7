package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatchingThroughWrapping(t *testing.T) {
	err := fmt.Errorf("predict: %w", NotFound("No model found for product %s", "sku-9"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "No model found for product sku-9", Message(err))
}

func TestJoinedErrorsReachBothCauses(t *testing.T) {
	rf := NotFound("no model")
	ar := Fit(errors.New("singular"), "Failed to create ARIMA forecast")
	combined := &Error{Kind: KindValidation, Message: "both forecasters failed", Err: errors.Join(rf, ar)}

	assert.True(t, errors.Is(combined, ErrValidation))
	assert.True(t, errors.Is(combined, ErrNotFound))
	assert.True(t, errors.Is(combined, ErrFit))
	assert.Equal(t, KindValidation, KindOf(combined))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("x")))
}
