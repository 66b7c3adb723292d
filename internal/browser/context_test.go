// internal/browser/context_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

func TestCombineContextInheritsValuesFromMaster(t *testing.T) {
	master := context.WithValue(context.Background(), ctxKey("target"), "page-7")
	op := context.WithValue(context.Background(), ctxKey("op"), "read")

	combined, cancel := CombineContext(master, op)
	defer cancel()

	assert.Equal(t, "page-7", combined.Value(ctxKey("target")))
	assert.Nil(t, combined.Value(ctxKey("op")), "operational values are not inherited")
}

func TestCombineContextCancelsWithEitherParent(t *testing.T) {
	master, cancelMaster := context.WithCancel(context.Background())
	defer cancelMaster()
	op, cancelOp := context.WithCancel(context.Background())
	defer cancelOp()

	combined, cancel := CombineContext(master, op)
	defer cancel()

	cancelOp()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context not canceled with the operational parent")
	}
	require.Error(t, combined.Err())
}
