package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalPaths(t *testing.T) {
	stack := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/ayurclinic/internal/pkg/goroutine.(*Manager).run.func2()
	/src/ayurclinic/internal/pkg/goroutine/goroutine.go:77 +0x45
github.com/shandysiswandi/ayurclinic/internal/identity/usecase.(*Usecase).IssueOTP(...)
	/src/ayurclinic/internal/identity/usecase/issue_otp.go:41 +0x1a
`)

	assert.Equal(t, []string{
		"internal/pkg/goroutine/goroutine.go:77",
		"internal/identity/usecase/issue_otp.go:41",
	}, InternalPaths(stack))
	assert.Empty(t, InternalPaths([]byte("no frames")))
}
