package camera

import "sync"

// Texture is a host-owned renderable surface backing the preview.
type Texture interface {
	ID() int64
	// Surface sets the texture's default buffer size and returns a surface rendering into it.
	Surface(bufferSize Size) Surface
	Release()
}

// Host is the subset of the host runtime the controller depends on.
type Host interface {
	AllocatePreviewTexture() (Texture, error)
	HasPermission(p Permission) bool
	// RequestPermissions prompts the user; done is called once with the answer,
	// possibly on another goroutine.
	RequestPermissions(perms []Permission, done func(granted bool))
	ScreenResolution() Size
}

// Result is the terminal reply to a single host command.
type Result interface {
	Success(value any)
	Error(code, message string, details any)
	NotImplemented()
}

// ReplyError sends err to r using its host-visible code.
func ReplyError(r Result, err error) {
	e := Translate(err)
	r.Error(e.Kind.Code(), e.Message, nil)
}

// Executor runs functions on the main dispatch thread.
type Executor interface {
	Post(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

// Post calls f(fn).
func (f ExecutorFunc) Post(fn func()) { f(fn) }

// Inline runs posted functions immediately on the caller's goroutine.
var Inline = ExecutorFunc(func(fn func()) { fn() })

// Once wraps r so that only the first terminal reply is delivered.
func Once(r Result) Result {
	if o, ok := r.(*onceResult); ok {
		return o
	}
	return &onceResult{r: r}
}

type onceResult struct {
	once sync.Once
	r    Result
}

func (o *onceResult) Success(value any) {
	o.once.Do(func() { o.r.Success(value) })
}

func (o *onceResult) Error(code, message string, details any) {
	o.once.Do(func() { o.r.Error(code, message, details) })
}

func (o *onceResult) NotImplemented() {
	o.once.Do(o.r.NotImplemented)
}
