package dispatch

import (
	"github.com/smazurov/camctl/internal/camera"
)

// PermissionGate serializes permission prompts. At most one continuation is
// pending at a time. It must only be used from the main loop.
type PermissionGate struct {
	host    camera.Host
	exec    camera.Executor
	pending func()
}

// NewPermissionGate creates a gate that asks host and resumes on exec.
func NewPermissionGate(host camera.Host, exec camera.Executor) *PermissionGate {
	return &PermissionGate{host: host, exec: exec}
}

// Pending reports whether a continuation is waiting for an answer.
func (g *PermissionGate) Pending() bool {
	return g.pending != nil
}

// Request makes sure perms have been asked for and then runs cont exactly
// once on the main loop, whatever the answer. The continuation checks the
// outcome itself.
func (g *PermissionGate) Request(perms []camera.Permission, cont func()) error {
	if g.pending != nil {
		return camera.NewError(camera.KindPermissionOngoing, "Camera permission request ongoing", nil)
	}
	g.pending = cont

	missing := make([]camera.Permission, 0, len(perms))
	for _, p := range perms {
		if !g.host.HasPermission(p) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		g.resolve()
		return nil
	}

	g.host.RequestPermissions(missing, func(bool) {
		g.exec.Post(g.resolve)
	})
	return nil
}

func (g *PermissionGate) resolve() {
	cont := g.pending
	if cont == nil {
		return
	}
	g.pending = nil
	cont()
}
