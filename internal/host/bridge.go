// Package host is the host runtime side of the controller: it owns preview
// textures and permission state, and exposes the method and event channels
// over HTTP.
package host

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/config"
	"github.com/smazurov/camctl/internal/logging"
)

// ErrNoPendingPrompt is returned when a permission answer arrives with no prompt open.
var ErrNoPendingPrompt = errors.New("no permission request pending")

// TextureInfo describes a live preview texture.
type TextureInfo struct {
	ID     int64 `json:"id" example:"1" doc:"Texture identifier"`
	Width  int   `json:"width" example:"640" doc:"Default buffer width, 0 until a surface is created"`
	Height int   `json:"height" example:"480" doc:"Default buffer height"`
}

// Bridge implements camera.Host. Permission checks follow a fixed policy;
// with the prompt policy requests stay open until AnswerPermissions.
type Bridge struct {
	policy string
	screen camera.Size
	logger *slog.Logger

	mu       sync.Mutex
	nextID   int64
	textures map[int64]*texture
	granted  map[camera.Permission]bool
	prompt   *permissionPrompt
}

var _ camera.Host = (*Bridge)(nil)

type permissionPrompt struct {
	perms []camera.Permission
	done  func(bool)
}

// NewBridge creates a bridge with the given permission policy.
func NewBridge(policy string, screen camera.Size) (*Bridge, error) {
	switch policy {
	case config.PermissionsGrant, config.PermissionsDeny, config.PermissionsPrompt:
	default:
		return nil, fmt.Errorf("invalid permissions policy %q", policy)
	}
	return &Bridge{
		policy:   policy,
		screen:   screen,
		logger:   logging.GetLogger("host"),
		textures: make(map[int64]*texture),
		granted:  make(map[camera.Permission]bool),
	}, nil
}

// Policy returns the permission policy.
func (b *Bridge) Policy() string { return b.policy }

// AllocatePreviewTexture registers a new texture. Ids are never reused.
func (b *Bridge) AllocatePreviewTexture() (camera.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	t := &texture{bridge: b, id: b.nextID}
	b.textures[t.id] = t
	b.logger.Debug("Allocated preview texture", "texture_id", t.id)
	return t, nil
}

// HasPermission implements camera.Host.
func (b *Bridge) HasPermission(p camera.Permission) bool {
	switch b.policy {
	case config.PermissionsGrant:
		return true
	case config.PermissionsDeny:
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.granted[p]
}

// RequestPermissions implements camera.Host. A new prompt replaces an
// unanswered one, which is answered with a denial.
func (b *Bridge) RequestPermissions(perms []camera.Permission, done func(granted bool)) {
	switch b.policy {
	case config.PermissionsGrant:
		done(true)
		return
	case config.PermissionsDeny:
		done(false)
		return
	}

	b.mu.Lock()
	previous := b.prompt
	b.prompt = &permissionPrompt{perms: slices.Clone(perms), done: done}
	b.mu.Unlock()

	b.logger.Info("Permission prompt opened", "permissions", perms)
	if previous != nil {
		b.logger.Warn("Replacing unanswered permission prompt", "permissions", previous.perms)
		previous.done(false)
	}
}

// PendingPermissions lists the permissions of the open prompt.
func (b *Bridge) PendingPermissions() []camera.Permission {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.prompt == nil {
		return nil
	}
	return slices.Clone(b.prompt.perms)
}

// AnswerPermissions closes the open prompt. A grant covers every permission
// the prompt asked for.
func (b *Bridge) AnswerPermissions(granted bool) error {
	b.mu.Lock()
	prompt := b.prompt
	b.prompt = nil
	if prompt != nil && granted {
		for _, p := range prompt.perms {
			b.granted[p] = true
		}
	}
	b.mu.Unlock()

	if prompt == nil {
		return ErrNoPendingPrompt
	}
	b.logger.Info("Permission prompt answered", "permissions", prompt.perms, "granted", granted)
	prompt.done(granted)
	return nil
}

// ScreenResolution implements camera.Host.
func (b *Bridge) ScreenResolution() camera.Size { return b.screen }

// Textures lists live textures in allocation order.
func (b *Bridge) Textures() []TextureInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TextureInfo, 0, len(b.textures))
	for _, t := range b.textures {
		out = append(out, TextureInfo{ID: t.id, Width: t.size.Width, Height: t.size.Height})
	}
	slices.SortFunc(out, func(a, c TextureInfo) int { return cmp.Compare(a.ID, c.ID) })
	return out
}

func (b *Bridge) release(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.textures[id]; ok {
		delete(b.textures, id)
		b.logger.Debug("Released preview texture", "texture_id", id)
	}
}

type texture struct {
	bridge *Bridge
	id     int64
	size   camera.Size
}

func (t *texture) ID() int64 { return t.id }

func (t *texture) Surface(bufferSize camera.Size) camera.Surface {
	t.bridge.mu.Lock()
	t.size = bufferSize
	t.bridge.mu.Unlock()
	return camera.Surface(fmt.Sprintf("texture-%d", t.id))
}

func (t *texture) Release() { t.bridge.release(t.id) }
