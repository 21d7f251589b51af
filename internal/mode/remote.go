package mode

import (
	"github.com/kfujii/agenthook/internal/trigger"
)

// remoteMode handles external repository_dispatch triggers sent by other
// systems through the GitHub API.
type remoteMode struct{}

func (m *remoteMode) Name() Name {
	return RemoteDispatch
}

func (m *remoteMode) Description() string {
	return "runs external repository_dispatch triggers"
}

func (m *remoteMode) ShouldTrigger(e trigger.Event) bool {
	return e.Kind == trigger.KindRepositoryDispatch
}

func (m *remoteMode) AllowedTools() []string {
	return nil
}

func (m *remoteMode) DisallowedTools() []string {
	return nil
}

func (m *remoteMode) CreatesTrackingComment() bool {
	return false
}

func (m *remoteMode) PrepareContext(e trigger.Event) Context {
	return Context{
		Mode:  RemoteDispatch,
		Event: e,
	}
}
