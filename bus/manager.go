package bus

import (
	"fmt"
	"os"

	"github.com/mudler/go-pluggable"

	"github.com/piclone-io/piclone-sdk/types"
)

func NewBus(withEvents ...pluggable.EventType) *Bus {
	if len(withEvents) == 0 {
		withEvents = AllEvents
	}
	return &Bus{
		Manager: pluggable.NewManager(withEvents),
	}
}

// Bus carries engine lifecycle events to whatever is listening: the menu
// process, a web preview, or external plugin binaries discovered on disk.
// Publishing is fire-and-forget; a missing or broken subscriber must never
// affect a running operation.
type Bus struct {
	*pluggable.Manager
	registered   bool
	hasLogger    bool
	log          types.PicloneLogger
	pluginPrefix string
	pluginPaths  []string
}

type Options func(b *Bus)

// WithLogger overrides the default bus logger.
func WithLogger(log types.PicloneLogger) Options {
	return func(b *Bus) {
		b.log = log
		b.hasLogger = true
	}
}

// WithPluginPrefix overrides the executable prefix used when autoloading
// plugin binaries.
func WithPluginPrefix(prefix string) Options {
	return func(b *Bus) {
		b.pluginPrefix = prefix
	}
}

// WithPluginPaths overrides the directories searched for plugin binaries.
func WithPluginPaths(paths ...string) Options {
	return func(b *Bus) {
		b.pluginPaths = paths
	}
}

// Initialize discovers plugin binaries and registers the response handler.
// Safe to call more than once.
func (b *Bus) Initialize(o ...Options) {
	if b.registered {
		return
	}
	for _, opt := range o {
		opt(b)
	}

	if b.pluginPrefix == "" {
		b.pluginPrefix = "piclone-plugin"
	}
	if b.pluginPaths == nil {
		wd, _ := os.Getwd()
		b.pluginPaths = []string{"/usr/local/lib/piclone/plugins", wd}
	}
	if !b.hasLogger {
		b.log = types.NewNullLogger()
		b.hasLogger = true
	}

	b.Autoload(b.pluginPrefix, b.pluginPaths...).Register()
	for i := range b.Events {
		e := b.Events[i]
		b.Response(e, func(p *pluggable.Plugin, r *pluggable.EventResponse) {
			b.log.Logger.Debug().Str("from", p.Name).Str("at", p.Executable).Str("type", string(e)).Msg("Plugin response")
			if r.Errored() {
				b.log.Logger.Error().Err(fmt.Errorf("%s", r.Error)).Str("from", p.Name).Str("type", string(e)).Msg("Plugin errored")
			}
		})
	}
	b.registered = true
}

// PublishOperation emits one lifecycle event. Errors are logged and
// swallowed on purpose.
func (b *Bus) PublishOperation(event pluggable.EventType, payload OperationPayload) {
	if b == nil || b.Manager == nil {
		return
	}
	if !b.hasLogger {
		b.log = types.NewNullLogger()
		b.hasLogger = true
	}
	if _, err := b.Manager.Publish(event, payload); err != nil {
		b.log.Logger.Debug().Err(err).Str("event", string(event)).Msg("Event publish failed")
	}
}
