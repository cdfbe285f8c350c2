package endpoints

import (
	"context"

	"github.com/jmylchreest/hostbridge/internal/app"
)

type saltArgs struct {
	Salt string `json:"salt"`
}

// newInternalModule serves the bridge's own calls. validateSalt confirms an
// event script was issued by the host for the calling window.
func newInternalModule(m *app.Manager) *module {
	return &module{
		name: ModuleInternal,
		commands: map[string]command{
			"validateSalt": func(_ context.Context, msg *app.InvokeMessage) (any, error) {
				var args saltArgs
				if err := msg.Decode(&args); err != nil {
					return nil, err
				}
				return m.VerifySalt(msg.Window.Label(), args.Salt), nil
			},
		},
	}
}
