package endpoints

import (
	"context"

	"github.com/jmylchreest/hostbridge/internal/app"
)

func newAppModule(m *app.Manager) *module {
	pkg := m.Package()
	return &module{
		name: ModuleApp,
		commands: map[string]command{
			"getName":        func(context.Context, *app.InvokeMessage) (any, error) { return pkg.Name, nil },
			"getVersion":     func(context.Context, *app.InvokeMessage) (any, error) { return pkg.Version, nil },
			"getPackageInfo": func(context.Context, *app.InvokeMessage) (any, error) { return pkg, nil },
		},
	}
}
