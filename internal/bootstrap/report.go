package bootstrap

import (
	"errors"

	"ormext/internal/container"
	"ormext/internal/dbconn"
	"ormext/internal/extension"
	"ormext/internal/ormconfig"
	"ormext/internal/platform"
	"ormext/internal/registration"
)

// Report describes what a bootstrap run registered.
type Report struct {
	BuildID     string                          `yaml:"build_id"`
	Fingerprint string                          `yaml:"fingerprint"`
	Extension   extension.Stats                 `yaml:"extension"`
	Types       []TypeReport                    `yaml:"types"`
	Connections []ConnectionReport              `yaml:"connections,omitempty"`
	Functions   map[string][]ormconfig.Function `yaml:"functions,omitempty"`
	Plan        container.Plan                  `yaml:"plan"`
}

// TypeReport is one catalog entry.
type TypeReport struct {
	Name    string `yaml:"name"`
	Handler string `yaml:"handler"`
}

// ConnectionReport lists the custom mappings of one connection platform.
type ConnectionReport struct {
	Name     string             `yaml:"name"`
	Driver   string             `yaml:"driver"`
	Platform platform.Family    `yaml:"platform"`
	Mappings []platform.Mapping `yaml:"mappings"`
}

// ErrNotInitialized is returned by Report before Init succeeded.
var ErrNotInitialized = errors.New("bootstrap: not initialized")

// Report summarizes the initialized App.
func (a *App) Report() (*Report, error) {
	a.stateMu.Lock()
	initialized, c, ext, buildID := a.initialized, a.container, a.ext, a.buildID
	a.stateMu.Unlock()
	if !initialized {
		return nil, ErrNotInitialized
	}

	r := &Report{
		BuildID:     buildID,
		Fingerprint: registration.Fingerprint(),
		Extension:   ext.Stats(),
		Plan:        c.Plan(),
	}

	for _, name := range a.catalog.Names() {
		h, err := a.catalog.Lookup(name)
		if err != nil {
			return nil, err
		}
		r.Types = append(r.Types, TypeReport{Name: name, Handler: h.ID()})
	}

	conns, err := container.ServicesOf[*dbconn.Connection](c, extension.KindConnection)
	if err != nil {
		return nil, err
	}
	for _, conn := range conns {
		p := conn.DatabasePlatform()
		r.Connections = append(r.Connections, ConnectionReport{
			Name:     conn.Name(),
			Driver:   conn.Driver(),
			Platform: p.Family(),
			Mappings: p.CustomMappings(),
		})
	}

	cfgs, err := container.ServicesOf[*ormconfig.Configuration](c, extension.KindQueryConfiguration)
	if err != nil {
		return nil, err
	}
	for _, cfg := range cfgs {
		for _, cat := range ormconfig.Categories {
			fns := cfg.Functions(cat)
			if len(fns) == 0 {
				continue
			}
			if r.Functions == nil {
				r.Functions = make(map[string][]ormconfig.Function)
			}
			r.Functions[string(cat)] = fns
		}
	}

	return r, nil
}
