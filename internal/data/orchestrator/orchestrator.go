// File path: internal/data/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/llm"
	"github.com/nicodishanthj/rfpassist/internal/sharepoint"
	"github.com/nicodishanthj/rfpassist/internal/sqlite"
	"github.com/nicodishanthj/rfpassist/internal/workflow"
)

type closer interface {
	Close() error
}

// Orchestrator wires the store, language model provider and remote
// repository into the workflow manager used by the API layer.
type Orchestrator struct {
	cfg Config

	store    *sqlite.Store
	provider llm.Provider
	remote   *sharepoint.Client
	workflow *workflow.Manager

	closers []closer
}

// New constructs an orchestrator from the provided configuration and optional
// overrides.
func New(ctx context.Context, cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg = applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	logger := common.Logger()

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init sqlite store: %w", err)
	}

	provider := settings.provider
	if provider == nil {
		provider = llm.NewProvider(llm.LoadConfig())
	}

	remote := settings.remote
	if remote == nil {
		remote = sharepoint.NewClient(sharepoint.LoadConfig())
	}

	mgr, err := workflow.NewManager(store, provider, remote, workflow.Config{
		StorageDir:       cfg.StorageDir,
		KnowledgeBaseDir: cfg.KBDir,
		MaxKBChars:       cfg.KBMaxChars,
		HouseRules:       cfg.HouseRules,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init workflow: %w", err)
	}
	logger.Info("orchestrator: initialised", "storage", cfg.StorageDir, "database", cfg.DatabasePath, "kb", cfg.KBDir, "provider", provider.Name(), "remote_configured", remote.Configured())

	orch := &Orchestrator{
		cfg:      cfg,
		store:    store,
		provider: provider,
		remote:   remote,
		workflow: mgr,
	}
	orch.closers = append(orch.closers, store)
	return orch, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	if o == nil {
		return Config{}
	}
	return o.cfg
}

// Store exposes the SQLite store.
func (o *Orchestrator) Store() *sqlite.Store {
	if o == nil {
		return nil
	}
	return o.store
}

// Provider exposes the language model provider.
func (o *Orchestrator) Provider() llm.Provider {
	if o == nil {
		return nil
	}
	return o.provider
}

// Workflow exposes the run workflow manager.
func (o *Orchestrator) Workflow() *workflow.Manager {
	if o == nil {
		return nil
	}
	return o.workflow
}

// Close releases any resources associated with the orchestrator.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	var err error
	for i := len(o.closers) - 1; i >= 0; i-- {
		closer := o.closers[i]
		if closer == nil {
			continue
		}
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}
