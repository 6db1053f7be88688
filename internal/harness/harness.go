// Package harness sequences one contract-compliance run: load stores,
// connect the bus, start the coordinator and plugins, collect traffic for
// a fixed window, validate, report, tear down.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"symbion.dev/harness/internal/config"
	"symbion.dev/harness/internal/core/contract"
	"symbion.dev/harness/internal/core/manifest"
	"symbion.dev/harness/internal/core/observation"
	"symbion.dev/harness/internal/core/report"
	"symbion.dev/harness/internal/core/validation"
	"symbion.dev/harness/internal/infrastructure/supervisor"
)

// ErrNoContracts indicates the contract store loaded empty. Fatal: a run
// with nothing to validate against is not meaningful.
var ErrNoContracts = errors.New("no contracts loaded")

// ErrNoPlugins indicates the manifest store loaded empty. Fatal.
var ErrNoPlugins = errors.New("no plugin manifests loaded")

// BusListener is the subscription session the harness observes through.
type BusListener interface {
	Connect(host string, port int, timeout time.Duration) error
	Disconnect()
}

// Supervisor owns the coordinator and plugin process lifecycles.
type Supervisor interface {
	StartCoordinator(ctx context.Context, env map[string]string) (*supervisor.ManagedProcess, error)
	StartPlugin(ctx context.Context, m manifest.Manifest) (*supervisor.ManagedProcess, error)
	TeardownAll(gracePeriod time.Duration)
}

// Harness runs one compliance test pass against a live system.
type Harness struct {
	cfg    *config.Config
	logger *slog.Logger
	log    *observation.Log
	bus    BusListener
	sup    Supervisor
	runID  string
}

// New assembles a Harness. The observation log must be the same one the
// bus listener appends to.
func New(cfg *config.Config, logger *slog.Logger, log *observation.Log, bus BusListener, sup Supervisor) *Harness {
	return &Harness{
		cfg:    cfg,
		logger: logger,
		log:    log,
		bus:    bus,
		sup:    sup,
		runID:  uuid.NewString()[:8],
	}
}

// Run executes the full sequence and returns the end-of-run report.
//
// A returned error means the tool could not run (empty stores, connect
// failure, coordinator start failure). Compliance gaps in the system under
// test never produce an error here; they are itemized in the report.
// Cancelling ctx during the collection window shortens it and proceeds to
// validation with whatever was collected; teardown always runs.
func (h *Harness) Run(ctx context.Context) (report.Report, error) {
	contracts, manifests, err := h.loadStores()
	if err != nil {
		return report.Report{}, err
	}

	if err := h.bus.Connect(h.cfg.BrokerHost, h.cfg.BrokerPort, h.cfg.ConnectTimeout()); err != nil {
		return report.Report{}, err
	}
	defer h.bus.Disconnect()
	defer h.sup.TeardownAll(h.cfg.TeardownGrace())

	if _, err := h.sup.StartCoordinator(ctx, map[string]string{"SYMBION_API_KEY": h.cfg.APIKey}); err != nil {
		return report.Report{}, err
	}

	h.startPlugins(ctx, manifests)
	h.collect(ctx)

	h.log.Freeze()
	snapshot := h.log.Snapshot()
	h.logger.Info("collection window closed", "observed", len(snapshot))

	results, diags := validation.NewValidator(h.logger).Validate(contracts, manifests, snapshot)
	return report.Build(h.runID, snapshot, results, diags), nil
}

func (h *Harness) loadStores() (*contract.Store, *manifest.Store, error) {
	contracts, err := contract.LoadDir(h.cfg.ContractsDir, h.logger)
	if err != nil {
		return nil, nil, err
	}
	manifests, err := manifest.LoadDir(h.cfg.PluginsDir, h.logger)
	if err != nil {
		return nil, nil, err
	}
	if contracts.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: directory %s", ErrNoContracts, h.cfg.ContractsDir)
	}
	if manifests.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: directory %s", ErrNoPlugins, h.cfg.PluginsDir)
	}
	h.logger.Info("stores loaded", "contracts", contracts.Len(), "plugins", manifests.Len())
	return contracts, manifests, nil
}

// startPlugins launches plugins best-effort in ascending start priority.
// A single plugin's failure excludes that plugin and the run continues.
func (h *Harness) startPlugins(ctx context.Context, manifests *manifest.Store) {
	for _, m := range manifests.StartOrder() {
		if !m.AutoStart {
			h.logger.Info("plugin not auto-started", "plugin", m.Name)
			continue
		}
		if _, err := h.sup.StartPlugin(ctx, m); err != nil {
			h.logger.Warn("plugin excluded from run", "plugin", m.Name, "error", err)
		}
	}
}

// collect blocks for the fixed collection window, or less if ctx is
// cancelled first.
func (h *Harness) collect(ctx context.Context) {
	window := h.cfg.CollectWindow()
	h.logger.Info("collecting messages", "window", window)
	select {
	case <-time.After(window):
	case <-ctx.Done():
		h.logger.Warn("collection interrupted, validating what was collected")
	}
}

// Preflight loads both stores and reports each declared contract that does
// not resolve, without starting any process or touching the bus.
func Preflight(cfg *config.Config, logger *slog.Logger) ([]validation.Diagnostic, error) {
	contracts, err := contract.LoadDir(cfg.ContractsDir, logger)
	if err != nil {
		return nil, err
	}
	manifests, err := manifest.LoadDir(cfg.PluginsDir, logger)
	if err != nil {
		return nil, err
	}

	var diags []validation.Diagnostic
	for _, m := range manifests.StartOrder() {
		for _, name := range m.Contracts {
			if _, ok := contracts.Get(name); !ok {
				diags = append(diags, validation.Diagnostic{
					Kind:     validation.DiagUnknownContract,
					Plugin:   m.Name,
					Contract: name,
					Message:  fmt.Sprintf("plugin %s references unknown contract %s", m.Name, name),
				})
			}
		}
	}
	return diags, nil
}
