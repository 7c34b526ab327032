package activation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"nixgen/internal/closure"
	"nixgen/internal/generation"
	"nixgen/internal/logging"
	"nixgen/internal/runner"
	"nixgen/internal/services"
	"nixgen/internal/services/nix"
)

// State is the lifecycle position of one apply or rollback run.
type State string

const (
	StateBuilding             State = "building"
	StateBuilt                State = "built"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateActivating           State = "activating"
	StateActivated            State = "activated"
	StateFailed               State = "failed"
	StateRolledBack           State = "rolled_back"
)

// Variant selects what happens with a successfully built closure.
type Variant string

const (
	// VariantSwitch activates the configuration now and makes it the boot
	// default.
	VariantSwitch Variant = "switch"
	// VariantTest activates the configuration now without touching the boot
	// default.
	VariantTest Variant = "test"
	// VariantBoot makes the configuration the boot default without activating
	// it now.
	VariantBoot Variant = "boot"
	// VariantBuild stops after the build and reports the closure.
	VariantBuild Variant = "build"
)

// Action maps the variant onto a switch-to-configuration action.
func (v Variant) Action() string {
	return string(v)
}

// ParseVariant validates a variant name.
func ParseVariant(name string) (Variant, error) {
	switch Variant(name) {
	case VariantSwitch, VariantTest, VariantBoot, VariantBuild:
		return Variant(name), nil
	}
	return "", fmt.Errorf("unknown variant %q", name)
}

// Builder produces a system closure from a flake reference.
type Builder interface {
	Build(ctx context.Context, req nix.BuildRequest) (string, *runner.Result, error)
}

// Activator runs a built closure's activation script.
type Activator interface {
	Activate(ctx context.Context, req nix.ActivateRequest) (*runner.Result, error)
}

// ConfirmFunc asks the operator to approve an activation. False aborts.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Request describes one apply run.
type Request struct {
	Profile        string
	Flake          string
	Hostname       string
	Variant        Variant
	Specialisation string
	OutLink        string
	ExtraArgs      []string
	// DryRun builds and diffs but never activates or records.
	DryRun bool
	// Ask requires operator confirmation before activation.
	Ask    bool
	Stream func(runner.Line)
}

// RollbackRequest describes one rollback run.
type RollbackRequest struct {
	Profile string
	// To selects a specific generation number. Nil picks the most recent
	// superseded generation.
	To     *uint64
	DryRun bool
	Ask    bool
	Stream func(runner.Line)
}

// Outcome reports where a run ended and what it produced.
type Outcome struct {
	State       State
	ClosurePath string
	Generation  *generation.Generation
	Diff        []closure.Entry
}

// Machine drives the build, confirm, record, activate sequence and its
// compensation paths. Exactly one run mutates a profile at a time; the
// registry's profile lock enforces that across processes.
type Machine struct {
	builder   Builder
	activator Activator
	resolver  closure.Resolver
	store     *generation.Store
	confirm   ConfirmFunc
	logger    *slog.Logger
}

// New assembles a machine. A nil confirm function auto-approves.
func New(builder Builder, activator Activator, resolver closure.Resolver, store *generation.Store, confirm ConfirmFunc, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if confirm == nil {
		confirm = func(context.Context, string) (bool, error) { return true, nil }
	}
	return &Machine{
		builder:   builder,
		activator: activator,
		resolver:  resolver,
		store:     store,
		confirm:   confirm,
		logger:    logger,
	}
}

// Apply runs the full lifecycle for one configuration change. The sequence
// is build, diff, confirm, append a pending generation, activate, swap the
// profile link, then promote the generation. Cancellation is honored up to
// the point activation starts; from there the run completes or fails on its
// own terms so the system is never left half-activated.
func (m *Machine) Apply(ctx context.Context, req Request) (*Outcome, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(services.WithProfile(ctx, req.Profile), runID)
	ctx = services.WithOperation(ctx, "apply")
	logger := logging.WithContext(ctx, m.logger).With(
		logging.String(logging.FieldComponent, "activation"),
	)

	outcome := &Outcome{State: StateBuilding}

	logger.Info("building system closure",
		logging.String("flake", req.Flake),
		logging.String("hostname", req.Hostname),
		logging.String("variant", string(req.Variant)),
	)
	closurePath, _, err := m.builder.Build(ctx, nix.BuildRequest{
		Flake:     req.Flake,
		Hostname:  req.Hostname,
		OutLink:   req.OutLink,
		ExtraArgs: req.ExtraArgs,
		Stream:    req.Stream,
	})
	if err != nil {
		outcome.State = StateFailed
		return outcome, err
	}
	outcome.State = StateBuilt
	outcome.ClosurePath = closurePath
	logger.Info("build complete", logging.String("closure", closurePath))

	outcome.Diff = m.diffAgainstActive(ctx, req.Profile, closurePath, logger)

	if req.DryRun || req.Variant == VariantBuild {
		return outcome, nil
	}

	if req.Ask {
		outcome.State = StateAwaitingConfirmation
		ok, err := m.confirm(ctx, fmt.Sprintf("Apply configuration to profile %q?", req.Profile))
		if err != nil {
			return outcome, fmt.Errorf("read confirmation: %w", err)
		}
		if !ok {
			return outcome, services.Wrap(services.ErrUserAborted, "activation", "confirm", "declined by operator", nil)
		}
	}

	lock, err := m.store.LockProfile(req.Profile)
	if err != nil {
		return outcome, services.Wrap(services.ErrRegistryWrite, "activation", "lock", "acquire profile lock", err)
	}
	defer func() { _ = lock.Unlock() }()

	gen, err := m.store.Append(ctx, req.Profile, closurePath, req.Specialisation)
	if err != nil {
		return outcome, err
	}
	outcome.Generation = gen
	logger.Info("recorded pending generation", logging.Uint64(logging.FieldGeneration, gen.Number))

	// Past this point the run must finish even if the caller's context is
	// cancelled; an interrupted activation is worse than a slow one.
	critical := context.WithoutCancel(ctx)

	outcome.State = StateActivating
	if _, err := m.activator.Activate(critical, nix.ActivateRequest{
		ClosurePath:    closurePath,
		Action:         req.Variant.Action(),
		Specialisation: req.Specialisation,
		Stream:         req.Stream,
	}); err != nil {
		outcome.State = StateFailed
		if markErr := m.store.MarkFailed(critical, req.Profile, gen.Number); markErr != nil {
			logger.Error("failed to record activation failure", logging.Error(markErr))
		}
		return outcome, err
	}

	previousTarget, err := m.store.CurrentTarget(req.Profile)
	if err != nil {
		logger.Warn("cannot read current profile link", logging.Error(err))
	}
	if err := m.store.SwitchProfileLink(req.Profile, closurePath); err != nil {
		outcome.State = StateFailed
		if markErr := m.store.MarkFailed(critical, req.Profile, gen.Number); markErr != nil {
			logger.Error("failed to record activation failure", logging.Error(markErr))
		}
		return outcome, services.Wrap(services.ErrRegistryWrite, "activation", "switch link", "swap profile link", err)
	}

	if err := m.store.MarkActive(critical, req.Profile, gen.Number); err != nil {
		m.restoreProfileLink(req.Profile, previousTarget, logger)
		outcome.State = StateRolledBack
		return outcome, services.Wrap(services.ErrRegistryWrite, "activation", "promote",
			fmt.Sprintf("registry update failed after activation; profile link reverted from generation %d", gen.Number), err)
	}

	gen.Status = generation.StatusActive
	outcome.State = StateActivated
	logger.Info("activation complete",
		logging.Uint64(logging.FieldGeneration, gen.Number),
		logging.String("action", req.Variant.Action()),
	)
	return outcome, nil
}

// Rollback re-activates an earlier generation. Without an explicit target it
// picks the most recent superseded generation.
func (m *Machine) Rollback(ctx context.Context, req RollbackRequest) (*Outcome, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(services.WithProfile(ctx, req.Profile), runID)
	ctx = services.WithOperation(ctx, "rollback")
	logger := logging.WithContext(ctx, m.logger).With(
		logging.String(logging.FieldComponent, "activation"),
	)

	outcome := &Outcome{}

	target, err := m.rollbackTarget(ctx, req.Profile, req.To)
	if err != nil {
		return outcome, err
	}
	outcome.ClosurePath = target.ClosurePath
	outcome.Generation = target
	outcome.State = StateBuilt
	logger.Info("rolling back",
		logging.Uint64(logging.FieldGeneration, target.Number),
		logging.String("closure", target.ClosurePath),
	)

	outcome.Diff = m.diffAgainstActive(ctx, req.Profile, target.ClosurePath, logger)

	if req.DryRun {
		return outcome, nil
	}

	if req.Ask {
		outcome.State = StateAwaitingConfirmation
		ok, err := m.confirm(ctx, fmt.Sprintf("Roll back profile %q to generation %d?", req.Profile, target.Number))
		if err != nil {
			return outcome, fmt.Errorf("read confirmation: %w", err)
		}
		if !ok {
			return outcome, services.Wrap(services.ErrUserAborted, "activation", "confirm", "declined by operator", nil)
		}
	}

	lock, err := m.store.LockProfile(req.Profile)
	if err != nil {
		return outcome, services.Wrap(services.ErrRegistryWrite, "activation", "lock", "acquire profile lock", err)
	}
	defer func() { _ = lock.Unlock() }()

	critical := context.WithoutCancel(ctx)

	previousTarget, err := m.store.CurrentTarget(req.Profile)
	if err != nil {
		logger.Warn("cannot read current profile link", logging.Error(err))
	}
	if err := m.store.SwitchProfileLink(req.Profile, target.ClosurePath); err != nil {
		outcome.State = StateFailed
		return outcome, services.Wrap(services.ErrRegistryWrite, "activation", "switch link", "swap profile link", err)
	}

	outcome.State = StateActivating
	if _, err := m.activator.Activate(critical, nix.ActivateRequest{
		ClosurePath:    target.ClosurePath,
		Action:         VariantSwitch.Action(),
		Specialisation: target.Specialisation,
		Stream:         req.Stream,
	}); err != nil {
		m.restoreProfileLink(req.Profile, previousTarget, logger)
		outcome.State = StateFailed
		return outcome, err
	}

	if err := m.store.MarkActive(critical, req.Profile, target.Number); err != nil {
		outcome.State = StateRolledBack
		return outcome, services.Wrap(services.ErrRegistryWrite, "activation", "promote",
			fmt.Sprintf("registry update failed after rollback to generation %d", target.Number), err)
	}

	target.Status = generation.StatusActive
	outcome.State = StateActivated
	logger.Info("rollback complete", logging.Uint64(logging.FieldGeneration, target.Number))
	return outcome, nil
}

func (m *Machine) rollbackTarget(ctx context.Context, profile string, to *uint64) (*generation.Generation, error) {
	if to != nil {
		gen, err := m.store.Get(ctx, profile, *to)
		if err != nil {
			return nil, err
		}
		if gen == nil {
			return nil, fmt.Errorf("generation %d not found for profile %s", *to, profile)
		}
		if gen.Status == generation.StatusActive {
			return nil, fmt.Errorf("generation %d is already active", *to)
		}
		return gen, nil
	}

	generations, err := m.store.List(ctx, profile)
	if err != nil {
		return nil, err
	}
	active, err := m.store.Active(ctx, profile)
	if err != nil {
		return nil, err
	}
	for _, gen := range generations {
		if gen.Status != generation.StatusSuperseded {
			continue
		}
		if active != nil && gen.Number >= active.Number {
			continue
		}
		return gen, nil
	}
	return nil, fmt.Errorf("profile %s has no generation to roll back to", profile)
}

// diffAgainstActive computes the closure diff between the profile's active
// generation and the candidate closure. The diff is informational here, so
// resolution failures degrade to an empty diff instead of aborting the run.
func (m *Machine) diffAgainstActive(ctx context.Context, profile, candidate string, logger *slog.Logger) []closure.Entry {
	if m.resolver == nil {
		return nil
	}
	active, err := m.store.Active(ctx, profile)
	if err != nil || active == nil {
		return nil
	}
	if active.ClosurePath == candidate {
		return nil
	}
	before, err := m.resolver(ctx, active.ClosurePath)
	if err != nil {
		logger.Warn("cannot resolve active closure", logging.Error(err))
		return nil
	}
	after, err := m.resolver(ctx, candidate)
	if err != nil {
		logger.Warn("cannot resolve candidate closure", logging.Error(err))
		return nil
	}
	return closure.Diff(before, after)
}

func (m *Machine) restoreProfileLink(profile, previousTarget string, logger *slog.Logger) {
	if previousTarget == "" {
		return
	}
	if err := m.store.SwitchProfileLink(profile, previousTarget); err != nil {
		logger.Error("failed to restore profile link",
			logging.String("target", previousTarget),
			logging.Error(err),
		)
		return
	}
	logger.Info("profile link restored", logging.String("target", previousTarget))
}
