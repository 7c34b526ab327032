package activation_test

import (
	"context"
	"errors"
	"testing"

	"nixgen/internal/activation"
	"nixgen/internal/closure"
	"nixgen/internal/generation"
	"nixgen/internal/runner"
	"nixgen/internal/services"
	"nixgen/internal/services/nix"
	"nixgen/internal/testsupport"
)

type fakeBuilder struct {
	path  string
	err   error
	calls int
}

func (f *fakeBuilder) Build(context.Context, nix.BuildRequest) (string, *runner.Result, error) {
	f.calls++
	if f.err != nil {
		return "", nil, f.err
	}
	return f.path, &runner.Result{}, nil
}

type fakeActivator struct {
	actions  []string
	closures []string
	err      error
	// sabotage runs during activation, before the registry promote step.
	sabotage func()
}

func (f *fakeActivator) Activate(_ context.Context, req nix.ActivateRequest) (*runner.Result, error) {
	f.actions = append(f.actions, req.Action)
	f.closures = append(f.closures, req.ClosurePath)
	if f.sabotage != nil {
		f.sabotage()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &runner.Result{}, nil
}

func staticResolver(closures map[string]*closure.Closure) closure.Resolver {
	return func(_ context.Context, path string) (*closure.Closure, error) {
		if c, ok := closures[path]; ok {
			return c, nil
		}
		return &closure.Closure{Path: path}, nil
	}
}

func applyOnce(t *testing.T, machine *activation.Machine, variant activation.Variant) *activation.Outcome {
	t.Helper()
	outcome, err := machine.Apply(context.Background(), activation.Request{
		Profile:  "system",
		Flake:    ".",
		Hostname: "host",
		Variant:  variant,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	return outcome
}

func TestApplySwitchActivatesAndRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	outcome := applyOnce(t, machine, activation.VariantSwitch)

	if outcome.State != activation.StateActivated {
		t.Fatalf("expected activated, got %s", outcome.State)
	}
	if outcome.Generation == nil || outcome.Generation.Number != 1 {
		t.Fatalf("unexpected generation: %#v", outcome.Generation)
	}
	if len(activator.actions) != 1 || activator.actions[0] != "switch" {
		t.Fatalf("unexpected activation actions: %v", activator.actions)
	}

	target, err := store.CurrentTarget("system")
	if err != nil {
		t.Fatalf("CurrentTarget failed: %v", err)
	}
	if target != builder.path {
		t.Fatalf("profile link points at %s, want %s", target, builder.path)
	}

	active, err := store.Active(context.Background(), "system")
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if active == nil || active.Number != 1 {
		t.Fatalf("expected generation 1 active, got %#v", active)
	}
}

func TestApplySupersedesPreviousGeneration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	applyOnce(t, machine, activation.VariantSwitch)
	builder.path = "/nix/store/bbb-system"
	applyOnce(t, machine, activation.VariantSwitch)

	generations, err := store.List(context.Background(), "system")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(generations) != 2 {
		t.Fatalf("expected 2 generations, got %d", len(generations))
	}
	if generations[0].Number != 2 || generations[0].Status != generation.StatusActive {
		t.Fatalf("expected generation 2 active, got %#v", generations[0])
	}
	if generations[1].Status != generation.StatusSuperseded {
		t.Fatalf("expected generation 1 superseded, got %#v", generations[1])
	}
}

func TestApplyComputesDiffAgainstActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	resolver := staticResolver(map[string]*closure.Closure{
		"/nix/store/aaa-system": {Path: "/nix/store/aaa-system", Components: []closure.Component{
			{Name: "pkg", Version: "1.0", Hash: "hash1"},
		}},
		"/nix/store/bbb-system": {Path: "/nix/store/bbb-system", Components: []closure.Component{
			{Name: "pkg", Version: "1.1", Hash: "hash2"},
		}},
	})
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, resolver, store, nil, nil)

	applyOnce(t, machine, activation.VariantSwitch)
	builder.path = "/nix/store/bbb-system"
	outcome := applyOnce(t, machine, activation.VariantSwitch)

	if len(outcome.Diff) != 1 {
		t.Fatalf("expected one diff entry, got %#v", outcome.Diff)
	}
	entry := outcome.Diff[0]
	if entry.Name != "pkg" || entry.Kind != closure.KindUpgraded {
		t.Fatalf("unexpected diff entry: %#v", entry)
	}
}

func TestApplyBuildFailureRecordsNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{err: services.Wrap(services.ErrBuildFailed, "nix", "build", "exit code 1", nil)}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	outcome, err := machine.Apply(context.Background(), activation.Request{
		Profile:  "system",
		Flake:    ".",
		Hostname: "host",
		Variant:  activation.VariantSwitch,
	})
	if !errors.Is(err, services.ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	if outcome.State != activation.StateFailed {
		t.Fatalf("expected failed state, got %s", outcome.State)
	}
	if len(activator.actions) != 0 {
		t.Fatal("activation must not run after a failed build")
	}
	generations, err := store.List(context.Background(), "system")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(generations) != 0 {
		t.Fatalf("expected no generations recorded, got %d", len(generations))
	}
}

func TestApplyActivationFailureMarksGenerationFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{err: services.Wrap(services.ErrActivationFailed, "nix", "activate", "exit code 4", nil)}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	outcome, err := machine.Apply(context.Background(), activation.Request{
		Profile:  "system",
		Flake:    ".",
		Hostname: "host",
		Variant:  activation.VariantSwitch,
	})
	if !errors.Is(err, services.ErrActivationFailed) {
		t.Fatalf("expected ErrActivationFailed, got %v", err)
	}
	if outcome.State != activation.StateFailed {
		t.Fatalf("expected failed state, got %s", outcome.State)
	}

	gen, getErr := store.Get(context.Background(), "system", 1)
	if getErr != nil {
		t.Fatalf("Get failed: %v", getErr)
	}
	if gen == nil || gen.Status != generation.StatusFailed {
		t.Fatalf("expected generation 1 failed, got %#v", gen)
	}

	target, tErr := store.CurrentTarget("system")
	if tErr != nil {
		t.Fatalf("CurrentTarget failed: %v", tErr)
	}
	if target != "" {
		t.Fatalf("profile link must not move on activation failure, got %s", target)
	}
}

func TestApplyRegistryFailureRestoresProfileLink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	applyOnce(t, machine, activation.VariantSwitch)

	// Close the registry mid-activation so the promote step fails after the
	// activation script has already run.
	builder.path = "/nix/store/bbb-system"
	activator.sabotage = func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	}

	outcome, err := machine.Apply(context.Background(), activation.Request{
		Profile:  "system",
		Flake:    ".",
		Hostname: "host",
		Variant:  activation.VariantSwitch,
	})
	if !errors.Is(err, services.ErrRegistryWrite) {
		t.Fatalf("expected ErrRegistryWrite, got %v", err)
	}
	if outcome.State != activation.StateRolledBack {
		t.Fatalf("expected rolled back state, got %s", outcome.State)
	}

	target, tErr := store.CurrentTarget("system")
	if tErr != nil {
		t.Fatalf("CurrentTarget failed: %v", tErr)
	}
	if target != "/nix/store/aaa-system" {
		t.Fatalf("profile link not restored, points at %s", target)
	}
}

func TestApplyDeclinedConfirmationAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	decline := func(context.Context, string) (bool, error) { return false, nil }
	machine := activation.New(builder, activator, nil, store, decline, nil)

	_, err := machine.Apply(context.Background(), activation.Request{
		Profile:  "system",
		Flake:    ".",
		Hostname: "host",
		Variant:  activation.VariantSwitch,
		Ask:      true,
	})
	if !errors.Is(err, services.ErrUserAborted) {
		t.Fatalf("expected ErrUserAborted, got %v", err)
	}
	if len(activator.actions) != 0 {
		t.Fatal("activation must not run after a declined confirmation")
	}
	generations, listErr := store.List(context.Background(), "system")
	if listErr != nil {
		t.Fatalf("List failed: %v", listErr)
	}
	if len(generations) != 0 {
		t.Fatalf("expected no generations recorded, got %d", len(generations))
	}
}

func TestApplyDryRunStopsAtBuilt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	outcome, err := machine.Apply(context.Background(), activation.Request{
		Profile:  "system",
		Flake:    ".",
		Hostname: "host",
		Variant:  activation.VariantSwitch,
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if outcome.State != activation.StateBuilt {
		t.Fatalf("expected built state, got %s", outcome.State)
	}
	if len(activator.actions) != 0 {
		t.Fatal("dry run must not activate")
	}
}

func TestApplyBuildVariantStopsAtBuilt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	outcome := applyOnce(t, machine, activation.VariantBuild)
	if outcome.State != activation.StateBuilt {
		t.Fatalf("expected built state, got %s", outcome.State)
	}
	if outcome.ClosurePath != builder.path {
		t.Fatalf("expected closure path reported, got %q", outcome.ClosurePath)
	}
	if len(activator.actions) != 0 {
		t.Fatal("build variant must not activate")
	}
}

func TestRollbackPicksMostRecentSuperseded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	applyOnce(t, machine, activation.VariantSwitch)
	builder.path = "/nix/store/bbb-system"
	applyOnce(t, machine, activation.VariantSwitch)

	outcome, err := machine.Rollback(context.Background(), activation.RollbackRequest{Profile: "system"})
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if outcome.State != activation.StateActivated {
		t.Fatalf("expected activated state, got %s", outcome.State)
	}
	if outcome.Generation == nil || outcome.Generation.Number != 1 {
		t.Fatalf("expected rollback to generation 1, got %#v", outcome.Generation)
	}

	active, aErr := store.Active(context.Background(), "system")
	if aErr != nil {
		t.Fatalf("Active failed: %v", aErr)
	}
	if active == nil || active.Number != 1 {
		t.Fatalf("expected generation 1 active, got %#v", active)
	}
	target, tErr := store.CurrentTarget("system")
	if tErr != nil {
		t.Fatalf("CurrentTarget failed: %v", tErr)
	}
	if target != "/nix/store/aaa-system" {
		t.Fatalf("profile link points at %s, want the rollback closure", target)
	}
}

func TestRollbackWithoutCandidateFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	applyOnce(t, machine, activation.VariantSwitch)

	_, err := machine.Rollback(context.Background(), activation.RollbackRequest{Profile: "system"})
	if err == nil {
		t.Fatal("expected rollback with no candidate to fail")
	}
}

func TestRollbackActivationFailureRestoresLink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := &fakeBuilder{path: "/nix/store/aaa-system"}
	activator := &fakeActivator{}
	machine := activation.New(builder, activator, nil, store, nil, nil)

	applyOnce(t, machine, activation.VariantSwitch)
	builder.path = "/nix/store/bbb-system"
	applyOnce(t, machine, activation.VariantSwitch)

	activator.err = services.Wrap(services.ErrActivationFailed, "nix", "activate", "exit code 4", nil)
	outcome, err := machine.Rollback(context.Background(), activation.RollbackRequest{Profile: "system"})
	if !errors.Is(err, services.ErrActivationFailed) {
		t.Fatalf("expected ErrActivationFailed, got %v", err)
	}
	if outcome.State != activation.StateFailed {
		t.Fatalf("expected failed state, got %s", outcome.State)
	}

	target, tErr := store.CurrentTarget("system")
	if tErr != nil {
		t.Fatalf("CurrentTarget failed: %v", tErr)
	}
	if target != "/nix/store/bbb-system" {
		t.Fatalf("profile link not restored, points at %s", target)
	}
}
