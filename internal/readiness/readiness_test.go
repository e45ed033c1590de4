package readiness

import "testing"

// I7: ready() == true implies reason() == "ready" and conversely.
func TestReadiness_ReadyIffReasonReady(t *testing.T) {
	cases := []Snapshot{
		{},
		{CLIInitialized: true},
		{CLIInitialized: true, RegistryLoaded: true},
		{CLIInitialized: true, RegistryLoaded: true, RegistryPartial: true},
		{CLIInitialized: true, RegistryLoaded: true, RegistryStale: true},
		{CLIInitialized: true, RegistryLoaded: true, MountInProgress: true},
		{CLIInitialized: true, RegistryLoaded: true, RedisEnabled: true},
		{CLIInitialized: true, RegistryLoaded: true, RedisEnabled: true, RedisConnected: true},
		{CLIInitialized: true, RegistryLoaded: true},
	}

	for i, snap := range cases {
		ready := snap.Ready()
		reasonIsReady := snap.ResolveReason() == ReasonReady
		if ready != reasonIsReady {
			t.Errorf("case %d: Ready()=%v but ResolveReason()=%q", i, ready, snap.ResolveReason())
		}
	}
}

func TestState_MountLifecycleTransitions(t *testing.T) {
	s := New()
	s.SetCLIInitialized(true)
	s.SetRegistryLoaded(true, false, false)

	if s.Snapshot().Ready() != true {
		t.Fatal("expected ready after cli+registry loaded")
	}

	s.BeginMount()
	if s.Snapshot().MountInProgress != true {
		t.Fatal("expected mountInProgress true")
	}
	if s.Snapshot().Ready() {
		t.Error("expected not ready while mount in progress")
	}

	s.CompleteMount(true, 2, 0, nil, 1000, 50)
	snap := s.Snapshot()
	if snap.MountInProgress {
		t.Error("expected mountInProgress false after CompleteMount")
	}
	if !snap.PluginRoutesMounted {
		t.Error("expected pluginRoutesMounted true")
	}
	if snap.RoutesCount != 2 {
		t.Errorf("RoutesCount = %d, want 2", snap.RoutesCount)
	}
}
