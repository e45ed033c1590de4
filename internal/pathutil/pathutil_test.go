package pathutil

import (
	"reflect"
	"testing"
)

func TestNormalize_EmptyAndSlashCollapse(t *testing.T) {
	for _, in := range []string{"", "/"} {
		if got := Normalize(in); got != "" {
			t.Errorf("Normalize(%q) = %q, want \"\"", in, got)
		}
	}
}

func TestNormalize_TrimsTrailingSlash(t *testing.T) {
	if got := Normalize("/api/v1/"); got != "/api/v1" {
		t.Errorf("Normalize(/api/v1/) = %q", got)
	}
}

func TestResolve_EmptyBaseReturnsBareRoute(t *testing.T) {
	got := Resolve("", "/hello")
	want := []string{"/hello"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve(\"\", /hello) = %v, want %v", got, want)
	}
}

func TestResolve_NonEmptyBaseReturnsBoth(t *testing.T) {
	got := Resolve("/api/v1", "/hello")
	want := []string{"/hello", "/api/v1/hello"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve(/api/v1, /hello) = %v, want %v", got, want)
	}
}

// R1: resolvePaths(normalizeBasePath(b), r) is idempotent under
// normalizeBasePath on b.
func TestResolve_IdempotentUnderNormalize(t *testing.T) {
	inputs := []string{"/api/v1/", "/api/v1", "", "/"}
	for _, b := range inputs {
		once := Resolve(Normalize(b), "/x")
		twice := Resolve(Normalize(Normalize(b)), "/x")
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent for base %q: %v vs %v", b, once, twice)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := Join("/api/v1", "hello"); got != "/api/v1/hello" {
		t.Errorf("Join = %q", got)
	}
	if got := Join("", "hello"); got != "/hello" {
		t.Errorf("Join with empty base = %q", got)
	}
}
