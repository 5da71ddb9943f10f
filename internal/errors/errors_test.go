package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBridgeError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *BridgeError
		contains []string
	}{
		{
			name: "with cause",
			err: &BridgeError{
				Category: CategoryConfig,
				Code:     "command_not_found",
				Message:  "claude is not installed",
				Cause:    fmt.Errorf("exec: not found"),
			},
			contains: []string{"[config]", "command_not_found", "claude is not installed", "exec: not found"},
		},
		{
			name: "without cause",
			err: &BridgeError{
				Category: CategoryPolicy,
				Code:     "protected_branch",
				Message:  "'main' is a protected branch",
			},
			contains: []string{"[policy]", "protected_branch", "'main' is a protected branch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want it to contain %q", msg, s)
				}
			}
		})
	}
}

func TestBridgeError_UnwrapChain(t *testing.T) {
	root := fmt.Errorf("disk full")
	mid := StoreFailed("save", root)
	outer := fmt.Errorf("task finished: %w", mid)

	if !errors.Is(outer, root) {
		t.Error("expected errors.Is to find root cause through chain")
	}

	var be *BridgeError
	if !errors.As(outer, &be) {
		t.Fatal("expected errors.As to find BridgeError in chain")
	}
	if be.Code != "store_failed" {
		t.Errorf("got code %q, want %q", be.Code, "store_failed")
	}

	if (&BridgeError{Code: "x"}).Unwrap() != nil {
		t.Error("expected nil Unwrap without cause")
	}
}

func TestBridgeError_Is(t *testing.T) {
	err1 := &BridgeError{Category: CategoryTimeout, Code: "timeout", Message: "a"}
	err2 := &BridgeError{Category: CategoryTimeout, Code: "timeout", Message: "b"}
	err3 := &BridgeError{Category: CategoryTimeout, Code: "aborted", Message: "c"}
	err4 := &BridgeError{Category: CategoryConfig, Code: "timeout", Message: "d"}

	if !errors.Is(err1, err2) {
		t.Error("expected Is() to match same category+code regardless of message")
	}
	if errors.Is(err1, err3) {
		t.Error("expected Is() to not match different codes")
	}
	if errors.Is(err1, err4) {
		t.Error("expected Is() to not match different categories")
	}
	if errors.Is(err1, fmt.Errorf("plain")) {
		t.Error("expected Is() to return false for non-BridgeError target")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable transport", TransportFailed("getUpdates", true, nil), true},
		{"rejected transport", TransportFailed("sendMessage", false, nil), false},
		{"wrapped retryable", fmt.Errorf("poll: %w", TransportFailed("getUpdates", true, nil)), true},
		{"timeout is never retried", ExecutionTimeout(300), false},
		{"missing executable", ExecutableNotFound("claude", nil), false},
		{"plain", fmt.Errorf("plain error"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"policy", ProtectedBranch("main"), CategoryPolicy},
		{"path", PathOutsideRoot("../etc"), CategoryPolicy},
		{"input", Usage("usage: /cd <name>"), CategoryInput},
		{"output", MalformedOutput(nil), CategoryOutput},
		{"wrapped config", fmt.Errorf("wrap: %w", ConfigLoadFailed("codebridge.yaml", nil)), CategoryConfig},
		{"internal", Internal(fmt.Errorf("boom")), CategoryInternal},
		{"plain", fmt.Errorf("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCategory(tt.err); got != tt.want {
				t.Errorf("GetCategory() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"project exists", ProjectExists("demo"), "project 'demo' already exists"},
		{"wrapped", fmt.Errorf("wrap: %w", ProjectNotFound("ghost")), "project 'ghost' does not exist"},
		{"plain", fmt.Errorf("something broke"), "something broke"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetUserMessage(tt.err); got != tt.want {
				t.Errorf("GetUserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutableNotFound_InstallHint(t *testing.T) {
	msg := GetUserMessage(ExecutableNotFound("claude", nil))
	if !strings.Contains(msg, InstallHint) {
		t.Errorf("expected install hint in %q", msg)
	}
	if strings.Contains(GetUserMessage(ExecutableNotFound("gh", nil)), InstallHint) {
		t.Error("install hint should only be attached for claude")
	}
}
