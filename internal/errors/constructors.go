package errors

import "fmt"

// InstallHint is shown whenever the agent CLI cannot be located.
const InstallHint = "npm install -g @anthropic-ai/claude-code"

// ExecutableNotFound creates an error for a required executable missing from PATH.
func ExecutableNotFound(name string, cause error) *BridgeError {
	msg := fmt.Sprintf("%s is not installed or not on PATH", name)
	if name == "claude" {
		msg += "\nInstall it with: " + InstallHint
	}
	return &BridgeError{
		Category:  CategoryConfig,
		Code:      "command_not_found",
		Message:   msg,
		Retryable: false,
		Cause:     cause,
	}
}

// ExecutionTimeout creates an error for an agent run that exceeded its budget.
func ExecutionTimeout(seconds int) *BridgeError {
	return &BridgeError{
		Category:  CategoryTimeout,
		Code:      "timeout",
		Message:   fmt.Sprintf("execution timed out (%ds), split the work into smaller tasks", seconds),
		Retryable: false,
	}
}

// MalformedOutput creates an error for agent output that is not valid JSON.
func MalformedOutput(cause error) *BridgeError {
	return &BridgeError{
		Category: CategoryOutput,
		Code:     "malformed_output",
		Message:  "agent output is not structured JSON",
		Cause:    cause,
	}
}

// ProtectedBranch creates an error for a push that targets a protected branch.
func ProtectedBranch(branch string) *BridgeError {
	return &BridgeError{
		Category: CategoryPolicy,
		Code:     "protected_branch",
		Message:  fmt.Sprintf("'%s' is a protected branch, direct push is not allowed\nSwitch to a working branch first: /branch <name>", branch),
	}
}

// PathOutsideRoot creates an error for a path that resolves outside the project.
func PathOutsideRoot(path string) *BridgeError {
	return &BridgeError{
		Category: CategoryPolicy,
		Code:     "path_outside_root",
		Message:  fmt.Sprintf("access denied: %q is outside the project directory", path),
	}
}

// Usage creates an error carrying a fixed usage message.
func Usage(usage string) *BridgeError {
	return &BridgeError{
		Category: CategoryInput,
		Code:     "usage",
		Message:  usage,
	}
}

// ProjectExists creates an error for a duplicate project registration.
func ProjectExists(name string) *BridgeError {
	return &BridgeError{
		Category: CategoryInput,
		Code:     "project_exists",
		Message:  fmt.Sprintf("project '%s' already exists", name),
	}
}

// InvalidProjectName creates an error for a name that is not a single
// directory component.
func InvalidProjectName(name string) *BridgeError {
	return &BridgeError{
		Category: CategoryInput,
		Code:     "invalid_project_name",
		Message:  fmt.Sprintf("invalid project name '%s': use a plain directory name without '/' or '..'", name),
	}
}

// ProjectNotFound creates an error for an unknown project name.
func ProjectNotFound(name string) *BridgeError {
	return &BridgeError{
		Category: CategoryInput,
		Code:     "project_not_found",
		Message:  fmt.Sprintf("project '%s' does not exist", name),
	}
}

// ConfigLoadFailed creates an error for when configuration loading fails.
func ConfigLoadFailed(path string, cause error) *BridgeError {
	return &BridgeError{
		Category:  CategoryConfig,
		Code:      "config_load_failed",
		Message:   fmt.Sprintf("failed to load config from %q", path),
		Retryable: false,
		Cause:     cause,
	}
}

// StoreFailed creates an error for a memory store operation that failed.
func StoreFailed(op string, cause error) *BridgeError {
	return &BridgeError{
		Category: CategoryStore,
		Code:     "store_failed",
		Message:  fmt.Sprintf("memory store %s failed", op),
		Cause:    cause,
	}
}

// TransportFailed creates an error for a transport call that failed.
// Network failures are retryable; API rejections are not.
func TransportFailed(method string, retryable bool, cause error) *BridgeError {
	return &BridgeError{
		Category:  CategoryTransport,
		Code:      "transport_failed",
		Message:   fmt.Sprintf("transport call %s failed", method),
		Retryable: retryable,
		Cause:     cause,
	}
}

// Internal wraps an unexpected fault caught at the top of message handling.
func Internal(cause error) *BridgeError {
	return &BridgeError{
		Category: CategoryInternal,
		Code:     "internal",
		Message:  "internal error",
		Cause:    cause,
	}
}

// CommandFailed creates an error for a helper command (git, gh) that could
// not be started.
func CommandFailed(command string, cause error) *BridgeError {
	return &BridgeError{
		Category: CategoryInternal,
		Code:     "command_failed",
		Message:  fmt.Sprintf("%s could not run: %v", command, cause),
		Cause:    cause,
	}
}

// DirectoryNotFound creates an error for a project path that is not a directory.
func DirectoryNotFound(path string) *BridgeError {
	return &BridgeError{
		Category: CategoryInput,
		Code:     "directory_not_found",
		Message:  fmt.Sprintf("directory does not exist: %s", path),
	}
}

// DirectoryExists creates an error for a create or clone target that is
// already on disk.
func DirectoryExists(name, path string) *BridgeError {
	return &BridgeError{
		Category: CategoryInput,
		Code:     "directory_exists",
		Message:  fmt.Sprintf("directory already exists: %s\nRegister it with /addproject %s %s", path, name, path),
	}
}
