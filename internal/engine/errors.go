package engine

import "fmt"

// AuthError indicates the remote engine rejected the session credentials or an
// unregistered project. Recoverable only by re-authenticating at a higher level.
type AuthError struct {
	Project string
	Reason  string
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("remote engine authentication failed for project %q: %s", e.Project, e.Reason)
	}
	return fmt.Sprintf("remote engine authentication failed for project %q", e.Project)
}

// IsTransient returns false; retrying with the same credentials cannot succeed
func (e *AuthError) IsTransient() bool {
	return false
}

// LimitError indicates a reduction would touch more pixels than the configured
// budget allows. Callers should retry with a coarser scale; the core never
// retries on its own.
type LimitError struct {
	MaxPixels int64
	Estimated int64
	Scale     int
}

func (e *LimitError) Error() string {
	if e.Estimated > 0 {
		return fmt.Sprintf(
			"computation at %dm scale would touch ~%d pixels, exceeding the budget of %d; use a coarser scale",
			e.Scale, e.Estimated, e.MaxPixels)
	}
	return fmt.Sprintf("computation exceeds the pixel budget of %d; use a coarser scale", e.MaxPixels)
}

func (e *LimitError) IsTransient() bool {
	return false
}

// ExportError indicates an export submission was rejected; no task handle exists.
type ExportError struct {
	Description string
	Err         error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export submission %q failed: %v", e.Description, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

func (e *ExportError) IsTransient() bool {
	return true
}

// NotFoundError indicates a named lookup matched nothing, such as an
// administrative region filter returning zero features.
type NotFoundError struct {
	Resource string
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Name)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
