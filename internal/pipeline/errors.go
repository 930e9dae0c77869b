package pipeline

// CompileError is a compile failure that aborted a fail-fast run.
type CompileError struct {
	File string
	Err  error
}

func (e *CompileError) Error() string {
	return e.Err.Error()
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// OutputError is a failure to deliver the artifact. It is fatal in every mode.
type OutputError struct {
	Err error
}

func (e *OutputError) Error() string {
	return e.Err.Error()
}

func (e *OutputError) Unwrap() error {
	return e.Err
}
