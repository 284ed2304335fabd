package xerr

import "fmt"

const (
	ErrNotFound = 1300

	ErrConfigInvalid = 2000 // weights/thresholds rejected at pass start
	ErrEmbedFailed   = 2003 // embedding model invocation failed

	ErrMergeChain = 2100 // merge would leave a multi-hop alias chain
)

// CodeMsg carries an error class code so pass summaries can bucket failures.
type CodeMsg struct {
	Code int
	Msg  string
	Err  error
}

func (e *CodeMsg) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code=%d, msg=%s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("code=%d, msg=%s", e.Code, e.Msg)
}

func (e *CodeMsg) Unwrap() error {
	return e.Err
}

func New(code int, msg string) error {
	return &CodeMsg{Code: code, Msg: msg}
}

func Wrap(code int, msg string, err error) error {
	return &CodeMsg{Code: code, Msg: msg, Err: err}
}
